// Package compliance defines the contract of the external semantic scorer
// and the fallback policy applied when it is unavailable.
//
// The scorer is an opaque collaborator: it receives the original and the
// normalized text together with the rule set, and returns a score between 0
// and 100. A scorer that times out, fails or answers with something
// malformed never fails the job; [Guard] substitutes [Fallback] instead.
package compliance

import (
	"context"
	"errors"
	"fmt"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// ErrScorerUnavailable is returned, wrapped, whenever the fallback result
// was substituted: timeout, transport failure or a malformed response.
var ErrScorerUnavailable = errors.New("compliance scorer unavailable")

// ErrMalformedResult marks a scorer response that failed validation.
var ErrMalformedResult = errors.New("malformed scorer result")

// MaxTextChars bounds the original and normalized text sent to a scorer.
const MaxTextChars = 4000

// Request is what a scorer evaluates.
type Request struct {
	Original  string         `json:"original"`
	Formatted string         `json:"formatted"`
	Rules     *rules.RuleSet `json:"rules"`
	// Notes lists numbering ambiguities the scorer should review.
	Notes []string `json:"notes,omitempty"`
}

// NewRequest builds a request from the original document and the
// normalization result. Text is truncated to MaxTextChars bytes on a rune
// boundary.
func NewRequest(original *model.Document, res *model.NormalizationResult, rs *rules.RuleSet) Request {
	req := Request{Rules: rs}
	if original != nil {
		req.Original = truncate(original.ExtractText(), MaxTextChars)
	}
	if res != nil {
		if res.Document != nil {
			req.Formatted = truncate(res.Document.ExtractText(), MaxTextChars)
		}
		for _, a := range res.Ambiguities {
			req.Notes = append(req.Notes, a.String())
		}
	}
	return req
}

// Result is the scorer's verdict. Score is nil when no score is available.
type Result struct {
	Score          *float64           `json:"compliance_score"`
	CategoryScores map[string]float64 `json:"category_scores"`
	Issues         []string           `json:"issues_found"`
	EdgeCases      []string           `json:"edge_cases"`
	MathPreserved  bool               `json:"math_expressions_preserved"`
	Summary        string             `json:"summary"`
	Fallback       bool               `json:"fallback_mode"`
	// Error describes why the fallback engaged.
	Error string `json:"error,omitempty"`
}

// Fallback returns the result used when the scorer is unavailable: no score,
// no issues, math assumed preserved.
func Fallback() *Result {
	return &Result{
		Score:          nil,
		CategoryScores: map[string]float64{},
		Issues:         []string{},
		EdgeCases:      []string{},
		MathPreserved:  true,
		Summary:        "Compliance validation unavailable.",
		Fallback:       true,
	}
}

// Validate checks a scorer response.
func (r *Result) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty result", ErrMalformedResult)
	}
	if r.Score == nil {
		return fmt.Errorf("%w: missing compliance score", ErrMalformedResult)
	}
	if s := *r.Score; s < 0 || s > 100 {
		return fmt.Errorf("%w: compliance score %.2f outside 0..100", ErrMalformedResult, s)
	}
	for k, v := range r.CategoryScores {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: category %q score %.2f outside 0..100", ErrMalformedResult, k, v)
		}
	}
	return nil
}

// Scorer computes a compliance score. Implementations must honour ctx.
type Scorer interface {
	Score(ctx context.Context, req Request) (*Result, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, req Request) (*Result, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Float returns a pointer to v, for building results.
func Float(v float64) *float64 {
	return &v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune start.
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
