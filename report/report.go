// Package report assembles the audit report of one formatting job: the
// diff, the per-category change counts, the compliance score and a
// human-readable summary, and renders it as JSON, HTML or unified text.
package report

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/lerlerchan/ExamOps-Orchestrator/compliance"
	"github.com/lerlerchan/ExamOps-Orchestrator/diff"
	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

// Status is the outcome of a formatting job.
type Status string

const (
	// StatusSuccess means formatting and scoring both completed.
	StatusSuccess Status = "success"
	// StatusPartial means formatting completed but the score fell back.
	StatusPartial Status = "partial"
	// StatusFailed means no normalized document was produced.
	StatusFailed Status = "failed"
)

// Report is the auditable record of one formatting job.
type Report struct {
	ID              string                 `json:"id"`
	Status          Status                 `json:"status"`
	DiffEntries     []diff.Entry           `json:"diff_entries"`
	Hunks           []diff.Hunk            `json:"hunks"`
	ContextLines    int                    `json:"context_lines"`
	Changes         []model.Change         `json:"changes"`
	ChangeCounts    map[model.Category]int `json:"change_counts"`
	TotalChanges    int                    `json:"total_changes"`
	ComplianceScore *float64               `json:"compliance_score"`
	Compliance      *compliance.Result     `json:"compliance,omitempty"`
	Summary         string                 `json:"summary"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Fallback reports whether the compliance score fell back.
func (r *Report) Fallback() bool {
	return r.Compliance == nil || r.Compliance.Fallback
}

// Builder assembles reports. The zero value is not usable; use NewBuilder.
type Builder struct {
	// Now stamps the report.
	Now func() time.Time
	// NewID generates the report ID.
	NewID func() string
	// Context is the number of unchanged lines kept around each hunk.
	Context int
}

// NewBuilder creates a builder with wall-clock timestamps, random UUIDs and
// three context lines.
func NewBuilder() *Builder {
	return &Builder{
		Now:     time.Now,
		NewID:   uuid.NewString,
		Context: diff.DefaultContext,
	}
}

// Build assembles a report. res may be nil, which is treated like a
// fallback result.
func (b *Builder) Build(entries []diff.Entry, changes []model.Change, res *compliance.Result) *Report {
	// The report owns its slices; later edits by the caller do not reach it.
	entries = slices.Clone(entries)
	changes = slices.Clone(changes)
	r := &Report{
		ID:           b.NewID(),
		Status:       StatusSuccess,
		DiffEntries:  entries,
		Hunks:        diff.Hunks(entries, b.Context),
		ContextLines: max(b.Context, 0),
		Changes:      changes,
		ChangeCounts: model.CountByCategory(changes),
		TotalChanges: len(changes),
		Compliance:   res,
		Timestamp:    b.Now().UTC(),
	}
	if r.DiffEntries == nil {
		r.DiffEntries = []diff.Entry{}
	}
	if r.Hunks == nil {
		r.Hunks = []diff.Hunk{}
	}
	if r.Changes == nil {
		r.Changes = []model.Change{}
	}
	if res != nil && !res.Fallback && res.Score != nil {
		score := *res.Score
		r.ComplianceScore = &score
	}
	if r.Fallback() {
		r.Status = StatusPartial
	}
	r.Summary = Summary(r.TotalChanges, r.ComplianceScore, r.Fallback())
	return r
}

// Summary renders the one-line job summary.
func Summary(total int, score *float64, fallback bool) string {
	scoreText := "N/A"
	if score != nil {
		scoreText = fmt.Sprintf("%.1f%%", *score)
	}
	s := fmt.Sprintf("Formatting complete. %d change(s) applied. Compliance score: %s.", total, scoreText)
	if fallback {
		s += " (compliance scorer unavailable: rule-based formatting only)"
	}
	return s
}

// ColorClass returns the presentation class of a diff entry kind:
// addition, deletion, modification, or context for unchanged lines.
func ColorClass(k diff.Kind) string {
	switch k {
	case diff.Insert:
		return "addition"
	case diff.Delete:
		return "deletion"
	case diff.Replace:
		return "modification"
	default:
		return "context"
	}
}
