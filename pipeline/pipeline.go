// Package pipeline runs one formatting job end to end: decode, resolve the
// rule set, format, diff, score, build the report and optionally save the
// outputs. Failures map to a job status and an error code; a scorer that is
// unavailable downgrades the job to partial instead of failing it.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lerlerchan/ExamOps-Orchestrator/compliance"
	"github.com/lerlerchan/ExamOps-Orchestrator/diff"
	"github.com/lerlerchan/ExamOps-Orchestrator/docx"
	"github.com/lerlerchan/ExamOps-Orchestrator/format"
	"github.com/lerlerchan/ExamOps-Orchestrator/formatter"
	"github.com/lerlerchan/ExamOps-Orchestrator/internal/logger"
	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/report"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// ErrorCode identifies why a job did not succeed.
type ErrorCode string

const (
	CodeNone             ErrorCode = ""
	CodeCorruptedFile    ErrorCode = "ERR_CORRUPTED_FILE"
	CodeTemplateNotFound ErrorCode = "ERR_TEMPLATE_NOT_FOUND"
	CodeScorerTimeout    ErrorCode = "ERR_LLM_TIMEOUT"
	CodeFormatting       ErrorCode = "ERR_FORMATTING"
	CodeStorage          ErrorCode = "ERR_STORAGE"
)

// Stage names a step of the job, used in logs.
type Stage string

const (
	StageDecoding   Stage = "decoding"
	StageResolving  Stage = "resolving_template"
	StageFormatting Stage = "formatting"
	StageDiffing    Stage = "generating_diff"
	StageScoring    Stage = "scoring"
	StageSaving     Stage = "saving"
)

// Outcome is the result of one job. Result and Report are set whenever
// formatting succeeded, including partial jobs and storage failures.
type Outcome struct {
	JobID  string                     `json:"job_id"`
	Status report.Status              `json:"status"`
	Code   ErrorCode                  `json:"error_code,omitempty"`
	Stage  Stage                      `json:"stage,omitempty"`
	Err    error                      `json:"-"`
	Result *model.NormalizationResult `json:"-"`
	Report *report.Report             `json:"report,omitempty"`
	// Outputs lists the files written by the saving stage.
	Outputs []string `json:"outputs,omitempty"`
}

// Summary returns the one-line job summary.
func (o *Outcome) Summary() string {
	if o.Status == report.StatusFailed || o.Report == nil {
		return fmt.Sprintf("Job failed: %s", o.Code)
	}
	return o.Report.Summary
}

// Pipeline runs formatting jobs. It holds no per-job state and is safe for
// concurrent use.
type Pipeline struct {
	formatter *formatter.Formatter
	builder   *report.Builder
	scorer    compliance.Scorer
	timeout   time.Duration
	outputDir string
	formats   []report.Format
	newID     func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithScorer sets the compliance scorer and its per-call timeout.
func WithScorer(s compliance.Scorer, timeout time.Duration) Option {
	return func(p *Pipeline) {
		p.scorer = s
		p.timeout = timeout
	}
}

// WithFormatter replaces the default formatter.
func WithFormatter(f *formatter.Formatter) Option {
	return func(p *Pipeline) {
		p.formatter = f
	}
}

// WithBuilder replaces the default report builder.
func WithBuilder(b *report.Builder) Option {
	return func(p *Pipeline) {
		p.builder = b
	}
}

// WithOutputDir enables the saving stage: the report is written to dir in
// each of formats, next to the normalized document as JSON and, for jobs
// started from a file, as a DOCX copy of the source.
func WithOutputDir(dir string, formats ...report.Format) Option {
	return func(p *Pipeline) {
		p.outputDir = dir
		p.formats = formats
	}
}

// WithJobID replaces the job ID generator.
func WithJobID(fn func() string) Option {
	return func(p *Pipeline) {
		p.newID = fn
	}
}

// New creates a pipeline. Without WithScorer every job ends partial.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		formatter: formatter.New(),
		builder:   report.NewBuilder(),
		timeout:   compliance.DefaultTimeout,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decode reads an input file into a document. Anything that is not a
// readable DOCX container is reported as a *formatter.MalformedDocumentError.
func Decode(path string) (*model.Document, error) {
	f, err := format.DetectFile(path)
	if err != nil {
		return nil, &formatter.MalformedDocumentError{BlockIndex: -1, Reason: "cannot read input", Err: err}
	}
	if f != format.DOCX {
		return nil, &formatter.MalformedDocumentError{BlockIndex: -1, Reason: fmt.Sprintf("unsupported input format %s", f)}
	}
	r, err := docx.Open(path)
	if err != nil {
		return nil, &formatter.MalformedDocumentError{BlockIndex: -1, Reason: "cannot decode DOCX", Err: err}
	}
	defer r.Close()
	doc, err := r.Document()
	if err != nil {
		return nil, &formatter.MalformedDocumentError{BlockIndex: -1, Reason: "cannot decode DOCX", Err: err}
	}
	doc.Metadata.Source = filepath.Base(path)
	return doc, nil
}

// RunFile decodes path, resolves the rule set with resolve and runs the job.
func (p *Pipeline) RunFile(ctx context.Context, path string, resolve func() (*rules.RuleSet, error)) *Outcome {
	o := &Outcome{JobID: p.newID()}
	log := logger.FromContext(ctx).With("job", o.JobID)
	log.Info("Job started", "file", path)

	o.Stage = StageDecoding
	doc, err := Decode(path)
	if err != nil {
		return p.fail(log, o, CodeCorruptedFile, err)
	}

	return p.resolveAndRun(ctx, log, o, doc, path, resolve)
}

// RunDocument resolves the rule set with resolve and runs the job for an
// already decoded document.
func (p *Pipeline) RunDocument(ctx context.Context, doc *model.Document, resolve func() (*rules.RuleSet, error)) *Outcome {
	o := &Outcome{JobID: p.newID()}
	log := logger.FromContext(ctx).With("job", o.JobID)
	log.Info("Job started")
	return p.resolveAndRun(ctx, log, o, doc, "", resolve)
}

func (p *Pipeline) resolveAndRun(
	ctx context.Context,
	log logger.Logger,
	o *Outcome,
	doc *model.Document,
	source string,
	resolve func() (*rules.RuleSet, error),
) *Outcome {
	o.Stage = StageResolving
	if resolve == nil {
		return p.fail(log, o, CodeTemplateNotFound, &rules.TemplateResolutionError{Reason: "no resolver", Err: rules.ErrTemplateNotFound})
	}
	rs, err := resolve()
	if err != nil {
		return p.fail(log, o, CodeTemplateNotFound, err)
	}
	if rs == nil {
		return p.fail(log, o, CodeTemplateNotFound, &rules.TemplateResolutionError{Reason: "resolver returned no rule set", Err: rules.ErrTemplateNotFound})
	}
	return p.run(ctx, log, o, doc, rs, source)
}

// Run runs the job for an already decoded document and resolved rule set.
func (p *Pipeline) Run(ctx context.Context, doc *model.Document, rs *rules.RuleSet) *Outcome {
	o := &Outcome{JobID: p.newID()}
	log := logger.FromContext(ctx).With("job", o.JobID)
	log.Info("Job started")
	return p.run(ctx, log, o, doc, rs, "")
}

// run formats doc. source is the DOCX file doc was decoded from, empty for
// documents handed in already decoded.
func (p *Pipeline) run(ctx context.Context, log logger.Logger, o *Outcome, doc *model.Document, rs *rules.RuleSet, source string) *Outcome {
	o.Stage = StageFormatting
	log.Debug("Formatting", "blocks", blockCount(doc), "template", templateID(rs))
	res, err := p.formatter.Format(doc, rs)
	if err != nil {
		return p.fail(log, o, Classify(err), err)
	}
	o.Result = res

	o.Stage = StageDiffing
	entries := diff.Compute(diff.Lines(doc), diff.Lines(res.Document))

	o.Stage = StageScoring
	verdict, scoreErr := compliance.Guard(ctx, p.scorer, compliance.NewRequest(doc, res, rs), p.timeout)
	if scoreErr != nil {
		log.Warn("Compliance scorer unavailable, continuing with rule-based result", "error", scoreErr)
	}

	o.Report = p.builder.Build(entries, res.Changes, verdict)
	o.Status = o.Report.Status
	if o.Status == report.StatusPartial {
		o.Code = CodeScorerTimeout
		o.Err = scoreErr
	}

	if p.outputDir != "" {
		o.Stage = StageSaving
		outputs, err := p.save(o, rs, source)
		o.Outputs = outputs
		if err != nil {
			return p.fail(log, o, CodeStorage, err)
		}
	}

	o.Stage = ""
	log.Info("Job completed",
		"status", o.Status,
		"changes", o.Report.TotalChanges,
		"protected", res.Document.ProtectedCount(),
		"score", scoreText(o.Report.ComplianceScore),
	)
	return o
}

func (p *Pipeline) fail(log logger.Logger, o *Outcome, code ErrorCode, err error) *Outcome {
	o.Status = report.StatusFailed
	o.Code = code
	o.Err = err
	log.Error("Job failed", "stage", o.Stage, "code", code, "error", err)
	return o
}

func (p *Pipeline) save(o *Outcome, rs *rules.RuleSet, source string) ([]string, error) {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	docPath := filepath.Join(p.outputDir, o.JobID+".normalized.json")
	data, err := json.MarshalIndent(o.Result, "", "  ")
	if err != nil {
		return written, fmt.Errorf("encoding normalized document: %w", err)
	}
	if err := os.WriteFile(docPath, data, 0o644); err != nil {
		return written, fmt.Errorf("writing normalized document: %w", err)
	}
	written = append(written, docPath)

	if source != "" {
		docxPath := filepath.Join(p.outputDir, o.JobID+".normalized.docx")
		if err := docx.WriteFile(docxPath, source, o.Result.Document, rs.IndentCm); err != nil {
			return written, fmt.Errorf("writing normalized DOCX: %w", err)
		}
		written = append(written, docxPath)
	}

	for _, f := range p.formats {
		path := filepath.Join(p.outputDir, o.JobID+".report"+f.FileExtension())
		if err := report.WriteFile(o.Report, f, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// Classify maps an error to the job error code it causes.
func Classify(err error) ErrorCode {
	var (
		mde *formatter.MalformedDocumentError
		tre *rules.TemplateResolutionError
	)
	switch {
	case err == nil:
		return CodeNone
	case errors.As(err, &mde):
		return CodeCorruptedFile
	case errors.As(err, &tre), errors.Is(err, rules.ErrTemplateNotFound):
		return CodeTemplateNotFound
	case errors.Is(err, compliance.ErrScorerUnavailable):
		return CodeScorerTimeout
	default:
		return CodeFormatting
	}
}

func blockCount(doc *model.Document) int {
	if doc == nil {
		return 0
	}
	return doc.BlockCount()
}

func templateID(rs *rules.RuleSet) string {
	if rs == nil {
		return ""
	}
	return rs.ID
}

func scoreText(score *float64) string {
	if score == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *score)
}
