// Package examops provides a fluent API for normalizing exam papers against
// an institutional rule set.
//
// Basic usage:
//
//	outcome := examops.Open("paper.docx").
//	    Rules(rules.Default()).
//	    Run(ctx)
//	if outcome.Status == report.StatusFailed {
//	    // handle outcome.Err
//	}
//	fmt.Println(outcome.Summary())
//
// With a template registry and a compliance scorer:
//
//	outcome := examops.Open("paper.docx").
//	    Registry(reg, "suc", "engineering").
//	    Scorer(scorer).
//	    Timeout(20 * time.Second).
//	    OutputDir("out", report.FormatJSON, report.FormatHTML).
//	    Run(ctx)
//
// For advanced use cases, the lower-level pipeline package is also available.
package examops

import (
	"context"
	"fmt"
	"time"

	"github.com/lerlerchan/ExamOps-Orchestrator/compliance"
	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/pipeline"
	"github.com/lerlerchan/ExamOps-Orchestrator/report"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// Job provides a fluent interface for configuring one formatting job.
// Each configuration method returns a new Job, so a partially configured
// Job can be shared and reused.
type Job struct {
	// Source: a file path or an already decoded document
	path string
	doc  *model.Document

	options JobOptions
}

// Open returns a Job that will decode the DOCX file at path when run.
//
// Example:
//
//	outcome := examops.Open("paper.docx").Rules(rules.Default()).Run(ctx)
func Open(path string) *Job {
	return &Job{
		path:    path,
		options: defaultOptions(),
	}
}

// FromDocument returns a Job over an already decoded document. The document
// is never modified.
func FromDocument(doc *model.Document) *Job {
	return &Job{
		doc:     doc,
		options: defaultOptions(),
	}
}

func (j *Job) clone() *Job {
	return &Job{
		path:    j.path,
		doc:     j.doc,
		options: j.options.clone(),
	}
}

// Rules sets the rule set explicitly. It takes precedence over Registry.
func (j *Job) Rules(rs *rules.RuleSet) *Job {
	n := j.clone()
	n.options.ruleSet = rs
	return n
}

// Registry resolves the rule set from reg by institution and faculty when
// the job runs.
func (j *Job) Registry(reg *rules.Registry, institution, faculty string) *Job {
	n := j.clone()
	n.options.registry = reg
	n.options.institution = institution
	n.options.faculty = faculty
	return n
}

// Scorer sets the compliance scorer. Without one the job ends partial.
func (j *Job) Scorer(s compliance.Scorer) *Job {
	n := j.clone()
	n.options.scorer = s
	return n
}

// Timeout bounds each compliance scorer call.
func (j *Job) Timeout(d time.Duration) *Job {
	n := j.clone()
	n.options.timeout = d
	return n
}

// Context sets the number of unchanged lines kept around each diff hunk.
func (j *Job) Context(lines int) *Job {
	n := j.clone()
	n.options.contextLines = lines
	return n
}

// OutputDir saves the normalized document and the report in each of formats
// under dir. A job opened from a file also gets a normalized copy of the
// DOCX. Without formats only the normalized document is written.
func (j *Job) OutputDir(dir string, formats ...report.Format) *Job {
	n := j.clone()
	n.options.outputDir = dir
	n.options.formats = append([]report.Format(nil), formats...)
	return n
}

// JobID replaces the job ID generator.
func (j *Job) JobID(fn func() string) *Job {
	n := j.clone()
	n.options.newID = fn
	return n
}

// Run executes the job. The outcome always carries a status; Err is set for
// failed and partial jobs.
func (j *Job) Run(ctx context.Context) *pipeline.Outcome {
	p := pipeline.New(j.pipelineOptions()...)
	if j.doc != nil {
		return p.RunDocument(ctx, j.doc, j.resolve)
	}
	return p.RunFile(ctx, j.path, j.resolve)
}

// Result runs the job and returns the normalization result and report, or
// the job error when it failed. A partial job is not an error.
func (j *Job) Result(ctx context.Context) (*model.NormalizationResult, *report.Report, error) {
	o := j.Run(ctx)
	if o.Status == report.StatusFailed {
		if o.Err == nil {
			return o.Result, o.Report, fmt.Errorf("job failed: %s", o.Code)
		}
		return o.Result, o.Report, fmt.Errorf("job failed (%s): %w", o.Code, o.Err)
	}
	return o.Result, o.Report, nil
}

func (j *Job) resolve() (*rules.RuleSet, error) {
	o := j.options
	switch {
	case o.ruleSet != nil:
		return o.ruleSet, nil
	case o.registry != nil:
		return o.registry.Resolve(o.institution, o.faculty)
	default:
		return nil, &rules.TemplateResolutionError{
			Institution: o.institution,
			Faculty:     o.faculty,
			Reason:      "no rule set or registry configured",
			Err:         rules.ErrTemplateNotFound,
		}
	}
}

func (j *Job) pipelineOptions() []pipeline.Option {
	o := j.options
	b := report.NewBuilder()
	b.Context = o.contextLines

	opts := []pipeline.Option{pipeline.WithBuilder(b)}
	if o.scorer != nil {
		opts = append(opts, pipeline.WithScorer(o.scorer, o.timeout))
	}
	if o.outputDir != "" {
		opts = append(opts, pipeline.WithOutputDir(o.outputDir, o.formats...))
	}
	if o.newID != nil {
		opts = append(opts, pipeline.WithJobID(o.newID))
	}
	return opts
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	reg := examops.Must(rules.LoadRegistry("templates.yaml"))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
