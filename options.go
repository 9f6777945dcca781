package examops

import (
	"time"

	"github.com/lerlerchan/ExamOps-Orchestrator/compliance"
	"github.com/lerlerchan/ExamOps-Orchestrator/diff"
	"github.com/lerlerchan/ExamOps-Orchestrator/report"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// JobOptions holds the configuration of a Job.
type JobOptions struct {
	// Rule set selection; an explicit rule set wins over the registry
	ruleSet     *rules.RuleSet
	registry    *rules.Registry
	institution string
	faculty     string

	// Compliance scoring
	scorer  compliance.Scorer
	timeout time.Duration

	// Report and outputs
	contextLines int
	outputDir    string
	formats      []report.Format

	newID func() string
}

// defaultOptions returns the default job options.
func defaultOptions() JobOptions {
	return JobOptions{
		timeout:      compliance.DefaultTimeout,
		contextLines: diff.DefaultContext,
	}
}

// clone creates a copy of JobOptions. Rule sets, the registry and the
// scorer are shared; they are never modified by a job.
func (o JobOptions) clone() JobOptions {
	newOpts := o
	if o.formats != nil {
		newOpts.formats = make([]report.Format, len(o.formats))
		copy(newOpts.formats, o.formats)
	}
	return newOpts
}
