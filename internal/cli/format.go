package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	examops "github.com/lerlerchan/ExamOps-Orchestrator"
	"github.com/lerlerchan/ExamOps-Orchestrator/compliance"
	"github.com/lerlerchan/ExamOps-Orchestrator/internal/config"
	"github.com/lerlerchan/ExamOps-Orchestrator/internal/logger"
	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/pipeline"
	"github.com/lerlerchan/ExamOps-Orchestrator/report"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

var formatCmd = &cobra.Command{
	Use:   "format [paper.docx]",
	Short: "Normalize an exam paper",
	Long: `Normalizes a DOCX exam paper against the rule set of an institution and
faculty, scores it with the compliance service when one is configured, and
writes the normalized paper (as DOCX and JSON) and its diff report to the
output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runFormat,
}

var (
	statusSuccess = color.New(color.FgGreen, color.Bold)
	statusPartial = color.New(color.FgYellow, color.Bold)
	statusFailed  = color.New(color.FgRed, color.Bold)
)

func init() {
	f := formatCmd.Flags()
	f.StringP("output", "o", "", "output directory (default from configuration)")
	f.StringSlice("report", nil, "report formats (json|html|text)")
	f.String("registry", "", "template registry file or directory")
	f.StringP("institution", "i", "", "institution key in the registry")
	f.StringP("faculty", "f", "", "faculty key in the registry")
	f.String("scorer", "", "compliance scorer endpoint URL")
	f.Duration("timeout", 0, "compliance scorer timeout")
	f.Int("context", -1, "unchanged lines kept around each diff hunk")
	f.Bool("no-save", false, "do not write any output files")
	f.Bool("diff", false, "print the unified diff to stdout")

	rootCmd.AddCommand(formatCmd)
}

// applyFormatFlags overrides configuration values with the flags the user set.
func applyFormatFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	if f.Changed("output") {
		if cfg.Report.OutputDir, err = f.GetString("output"); err != nil {
			return err
		}
	}
	if f.Changed("report") {
		if cfg.Report.Formats, err = f.GetStringSlice("report"); err != nil {
			return err
		}
	}
	if f.Changed("registry") {
		if cfg.Template.Registry, err = f.GetString("registry"); err != nil {
			return err
		}
	}
	if f.Changed("institution") {
		if cfg.Template.Institution, err = f.GetString("institution"); err != nil {
			return err
		}
	}
	if f.Changed("faculty") {
		if cfg.Template.Faculty, err = f.GetString("faculty"); err != nil {
			return err
		}
	}
	if f.Changed("scorer") {
		if cfg.Scorer.Endpoint, err = f.GetString("scorer"); err != nil {
			return err
		}
	}
	if f.Changed("timeout") {
		if cfg.Scorer.Timeout, err = f.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if f.Changed("context") {
		if cfg.Report.ContextLines, err = f.GetInt("context"); err != nil {
			return err
		}
	}
	return config.Validate(cfg)
}

func runFormat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	// Work on a copy so flags never leak into the stored configuration.
	cfg := *config.FromContext(ctx)
	cfg.Report.Formats = append([]string(nil), cfg.Report.Formats...)
	if err := applyFormatFlags(cmd, &cfg); err != nil {
		return err
	}

	path := args[0]
	job, err := configureJob(examops.Open(path), &cfg, log)
	if err != nil {
		return err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return err
	}
	if !noSave {
		formats, err := cfg.Report.ReportFormats()
		if err != nil {
			return err
		}
		job = job.OutputDir(cfg.Report.OutputDir, formats...)
	}

	showDiff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	o := job.Run(ctx)
	printOutcome(out, path, o)
	if showDiff && o.Report != nil {
		if err := report.Write(o.Report, report.FormatText, out); err != nil {
			return err
		}
	}
	if o.Status == report.StatusFailed {
		return fmt.Errorf("job %s failed with %s: %w", o.JobID, o.Code, o.Err)
	}
	return nil
}

// configureJob selects the rule set and scorer from cfg.
func configureJob(job *examops.Job, cfg *config.Config, log logger.Logger) (*examops.Job, error) {
	if cfg.Template.Registry != "" {
		reg, err := rules.LoadRegistry(cfg.Template.Registry)
		if err != nil {
			return nil, err
		}
		job = job.Registry(reg, cfg.Template.Institution, cfg.Template.Faculty)
	} else {
		log.Info("No template registry configured, using the built-in rule set")
		job = job.Rules(rules.Default())
	}

	if cfg.Scorer.Endpoint != "" {
		s, err := compliance.NewHTTPScorer(cfg.Scorer.HTTPConfig())
		if err != nil {
			return nil, err
		}
		job = job.Scorer(s).Timeout(cfg.Scorer.Timeout)
	} else {
		log.Warn("No compliance scorer configured, the job will end partial")
	}

	return job.Context(cfg.Report.ContextLines), nil
}

func printOutcome(w io.Writer, path string, o *pipeline.Outcome) {
	c := statusSuccess
	switch o.Status {
	case report.StatusPartial:
		c = statusPartial
	case report.StatusFailed:
		c = statusFailed
	}

	fmt.Fprintf(w, "%s %s\n", c.Sprint(strings.ToUpper(string(o.Status))), o.Summary())
	fmt.Fprintf(w, "  job:  %s\n", o.JobID)
	fmt.Fprintf(w, "  file: %s\n", path)
	if o.Report != nil {
		for _, cat := range model.Categories {
			if n := o.Report.ChangeCounts[cat]; n > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", string(cat)+":", n)
			}
		}
	}
	if o.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", o.Err)
	}
	for _, p := range o.Outputs {
		fmt.Fprintf(w, "  wrote %s\n", p)
	}
}
