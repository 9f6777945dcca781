package examops

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/lerlerchan/ExamOps-Orchestrator/compliance"
	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/pipeline"
	"github.com/lerlerchan/ExamOps-Orchestrator/report"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// createTestDOCX writes a minimal DOCX with one paragraph per line.
func createTestDOCX(t *testing.T, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "paper.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	zw := zip.NewWriter(f)

	var body strings.Builder
	for _, l := range lines {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + l + `</w:t></w:r></w:p>`)
	}
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close file: %v", err)
	}
	return path
}

func fixedScore(score float64) compliance.Scorer {
	return compliance.ScorerFunc(func(context.Context, compliance.Request) (*compliance.Result, error) {
		return &compliance.Result{Score: compliance.Float(score), MathPreserved: true}, nil
	})
}

func jobID(id string) func() string {
	return func() string { return id }
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func TestOpen_Run(t *testing.T) {
	path := createTestDOCX(t, "DATE: 15 June 2025", "Q1) Explain recursion. (5 marks)")

	o := Open(path).
		Rules(rules.Default()).
		Scorer(fixedScore(88)).
		JobID(jobID("job-1")).
		Run(t.Context())

	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	if o.Status != report.StatusSuccess {
		t.Errorf("expected status success, got %s", o.Status)
	}
	if o.JobID != "job-1" {
		t.Errorf("expected job ID job-1, got %q", o.JobID)
	}
	lines := o.Result.Document.Lines()
	for _, want := range []string{"DATE : 15 June 2025", "Q1. Explain recursion. (5 marks)"} {
		if !contains(lines, want) {
			t.Errorf("expected normalized line %q in %q", want, lines)
		}
	}
	if o.Result.Document.Metadata.Source != "paper.docx" {
		t.Errorf("expected source paper.docx, got %q", o.Result.Document.Metadata.Source)
	}
	if o.Report.ComplianceScore == nil || *o.Report.ComplianceScore != 88 {
		t.Errorf("expected compliance score 88, got %v", o.Report.ComplianceScore)
	}
}

func TestOpen_Registry(t *testing.T) {
	path := createTestDOCX(t, "Q1) Explain recursion.")

	reg := rules.NewRegistry()
	if err := reg.Add("suc", &rules.Institution{Name: "Southern University College", Default: rules.Default()}); err != nil {
		t.Fatalf("failed to add institution: %v", err)
	}

	tests := []struct {
		name        string
		institution string
		wantStatus  report.Status
		wantCode    pipeline.ErrorCode
	}{
		{"known institution", "suc", report.StatusPartial, pipeline.CodeScorerTimeout},
		{"unknown institution", "nowhere", report.StatusFailed, pipeline.CodeTemplateNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Open(path).Registry(reg, tt.institution, "engineering").Run(t.Context())
			if o.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, o.Status)
			}
			if o.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, o.Code)
			}
		})
	}
}

func TestOpen_RulesWinOverRegistry(t *testing.T) {
	path := createTestDOCX(t, "Q1) Explain recursion.")
	o := Open(path).
		Registry(rules.NewRegistry(), "nowhere", "").
		Rules(rules.Default()).
		Run(t.Context())
	if o.Status == report.StatusFailed {
		t.Fatalf("expected the explicit rule set to be used, got %v", o.Err)
	}
}

func TestOpen_NoRules(t *testing.T) {
	path := createTestDOCX(t, "Q1) Explain recursion.")
	o := Open(path).Run(t.Context())
	if o.Status != report.StatusFailed {
		t.Fatalf("expected failed status, got %s", o.Status)
	}
	if o.Code != pipeline.CodeTemplateNotFound {
		t.Errorf("expected %s, got %s", pipeline.CodeTemplateNotFound, o.Code)
	}
	if !errors.Is(o.Err, rules.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", o.Err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	o := Open(filepath.Join(t.TempDir(), "missing.docx")).Rules(rules.Default()).Run(t.Context())
	if o.Code != pipeline.CodeCorruptedFile {
		t.Errorf("expected %s, got %s", pipeline.CodeCorruptedFile, o.Code)
	}
}

func TestJob_Immutable(t *testing.T) {
	path := createTestDOCX(t, "Q1) Explain recursion.")

	base := Open(path)
	configured := base.Rules(rules.Default()).OutputDir(t.TempDir(), report.FormatJSON)

	if base.options.ruleSet != nil {
		t.Error("Rules modified the receiver")
	}
	if base.options.outputDir != "" {
		t.Error("OutputDir modified the receiver")
	}
	if configured.options.ruleSet == nil {
		t.Error("expected the rule set on the new job")
	}

	formats := []report.Format{report.FormatHTML}
	j := base.OutputDir("out", formats...)
	formats[0] = report.FormatText
	if j.options.formats[0] != report.FormatHTML {
		t.Error("OutputDir kept a reference to the caller's slice")
	}
}

func TestJob_Timeout(t *testing.T) {
	blocking := compliance.ScorerFunc(func(ctx context.Context, _ compliance.Request) (*compliance.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	o := Open(createTestDOCX(t, "Q1) Explain.")).
		Rules(rules.Default()).
		Scorer(blocking).
		Timeout(20 * time.Millisecond).
		Run(t.Context())

	if o.Status != report.StatusPartial {
		t.Fatalf("expected partial status, got %s", o.Status)
	}
	if o.Code != pipeline.CodeScorerTimeout {
		t.Errorf("expected %s, got %s", pipeline.CodeScorerTimeout, o.Code)
	}
	if o.Report.ComplianceScore != nil {
		t.Error("expected no compliance score on fallback")
	}
}

func TestJob_OutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	o := Open(createTestDOCX(t, "Q1) Explain.")).
		Rules(rules.Default()).
		JobID(jobID("job-9")).
		OutputDir(dir, report.FormatJSON, report.FormatHTML).
		Run(t.Context())

	want := []string{
		filepath.Join(dir, "job-9.normalized.json"),
		filepath.Join(dir, "job-9.normalized.docx"),
		filepath.Join(dir, "job-9.report.json"),
		filepath.Join(dir, "job-9.report.html"),
	}
	if len(o.Outputs) != len(want) {
		t.Fatalf("expected %d outputs, got %q", len(want), o.Outputs)
	}
	for i, p := range want {
		if o.Outputs[i] != p {
			t.Errorf("output %d: expected %q, got %q", i, p, o.Outputs[i])
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}

	doc, err := pipeline.Decode(filepath.Join(dir, "job-9.normalized.docx"))
	if err != nil {
		t.Fatalf("decoding the normalized DOCX: %v", err)
	}
	if got, want := doc.Lines(), o.Result.Document.Lines(); !slices.Equal(got, want) {
		t.Errorf("normalized DOCX lines = %q, want %q", got, want)
	}
	if doc.Section.HeaderText != o.Result.Document.Section.HeaderText {
		t.Errorf("normalized DOCX header = %q, want %q", doc.Section.HeaderText, o.Result.Document.Section.HeaderText)
	}
}

func TestJob_Context(t *testing.T) {
	o := Open(createTestDOCX(t, "Q1) Explain.")).Rules(rules.Default()).Context(0).Run(t.Context())
	if o.Report == nil {
		t.Fatalf("expected a report, got %v", o.Err)
	}
	if o.Report.ContextLines != 0 {
		t.Errorf("expected 0 context lines, got %d", o.Report.ContextLines)
	}
}

func TestFromDocument(t *testing.T) {
	doc := model.NewDocument()
	doc.AddBlock(model.Block{Text: "Q1) Explain recursion."})
	before := doc.Lines()

	res, rep, err := FromDocument(doc).Rules(rules.Default()).Result(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Status != report.StatusPartial {
		t.Errorf("expected partial status without a scorer, got %s", rep.Status)
	}
	if got := res.Document.Lines()[0]; got != "Q1. Explain recursion." {
		t.Errorf("expected normalized numbering, got %q", got)
	}
	if doc.Lines()[0] != before[0] {
		t.Error("the input document was modified")
	}
}

func TestJob_ResultError(t *testing.T) {
	_, _, err := FromDocument(model.NewDocument()).Result(t.Context())
	if err == nil {
		t.Fatal("expected an error without a rule set")
	}
	if !errors.Is(err, rules.ErrTemplateNotFound) {
		t.Errorf("expected the template error to be wrapped, got %v", err)
	}
	if !strings.Contains(err.Error(), string(pipeline.CodeTemplateNotFound)) {
		t.Errorf("expected the error code in %q", err.Error())
	}
}

func TestMust(t *testing.T) {
	if got := Must(42, nil); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected Must to panic")
		}
	}()
	Must(0, errors.New("boom"))
}
