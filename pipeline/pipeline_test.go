package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lerlerchan/ExamOps-Orchestrator/compliance"
	"github.com/lerlerchan/ExamOps-Orchestrator/formatter"
	"github.com/lerlerchan/ExamOps-Orchestrator/internal/logger"
	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/report"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewLogger(logger.TestConfig()))
}

func sampleDocument() *model.Document {
	doc := model.NewDocument()
	doc.AddBlock(model.Block{Text: "DATE: 15 June 2025"})
	doc.AddBlock(model.Block{Text: "Q1) Explain recursion. (5 marks)"})
	doc.AddBlock(model.Block{Text: "x = (a+b)/c", Objects: []model.InlineObject{{Kind: model.ObjectEquation}}})
	return doc
}

func scoring(score float64) compliance.Scorer {
	return compliance.ScorerFunc(func(_ context.Context, _ compliance.Request) (*compliance.Result, error) {
		return &compliance.Result{Score: compliance.Float(score), MathPreserved: true}, nil
	})
}

// writeDOCX writes a minimal exam paper with one paragraph per line.
func writeDOCX(t *testing.T, dir string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, "paper.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)

	body := ""
	for _, l := range lines {
		body += `<w:p><w:r><w:t xml:space="preserve">` + l + `</w:t></w:r></w:p>`
	}
	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestPipeline_Run(t *testing.T) {
	t.Run("Should succeed with a score", func(t *testing.T) {
		p := New(WithScorer(scoring(92), time.Second), WithJobID(func() string { return "job-1" }))
		o := p.Run(testContext(t), sampleDocument(), rules.Default())

		require.NoError(t, o.Err)
		assert.Equal(t, "job-1", o.JobID)
		assert.Equal(t, report.StatusSuccess, o.Status)
		assert.Equal(t, CodeNone, o.Code)
		require.NotNil(t, o.Report)
		require.NotNil(t, o.Report.ComplianceScore)
		assert.InDelta(t, 92.0, *o.Report.ComplianceScore, 1e-9)
		assert.Equal(t, o.Report.Summary, o.Summary())
		assert.Equal(t, "Q1. Explain recursion. (5 marks)", o.Result.Document.Blocks[1].Text)
		assert.Equal(t, "DATE : 15 June 2025", o.Result.Document.Blocks[0].Text)
		assert.True(t, o.Result.Document.Blocks[2].Protected)
	})

	t.Run("Should degrade to partial when the scorer times out", func(t *testing.T) {
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		slow := compliance.ScorerFunc(func(_ context.Context, _ compliance.Request) (*compliance.Result, error) {
			<-release
			return &compliance.Result{Score: compliance.Float(99)}, nil
		})

		o := New(WithScorer(slow, 20*time.Millisecond)).Run(testContext(t), sampleDocument(), rules.Default())

		assert.Equal(t, report.StatusPartial, o.Status)
		assert.Equal(t, CodeScorerTimeout, o.Code)
		assert.ErrorIs(t, o.Err, compliance.ErrScorerUnavailable)
		assert.True(t, compliance.TimedOut(o.Err))
		require.NotNil(t, o.Result)
		require.NotNil(t, o.Report)
		assert.Nil(t, o.Report.ComplianceScore)
		assert.Positive(t, o.Report.TotalChanges)
		assert.NotEmpty(t, o.Report.DiffEntries)
		assert.Contains(t, o.Summary(), "Compliance score: N/A.")
	})

	t.Run("Should be partial without a scorer", func(t *testing.T) {
		o := New().Run(testContext(t), sampleDocument(), rules.Default())
		assert.Equal(t, report.StatusPartial, o.Status)
		assert.Equal(t, CodeScorerTimeout, o.Code)
		assert.NotNil(t, o.Result)
	})

	t.Run("Should fail on a malformed document", func(t *testing.T) {
		doc := sampleDocument()
		doc.Blocks[1].Text = "Q1) \xff\xfe"
		o := New(WithScorer(scoring(90), time.Second)).Run(testContext(t), doc, rules.Default())

		assert.Equal(t, report.StatusFailed, o.Status)
		assert.Equal(t, CodeCorruptedFile, o.Code)
		assert.Equal(t, StageFormatting, o.Stage)
		assert.Nil(t, o.Result)
		assert.Nil(t, o.Report)
		assert.Equal(t, "Job failed: ERR_CORRUPTED_FILE", o.Summary())
	})

	t.Run("Should fail on an invalid rule set", func(t *testing.T) {
		rs := rules.Default()
		rs.MarksPattern = "{n}pts"
		o := New().Run(testContext(t), sampleDocument(), rs)
		assert.Equal(t, report.StatusFailed, o.Status)
		assert.Equal(t, CodeTemplateNotFound, o.Code)
	})

	t.Run("Should fail without a rule set", func(t *testing.T) {
		o := New().Run(testContext(t), sampleDocument(), nil)
		assert.Equal(t, CodeTemplateNotFound, o.Code)
		assert.Nil(t, o.Result)
	})

	t.Run("Should not mutate the input document", func(t *testing.T) {
		doc := sampleDocument()
		before := doc.Lines()
		New().Run(testContext(t), doc, rules.Default())
		assert.Equal(t, before, doc.Lines())
	})
}

func TestPipeline_RunFile(t *testing.T) {
	resolveDefault := func() (*rules.RuleSet, error) { return rules.Default(), nil }

	t.Run("Should decode and format a DOCX file", func(t *testing.T) {
		path := writeDOCX(t, t.TempDir(), "DATE: 15 June 2025", "Q1) Explain recursion.", "(a) Define a stack.[4 marks]")
		o := New(WithScorer(scoring(80), time.Second)).RunFile(testContext(t), path, resolveDefault)

		require.NoError(t, o.Err)
		assert.Equal(t, report.StatusSuccess, o.Status)
		require.NotNil(t, o.Result)
		assert.Equal(t, "paper.docx", o.Result.Document.Metadata.Source)
		assert.Equal(t, []string{
			"DATE : 15 June 2025",
			"Q1. Explain recursion.",
			"(a) Define a stack. (4 marks)",
		}, o.Result.Document.Lines())
		assert.Equal(t, 1, o.Result.Document.Blocks[2].IndentLevel)
	})

	t.Run("Should report a corrupted file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.docx")
		require.NoError(t, os.WriteFile(path, []byte("definitely not a zip archive"), 0o644))

		called := false
		o := New().RunFile(testContext(t), path, func() (*rules.RuleSet, error) {
			called = true
			return rules.Default(), nil
		})
		assert.Equal(t, report.StatusFailed, o.Status)
		assert.Equal(t, CodeCorruptedFile, o.Code)
		assert.Equal(t, StageDecoding, o.Stage)
		assert.False(t, called)
		var mde *formatter.MalformedDocumentError
		assert.ErrorAs(t, o.Err, &mde)
	})

	t.Run("Should report a missing file as corrupted", func(t *testing.T) {
		o := New().RunFile(testContext(t), filepath.Join(t.TempDir(), "missing.docx"), resolveDefault)
		assert.Equal(t, CodeCorruptedFile, o.Code)
	})

	t.Run("Should report a missing template", func(t *testing.T) {
		path := writeDOCX(t, t.TempDir(), "Q1) Explain.")
		o := New().RunFile(testContext(t), path, func() (*rules.RuleSet, error) {
			return nil, &rules.TemplateResolutionError{Institution: "suc", Reason: "no template", Err: rules.ErrTemplateNotFound}
		})
		assert.Equal(t, report.StatusFailed, o.Status)
		assert.Equal(t, CodeTemplateNotFound, o.Code)
		assert.Equal(t, StageResolving, o.Stage)
		assert.Equal(t, "Job failed: ERR_TEMPLATE_NOT_FOUND", o.Summary())
	})

	t.Run("Should report a resolver returning nothing", func(t *testing.T) {
		path := writeDOCX(t, t.TempDir(), "Q1) Explain.")
		o := New().RunFile(testContext(t), path, func() (*rules.RuleSet, error) { return nil, nil })
		assert.Equal(t, CodeTemplateNotFound, o.Code)
		assert.ErrorIs(t, o.Err, rules.ErrTemplateNotFound)
	})
}

func TestPipeline_RunDocument(t *testing.T) {
	t.Run("Should resolve and format a decoded document", func(t *testing.T) {
		o := New(WithScorer(scoring(75), time.Second)).RunDocument(testContext(t), sampleDocument(), resolveDefault)
		require.NoError(t, o.Err)
		assert.Equal(t, report.StatusSuccess, o.Status)
		require.NotNil(t, o.Result)
	})

	t.Run("Should keep the resolver error", func(t *testing.T) {
		reg := rules.NewRegistry()
		o := New().RunDocument(testContext(t), sampleDocument(), func() (*rules.RuleSet, error) {
			return reg.Resolve("nowhere", "")
		})
		assert.Equal(t, CodeTemplateNotFound, o.Code)
		assert.Equal(t, StageResolving, o.Stage)
		var tre *rules.TemplateResolutionError
		require.ErrorAs(t, o.Err, &tre)
		assert.Equal(t, "nowhere", tre.Institution)
	})

	t.Run("Should fail without a resolver", func(t *testing.T) {
		o := New().RunDocument(testContext(t), sampleDocument(), nil)
		assert.Equal(t, CodeTemplateNotFound, o.Code)
		assert.ErrorIs(t, o.Err, rules.ErrTemplateNotFound)
	})
}

func TestPipeline_Save(t *testing.T) {
	t.Run("Should write the normalized document and each report format", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		p := New(
			WithScorer(scoring(75), time.Second),
			WithOutputDir(dir, report.FormatJSON, report.FormatHTML),
			WithJobID(func() string { return "job-7" }),
		)
		o := p.Run(testContext(t), sampleDocument(), rules.Default())

		require.NoError(t, o.Err)
		assert.Equal(t, []string{
			filepath.Join(dir, "job-7.normalized.json"),
			filepath.Join(dir, "job-7.report.json"),
			filepath.Join(dir, "job-7.report.html"),
		}, o.Outputs)
		for _, path := range o.Outputs {
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		}
	})

	t.Run("Should write a normalized copy of the source DOCX", func(t *testing.T) {
		src := writeDOCX(t, t.TempDir(), "DATE: 15 June 2025", "Q1) Explain recursion.", "(a) Define a stack.[4 marks]")
		dir := filepath.Join(t.TempDir(), "out")
		p := New(
			WithScorer(scoring(75), time.Second),
			WithOutputDir(dir, report.FormatText),
			WithJobID(func() string { return "job-8" }),
		)
		o := p.RunFile(testContext(t), src, func() (*rules.RuleSet, error) { return rules.Default(), nil })

		require.NoError(t, o.Err)
		docxPath := filepath.Join(dir, "job-8.normalized.docx")
		assert.Equal(t, []string{
			filepath.Join(dir, "job-8.normalized.json"),
			docxPath,
			filepath.Join(dir, "job-8.report.txt"),
		}, o.Outputs)

		doc, err := Decode(docxPath)
		require.NoError(t, err)
		want := o.Result.Document
		require.Len(t, doc.Blocks, len(want.Blocks))
		for i, b := range doc.Blocks {
			assert.Equal(t, want.Blocks[i].Text, b.Text)
			assert.Equal(t, want.Blocks[i].IndentLevel, b.IndentLevel)
		}
		assert.True(t, doc.Section.Margins.Equal(want.Section.Margins))
		assert.Equal(t, want.Section.HeaderText, doc.Section.HeaderText)
		assert.Equal(t, want.Section.HeaderStyle, doc.Section.HeaderStyle)
		assert.Equal(t, want.Section.FooterText, doc.Section.FooterText)
		assert.Equal(t, want.Section.FooterStyle, doc.Section.FooterStyle)
	})

	t.Run("Should report a storage failure but keep the result", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		p := New(WithScorer(scoring(75), time.Second), WithOutputDir(filepath.Join(blocker, "out"), report.FormatText))
		o := p.Run(testContext(t), sampleDocument(), rules.Default())

		assert.Equal(t, report.StatusFailed, o.Status)
		assert.Equal(t, CodeStorage, o.Code)
		assert.Equal(t, StageSaving, o.Stage)
		assert.NotNil(t, o.Result)
		assert.NotNil(t, o.Report)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeNone},
		{"malformed document", &formatter.MalformedDocumentError{BlockIndex: 2, Reason: "bad"}, CodeCorruptedFile},
		{"template error", &rules.TemplateResolutionError{Reason: "missing"}, CodeTemplateNotFound},
		{"wrapped not found", errors.Join(errors.New("lookup"), rules.ErrTemplateNotFound), CodeTemplateNotFound},
		{"scorer", compliance.ErrScorerUnavailable, CodeScorerTimeout},
		{"anything else", errors.New("boom"), CodeFormatting},
	}
	for _, tt := range tests {
		t.Run("Should classify "+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
