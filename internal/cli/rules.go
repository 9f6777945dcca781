package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lerlerchan/ExamOps-Orchestrator/internal/config"
	"github.com/lerlerchan/ExamOps-Orchestrator/internal/logger"
	"github.com/lerlerchan/ExamOps-Orchestrator/pipeline"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage institutional rule sets",
	Long:  `Extract rule sets from guideline documents, and inspect the template registry.`,
}

var rulesExtractCmd = &cobra.Command{
	Use:   "extract [guideline.docx]",
	Short: "Derive a rule set from a guideline document",
	Long: `Reads a sample paper that already follows the institution's template and
prints the rule set it implies as YAML, ready to be pasted into a registry.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesExtract,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rule set a job would use",
	Args:  cobra.NoArgs,
	RunE:  runRulesShow,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the institutions and faculties of the registry",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the template registry",
	Args:  cobra.NoArgs,
	RunE:  runRulesSchema,
}

var (
	schemaOutput string

	extractTitle  string
	extractOutput string

	showRegistry    string
	showInstitution string
	showFaculty     string
)

func init() {
	rulesExtractCmd.Flags().StringVarP(&extractTitle, "title", "t", "", "rule set title (default: file name)")
	rulesExtractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write the rule set to a file instead of stdout")

	for _, c := range []*cobra.Command{rulesShowCmd, rulesListCmd} {
		c.Flags().StringVar(&showRegistry, "registry", "", "template registry file or directory (default from configuration)")
	}
	rulesShowCmd.Flags().StringVarP(&showInstitution, "institution", "i", "", "institution key")
	rulesShowCmd.Flags().StringVarP(&showFaculty, "faculty", "f", "", "faculty key")

	rulesSchemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "write the schema to a file instead of stdout")

	rulesCmd.AddCommand(rulesExtractCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesSchemaCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	doc, err := pipeline.Decode(path)
	if err != nil {
		return err
	}

	title := extractTitle
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	rs, err := rules.Extract(doc, title)
	if err != nil {
		return err
	}
	data, err := rules.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to encode rule set: %w", err)
	}

	var sb strings.Builder
	if scheme := rules.NumberingScheme(doc); len(scheme) > 0 {
		fmt.Fprintf(&sb, "# numbering scheme: %s\n", strings.Join(scheme, " "))
	}
	sb.Write(data)

	if extractOutput == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), sb.String())
		return err
	}
	if err := os.WriteFile(extractOutput, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write rule set: %w", err)
	}
	logger.FromContext(cmd.Context()).Info("Rule set extracted", "id", rs.ID, "file", extractOutput)
	return nil
}

// registryPath returns the registry flag, or the configured registry.
func registryPath(cmd *cobra.Command) string {
	if showRegistry != "" {
		return showRegistry
	}
	return config.FromContext(cmd.Context()).Template.Registry
}

func runRulesShow(cmd *cobra.Command, _ []string) error {
	tc := config.FromContext(cmd.Context()).Template
	institution, faculty := tc.Institution, tc.Faculty
	if showInstitution != "" {
		institution = showInstitution
	}
	if showFaculty != "" {
		faculty = showFaculty
	}

	rs := rules.Default()
	if path := registryPath(cmd); path != "" {
		reg, err := rules.LoadRegistry(path)
		if err != nil {
			return err
		}
		if rs, err = reg.Resolve(institution, faculty); err != nil {
			return err
		}
	}

	data, err := rules.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to encode rule set: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	path := registryPath(cmd)
	if path == "" {
		return fmt.Errorf("no template registry configured")
	}
	reg, err := rules.LoadRegistry(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	institutions := reg.Institutions()
	if len(institutions) == 0 {
		fmt.Fprintln(out, "No institutions registered")
		return nil
	}
	for _, inst := range institutions {
		fmt.Fprintln(out, inst)
		for _, fac := range reg.Faculties(inst) {
			fmt.Fprintf(out, "  %s\n", fac)
		}
	}
	return nil
}

func runRulesSchema(cmd *cobra.Command, _ []string) error {
	data, err := rules.Schema()
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if schemaOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(schemaOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}
