package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinical-risk-scorer/internal/app"
	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/explain"
	"github.com/clinical-risk-scorer/internal/features"
)

// formOptions are the flags of commands that submit a form.
type formOptions struct {
	input        string
	symptomScore int
	noAudit      bool
}

func (f *formOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "-", "JSON object of field values; - reads stdin")
	cmd.Flags().IntVar(&f.symptomScore, "symptom-score", 0, "Thyroid symptom score (0-100)")
	cmd.Flags().BoolVar(&f.noAudit, "no-audit", false, "Do not write an audit record")
}

func (f *formOptions) options(cmd *cobra.Command) domain.EvaluationOptions {
	var opts domain.EvaluationOptions
	if cmd.Flags().Changed("symptom-score") {
		score := f.symptomScore
		opts.SymptomScore = &score
	}
	return opts
}

// readInputs decodes the form from path, or from stdin when path is "-".
func readInputs(cmd *cobra.Command, path string) (domain.ClinicalInputSet, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer file.Close()
		r = file
	}

	var inputs domain.ClinicalInputSet
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return inputs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newEvaluateCmd(o *rootOptions) *cobra.Command {
	form := &formOptions{}
	var output string

	cmd := &cobra.Command{
		Use:   "evaluate <domain>",
		Short: "Evaluate one form",
		Long: "Evaluate one form for a domain (heart, diabetes, parkinsons, lung_cancer, thyroid).\n" +
			"The form is a JSON object keyed by field key or alias.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseDomain(args[0])
			if err != nil {
				return err
			}
			inputs, err := readInputs(cmd, form.input)
			if err != nil {
				return err
			}

			mgr, logger, err := o.load(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), mgr, logger, app.Options{SkipAudit: form.noAudit})
			if err != nil {
				return err
			}
			defer a.Close()

			eval, err := a.Evaluator.Evaluate(cmd.Context(), d, inputs, form.options(cmd))
			if err != nil {
				return err
			}

			switch output {
			case "json":
				return writeJSON(cmd.OutOrStdout(), eval)
			case "text":
				return writeEvaluationText(cmd.OutOrStdout(), eval)
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}
	form.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or json")
	return cmd
}

func writeEvaluationText(w io.Writer, eval *domain.Evaluation) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n\n", eval.Domain.DisplayName(), eval.Verdict)
	for _, f := range eval.Inputs {
		sb.WriteString(f.Display)
		sb.WriteString("\n")
	}
	if eval.Labs != nil {
		sb.WriteString("\n")
		sb.WriteString(explain.RenderLabs(*eval.Labs))
	}
	sb.WriteString("\n")
	sb.WriteString(explain.Render(eval.Domain, eval.Recommendation))
	_, err := io.WriteString(w, sb.String())
	return err
}

func newReportCmd(o *rootOptions) *cobra.Command {
	form := &formOptions{}
	var format, out string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Produce the thyroid assessment report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "lines" {
				return fmt.Errorf("unknown report format %q", format)
			}
			inputs, err := readInputs(cmd, form.input)
			if err != nil {
				return err
			}

			mgr, logger, err := o.load(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), mgr, logger, app.Options{SkipAudit: form.noAudit})
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Evaluator.ThyroidReport(cmd.Context(), inputs, form.options(cmd))
			if err != nil {
				return err
			}

			body := report.Summary
			if format == "lines" {
				body = strings.Join(report.PDFLines, "\n") + "\n"
			}
			if out == "" || out == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", out)
			return nil
		},
	}
	form.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Report format: text or lines")
	cmd.Flags().StringVar(&out, "out", "", "Write the report to a file instead of stdout")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema [domain]",
		Short: "Show the input fields of a domain, or list the domains",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, d := range domain.AllDomains {
					fmt.Fprintf(w, "%-12s %s\n", d, d.DisplayName())
				}
				return nil
			}

			d, err := domain.ParseDomain(args[0])
			if err != nil {
				return err
			}
			schema, err := features.SchemaFor(d)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(w, schema.Fields)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tLABEL\tUNIT\tMIN\tMAX\tALIASES")
			for _, f := range schema.Fields {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%s\n",
					f.Key, f.Label, f.Unit, f.Min, f.Max, strings.Join(f.Aliases, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or json")
	return cmd
}
