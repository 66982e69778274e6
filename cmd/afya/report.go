package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"afyafamilia/internal/report"
	"afyafamilia/pkg/domain"
)

// Output formats.
const (
	formatJSON = "json"
	formatText = "text"
)

func newReportCmd(st *state) *cobra.Command {
	var subject, from, to, format string
	var save bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the medical report of a subject",
		Long: `Generate the report of a subject for an inclusive date range. Without
--from/--to every record is included. --archive stores the JSON report in
the configured object store.`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, _ []string) error {
		start, err := parseTime(from, false)
		if err != nil {
			return err
		}
		end, err := parseTime(to, true)
		if err != nil {
			return err
		}
		rep, err := a.gen.Generate(ctx, subject, start, end)
		if err != nil {
			return err
		}
		if save {
			arc, err := a.archiver(ctx)
			if err != nil {
				return err
			}
			info, err := arc.SaveReport(ctx, rep)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "archived", info.Key)
		}
		switch format {
		case formatJSON:
			return a.printJSON(rep)
		case formatText:
			return a.printReport(a.out, rep)
		}
		return domain.ValidationError{Reason: fmt.Sprintf("unknown format %q", format)}
	})
	f := cmd.Flags()
	f.StringVar(&subject, "subject", "", "subject (child) id")
	f.StringVar(&from, "from", "", "range start (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&to, "to", "", "range end, inclusive")
	f.StringVar(&format, "format", formatJSON, "output format (json|text)")
	f.BoolVar(&save, "archive", false, "store the report in the archive")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// printReport writes a short localized summary.
func (a *app) printReport(w io.Writer, rep report.Report) error {
	s := rep.Summary
	p := a.printer
	lines := []string{
		fmt.Sprintf("%s  %s", rep.SubjectID, rep.GeneratedAt.Format("2006-01-02 15:04")),
		fmt.Sprintf("seizures: %d (%.1f/week)", s.TotalSeizures, s.AveragePerWeek),
		fmt.Sprintf("hb: %s", p.Trend(s.HbTrend)),
	}
	if s.HbDeviation != nil {
		lines = append(lines, fmt.Sprintf("hb baseline: %s (%.1f sd)", p.Deviation(*s.HbDeviation), s.HbDeviation.Deviation))
	}
	for _, c := range s.LabChecks {
		lines = append(lines, fmt.Sprintf("lab %s %.1f: %s", c.TestType, c.Value, p.Lab(c)))
	}
	lines = append(lines, "transfusions: "+p.Risk(s.TransfusionRisk))
	if s.Hydration != nil {
		lines = append(lines, "water: "+p.Intake(*s.Hydration))
	}
	for _, e := range s.Exams {
		lines = append(lines, fmt.Sprintf("exam %s: %s", e.ExamType, p.Exam(e)))
	}
	lines = append(lines, fmt.Sprintf("hospital: %d admissions, %d bed days; red flags: %d",
		s.HospitalizationCount, s.TotalBedDays, s.RedFlagCount))
	for _, alert := range s.CriticalAlerts {
		lines = append(lines, fmt.Sprintf("[%s] %s", p.Severity(alert.Severity), p.Alert(alert, s)))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
