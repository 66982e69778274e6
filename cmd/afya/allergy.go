package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"afyafamilia/internal/analytics"
	"afyafamilia/pkg/domain"
)

func newAllergyCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allergy",
		Short: "Analyse the food diary and plan eliminations",
	}
	cmd.AddCommand(newAllergyAnalyzeCmd(st), newAllergyPlanCmd(st))
	return cmd
}

type windowFlags struct {
	days, months int
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&w.days, "days", 0, "diary window in days (default 30)")
	cmd.Flags().IntVar(&w.months, "months", 0, "diary window in months")
}

func (w windowFlags) window() domain.Window {
	return domain.Window{DaysBack: w.days, MonthsBack: w.months}
}

func newAllergyAnalyzeCmd(st *state) *cobra.Command {
	var subject, format string
	var win windowFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score foods against reaction days",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, _ []string) error {
		analysis, err := a.gen.AnalyzeAllergies(ctx, subject, win.window())
		if err != nil {
			return err
		}
		if format == formatText {
			return a.printAnalysis(analysis)
		}
		return a.printJSON(analysis)
	})
	cmd.Flags().StringVar(&subject, "subject", "", "subject (child) id")
	cmd.Flags().StringVar(&format, "format", formatJSON, "output format (json|text)")
	win.register(cmd)
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func (a *app) printAnalysis(analysis analytics.AllergyAnalysis) error {
	fmt.Fprintf(a.out, "%d/%d reaction days\n", analysis.ReactionDaysCount, analysis.TotalDaysCount)
	for _, f := range analysis.Suspicious {
		fmt.Fprintf(a.out, "%s %d%% [%s] %s\n", f.Food, f.Confidence,
			a.printer.Priority(f.Recommendation.Priority), a.printer.Recommendation(f.Recommendation))
	}
	for _, food := range analysis.Safe {
		fmt.Fprintf(a.out, "%s ok\n", food)
	}
	return nil
}

func newAllergyPlanCmd(st *state) *cobra.Command {
	var subject string
	var save, archiveIt bool
	var win windowFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build an elimination plan from the current analysis",
		Long: `Analyse the diary and schedule the suspicious foods one after another.
--save stores the plan as an elimination-plans record; --archive also
exports it to the object store.`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, _ []string) error {
		if archiveIt {
			save = true
		}
		analysis, err := a.gen.AnalyzeAllergies(ctx, subject, win.window())
		if err != nil {
			return err
		}
		plan, rec, err := a.gen.PlanElimination(ctx, subject, analysis, save)
		if err != nil {
			return err
		}
		if rec == nil {
			return a.printJSON(plan)
		}
		if archiveIt {
			arc, err := a.archiver(ctx)
			if err != nil {
				return err
			}
			info, err := arc.SavePlan(ctx, *rec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "archived", info.Key)
		}
		return a.printJSON(rec)
	})
	cmd.Flags().StringVar(&subject, "subject", "", "subject (child) id")
	cmd.Flags().BoolVar(&save, "save", false, "store the plan as a record")
	cmd.Flags().BoolVar(&archiveIt, "archive", false, "save and export the plan to the archive")
	win.register(cmd)
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
