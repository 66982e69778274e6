package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"afyafamilia/pkg/domain"
)

func newBaselineCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage the steady-state baseline profile of a subject",
	}
	cmd.AddCommand(newBaselineSetCmd(st), newBaselineGetCmd(st))
	return cmd
}

func newBaselineSetCmd(st *state) *cobra.Command {
	var subject, data string
	cmd := &cobra.Command{
		Use:     "set",
		Short:   "Create or replace the baseline profile",
		Example: `  afya baseline set --subject amani --data '{"steady_state_hb":8.5,"hb_std_dev":0.6,"current_weight_kg":18}'`,
		Args:    cobra.NoArgs,
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, _ []string) error {
		raw, err := readData(data, cmd.InOrStdin())
		if err != nil {
			return err
		}
		var profile domain.BaselineProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			return domain.ValidationError{Category: domain.CategoryBaseline, Reason: err.Error()}
		}
		profile.SubjectID = subject
		saved, res, err := a.svc.UpsertBaseline(ctx, profile)
		if err != nil {
			return err
		}
		return a.printJSON(struct {
			Baseline domain.BaselineProfile `json:"baseline"`
			Warnings []warning              `json:"warnings,omitempty"`
		}{saved, warnings(res)})
	})
	cmd.Flags().StringVar(&subject, "subject", "", "subject (child) id")
	cmd.Flags().StringVar(&data, "data", "", "JSON profile, @file or - for stdin")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newBaselineGetCmd(st *state) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the baseline profile",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, _ []string) error {
		profile, err := a.svc.Baseline(ctx, subject)
		if err != nil {
			return err
		}
		return a.printJSON(profile)
	})
	cmd.Flags().StringVar(&subject, "subject", "", "subject (child) id")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
