package main

import (
	"context"

	"github.com/spf13/cobra"

	"afyafamilia/internal/core"
	"afyafamilia/pkg/domain"
)

func newRecordCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Create, read, update and list diary records",
	}
	cmd.AddCommand(
		newRecordCreateCmd(st),
		newRecordGetCmd(st),
		newRecordUpdateCmd(st),
		newRecordListCmd(st),
		newRecordDeactivateCmd(st),
		newRecordHistoryCmd(st),
	)
	return cmd
}

func newRecordCreateCmd(st *state) *cobra.Command {
	var subject, data, note string
	cmd := &cobra.Command{
		Use:   "create <category>",
		Short: "Create a record from a JSON payload",
		Example: `  afya record create seizure-events --subject amani --data '{"date_time":"2025-06-01T03:10:00Z","triggers":["fever"]}'
  afya record create therapy --subject amani --data @therapy.json`,
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, args []string) error {
		c, err := parseCategory(args[0])
		if err != nil {
			return err
		}
		raw, err := readData(data, cmd.InOrStdin())
		if err != nil {
			return err
		}
		payload, err := domain.DecodePayload(c, raw)
		if err != nil {
			return domain.ValidationError{Category: c, Reason: err.Error()}
		}
		rec, res, err := a.svc.CreateWithNote(ctx, c, subject, payload, note)
		if err != nil {
			return err
		}
		return a.printJSON(mutation{Record: rec, Warnings: warnings(res)})
	})
	cmd.Flags().StringVar(&subject, "subject", "", "subject (child) id")
	cmd.Flags().StringVar(&data, "data", "", "JSON payload, @file or - for stdin")
	cmd.Flags().StringVar(&note, "note", "", "audit note for mutable categories")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newRecordGetCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <category> <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, args []string) error {
		c, err := parseCategory(args[0])
		if err != nil {
			return err
		}
		rec, err := a.svc.Get(ctx, c, args[1])
		if err != nil {
			return err
		}
		return a.printJSON(rec)
	})
	return cmd
}

func newRecordUpdateCmd(st *state) *cobra.Command {
	var data, note string
	cmd := &cobra.Command{
		Use:   "update <category> <id>",
		Short: "Merge a JSON patch into an active record",
		Long: `Merge a JSON object into the record payload. A null value clears the
field; unknown fields are rejected. Mutable categories record the change
in the audit trail.`,
		Args: cobra.ExactArgs(2),
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, args []string) error {
		c, err := parseCategory(args[0])
		if err != nil {
			return err
		}
		raw, err := readData(data, cmd.InOrStdin())
		if err != nil {
			return err
		}
		patch, err := decodePatch(raw)
		if err != nil {
			return err
		}
		rec, res, err := a.svc.UpdateWithNote(ctx, c, args[1], patch, note)
		if err != nil {
			return err
		}
		return a.printJSON(mutation{Record: rec, Warnings: warnings(res)})
	})
	cmd.Flags().StringVar(&data, "data", "", "JSON patch, @file or - for stdin")
	cmd.Flags().StringVar(&note, "note", "", "audit note")
	return cmd
}

func newRecordListCmd(st *state) *cobra.Command {
	var (
		subject, typeKey, from, to string
		days, months, years, limit int
		active                     bool
	)
	cmd := &cobra.Command{
		Use:   "list <category>",
		Short: "List records newest first",
		Long: `List records of one category, newest first. A trailing window
(--days, --months or --years, at most one) and an explicit range
(--from/--to) are mutually exclusive.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, args []string) error {
		c, err := parseCategory(args[0])
		if err != nil {
			return err
		}
		window := domain.Window{DaysBack: days, MonthsBack: months, YearsBack: years}
		if from == "" && to == "" {
			recs, err := a.svc.List(ctx, c, subject, core.ListOptions{Window: window, TypeKey: typeKey, ActiveOnly: active, Limit: limit})
			if err != nil {
				return err
			}
			return a.printJSON(nonNil(recs))
		}
		if !window.IsZero() {
			return domain.ValidationError{Category: c, Reason: "use either a trailing window or --from/--to"}
		}
		start, err := parseTime(from, false)
		if err != nil {
			return err
		}
		end, err := parseTime(to, true)
		if err != nil {
			return err
		}
		recs, err := a.svc.Query(ctx, c, domain.Query{SubjectID: subject, From: start, To: end, TypeKey: typeKey, ActiveOnly: active, Limit: limit})
		if err != nil {
			return err
		}
		return a.printJSON(nonNil(recs))
	})
	f := cmd.Flags()
	f.StringVar(&subject, "subject", "", "subject id (empty lists every subject)")
	f.IntVar(&days, "days", 0, "trailing window in days")
	f.IntVar(&months, "months", 0, "trailing window in months")
	f.IntVar(&years, "years", 0, "trailing window in years")
	f.StringVar(&from, "from", "", "range start (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&to, "to", "", "range end, inclusive")
	f.StringVar(&typeKey, "type", "", "type filter (lab test, vaccine, exam or milestone type)")
	f.BoolVar(&active, "active", false, "only active records")
	f.IntVar(&limit, "limit", 0, "maximum number of records")
	return cmd
}

func newRecordDeactivateCmd(st *state) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "deactivate <category> <id>",
		Short: "End a therapy or medication",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, args []string) error {
		c, err := parseCategory(args[0])
		if err != nil {
			return err
		}
		rec, res, err := a.svc.Deactivate(ctx, c, args[1], reason)
		if err != nil {
			return err
		}
		return a.printJSON(mutation{Record: rec, Warnings: warnings(res)})
	})
	cmd.Flags().StringVar(&reason, "reason", "", "why the record ends")
	return cmd
}

func newRecordHistoryCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <category> <id>",
		Short: "Print the audit trail of a therapy or medication",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, args []string) error {
		c, err := parseCategory(args[0])
		if err != nil {
			return err
		}
		entries, err := a.svc.History(ctx, c, args[1])
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []domain.AuditEntry{}
		}
		return a.printJSON(entries)
	})
	return cmd
}

func nonNil(recs []domain.Record) []domain.Record {
	if recs == nil {
		return []domain.Record{}
	}
	return recs
}
