package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"afyafamilia/internal/archive"
	"afyafamilia/internal/blob"
)

func newArchiveCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse archived reports and plans",
	}
	cmd.AddCommand(newArchiveListCmd(st), newArchiveGetCmd(st), newArchiveURLCmd(st))
	return cmd
}

func parseKind(s string) (archive.Kind, error) {
	switch archive.Kind(s) {
	case archive.KindReport, archive.KindPlan:
		return archive.Kind(s), nil
	}
	return "", fmt.Errorf("unknown archive kind %q (reports|plans)", s)
}

func newArchiveListCmd(st *state) *cobra.Command {
	var kind, subject string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived artifacts",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, _ []string) error {
		k, err := parseKind(kind)
		if err != nil {
			return err
		}
		arc, err := a.archiver(ctx)
		if err != nil {
			return err
		}
		infos, err := arc.List(ctx, k, subject)
		if err != nil {
			return err
		}
		if infos == nil {
			infos = []blob.Info{}
		}
		return a.printJSON(infos)
	})
	cmd.Flags().StringVar(&kind, "kind", string(archive.KindReport), "artifact kind (reports|plans)")
	cmd.Flags().StringVar(&subject, "subject", "", "subject id (empty lists every subject)")
	return cmd
}

func newArchiveGetCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print an archived report or plan",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, args []string) error {
		arc, err := a.archiver(ctx)
		if err != nil {
			return err
		}
		key := args[0]
		if strings.HasPrefix(key, string(archive.KindPlan)+"/") {
			rec, err := arc.LoadPlan(ctx, key)
			if err != nil {
				return err
			}
			return a.printJSON(rec)
		}
		rep, err := arc.LoadReport(ctx, key)
		if err != nil {
			return err
		}
		return a.printJSON(rep)
	})
	return cmd
}

func newArchiveURLCmd(st *state) *cobra.Command {
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "url <key>",
		Short: "Print a time-limited download link",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = st.withApp(func(ctx context.Context, a *app, args []string) error {
		arc, err := a.archiver(ctx)
		if err != nil {
			return err
		}
		u, err := arc.URL(ctx, args[0], expiry)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, u)
		return err
	})
	cmd.Flags().DurationVar(&expiry, "expiry", 15*time.Minute, "link lifetime")
	return cmd
}
