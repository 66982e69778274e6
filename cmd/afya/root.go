package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"afyafamilia/pkg/domain"
)

// state carries the global flags to every subcommand.
type state struct {
	flags globalFlags
}

func newRootCmd() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:   "afya",
		Short: "Family health diary with seizure, sickle cell and allergy analytics",
		Long: `afya keeps a per-child medical diary in a local SQLite file (or an
in-memory or PostgreSQL store) and derives reports from it: seizure
frequency and triggers, Hb trends against the steady-state baseline,
transfusion load, hydration, exam schedules and food allergy suspects.

Configuration is read from --config (YAML) and AFYA_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&st.flags.configPath, "config", os.Getenv("AFYA_CONFIG"), "path to YAML config file")
	pf.StringVar(&st.flags.lang, "lang", "", "display language (sw|en)")
	pf.BoolVar(&st.flags.trace, "trace", false, "log a span for every service operation")
	pf.BoolVar(&st.flags.metrics, "metrics", false, "print operation counters to stderr on exit")

	root.AddCommand(
		newRecordCmd(st),
		newBaselineCmd(st),
		newReportCmd(st),
		newAllergyCmd(st),
		newArchiveCmd(st),
		newSchemaCmd(),
	)
	return root
}

// withApp wires the process for one command and tears it down afterwards,
// including when the command fails.
func (st *state) withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, st.flags, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.close(ctx, st.flags.metrics)
		return fn(ctx, a, args)
	}
}

func parseCategory(name string) (domain.Category, error) {
	c, err := domain.ParseCategory(name)
	if err != nil {
		return "", err
	}
	if !c.IsRecord() {
		return "", fmt.Errorf("category %s is not written through the record commands", c)
	}
	return c, nil
}

// readData resolves a --data value: inline JSON, @path, or - for stdin.
func readData(value string, stdin io.Reader) ([]byte, error) {
	switch {
	case value == "":
		return nil, fmt.Errorf("--data is required")
	case value == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(value, "@"):
		return os.ReadFile(strings.TrimPrefix(value, "@"))
	}
	return []byte(value), nil
}

func decodePatch(raw []byte) (domain.Patch, error) {
	var patch domain.Patch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, domain.ValidationError{Reason: fmt.Sprintf("patch must be a JSON object: %v", err)}
	}
	return patch, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates. A plain date used
// as an upper bound covers the whole day.
func parseTime(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, domain.ValidationError{Reason: fmt.Sprintf("invalid time %q: use YYYY-MM-DD or RFC 3339", value)}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// warning is the printable form of a non-blocking rule violation.
type warning struct {
	Rule     string          `json:"rule"`
	Severity domain.Severity `json:"severity"`
	Message  string          `json:"message"`
}

func warnings(res domain.Result) []warning {
	var out []warning
	for _, v := range res.Violations {
		out = append(out, warning{Rule: v.Rule, Severity: v.Severity, Message: v.Message})
	}
	return out
}

// mutation is printed by every command that writes a record.
type mutation struct {
	Record   domain.Record `json:"record"`
	Warnings []warning     `json:"warnings,omitempty"`
}
