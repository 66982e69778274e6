package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"afyafamilia/internal/archive"
	"afyafamilia/internal/blob"
	"afyafamilia/internal/config"
	"afyafamilia/internal/core"
	"afyafamilia/internal/platform/logger"
	"afyafamilia/internal/platform/tracing"
	"afyafamilia/internal/present"
	"afyafamilia/internal/report"
	"afyafamilia/pkg/domain"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	lang       string
	trace      bool
	metrics    bool
}

// app is the wired process state for one command invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    core.PersistentStore
	svc      *core.Service
	gen      *report.Generator
	printer  present.Printer
	registry *prometheus.Registry
	provider *sdktrace.TracerProvider
	blobs    blob.Store
	out      io.Writer
}

// Constructors swapped in tests.
var (
	newLogger   = logger.New
	newRegistry = prometheus.NewRegistry
)

// newApp wires the command dependencies. On error everything opened so far
// is released.
func newApp(ctx context.Context, flags globalFlags, out io.Writer) (_ *app, err error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, out: out, registry: newRegistry()}
	defer func() {
		if err != nil {
			a.close(ctx, false)
		}
	}()

	opts := []core.ServiceOption{core.WithLogger(core.NewZapLogger(log))}
	metrics, err := core.NewPrometheusMetricsRecorder("afya", a.registry)
	if err != nil {
		return nil, err
	}
	opts = append(opts, core.WithMetricsRecorder(metrics))
	if flags.trace {
		a.provider = tracing.NewProvider(log)
		opts = append(opts, core.WithTracer(core.NewOTelTracer(a.provider)))
	}

	store, err := core.OpenStore(cfg.StorageConfig(), core.NewDefaultRulesEngine(nil))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store
	a.svc = core.NewService(store, opts...)

	ranges, err := cfg.ReferenceRanges()
	if err != nil {
		return nil, err
	}
	a.gen = report.NewGenerator(a.svc,
		report.WithReferenceRanges(ranges),
		report.WithGraceDays(cfg.Report.GraceDays),
		report.WithRiskYears(cfg.Report.RiskYears),
		report.WithLocation(cfg.Location()),
	)

	lang := cfg.Language()
	if flags.lang != "" {
		if lang, err = present.ParseLang(flags.lang); err != nil {
			return nil, err
		}
	}
	a.printer = present.NewPrinter(nil, lang)
	log.Debug("afya ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", cfg.Blob.Driver),
		zap.String("lang", string(lang)))
	return a, nil
}

// archiver opens the blob store on first use so that commands that never
// archive do not need object storage configured.
func (a *app) archiver(ctx context.Context) (*archive.Archiver, error) {
	if a.blobs == nil {
		store, err := blob.Open(ctx, a.cfg.BlobConfig())
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.blobs = store
	}
	return archive.New(a.blobs), nil
}

func (a *app) close(ctx context.Context, dumpMetrics bool) {
	if dumpMetrics {
		a.writeMetrics(os.Stderr)
	}
	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			a.log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("store close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// writeMetrics prints the operation counters as "operation result count".
func (a *app) writeMetrics(w io.Writer) {
	families, err := a.registry.Gather()
	if err != nil {
		a.log.Warn("gather metrics failed", zap.Error(err))
		return
	}
	var lines []string
	for _, mf := range families {
		if mf.GetName() != "afya_service_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := labelMap(m)
			lines = append(lines, fmt.Sprintf("%s %s %.0f", labels["operation"], labels["result"], m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Exit codes.
const (
	exitFailure    = 1
	exitValidation = 2
	exitNotFound   = 3
	exitRejected   = 4
)

func exitCode(err error) int {
	var (
		vErr  domain.ValidationError
		nfErr domain.NotFoundError
		lcErr domain.LifecycleError
		rvErr domain.RuleViolationError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &lcErr):
		return exitValidation
	case errors.As(err, &nfErr):
		return exitNotFound
	case errors.As(err, &rvErr):
		return exitRejected
	}
	return exitFailure
}
