package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"invoicesync/internal/config"
	"invoicesync/internal/database"
	"invoicesync/internal/database/migration"
	"invoicesync/internal/http/middleware"
	"invoicesync/internal/logging"
	"invoicesync/internal/metrics"
	"invoicesync/internal/model"
	"invoicesync/internal/otel"
	"invoicesync/internal/repository"
	"invoicesync/internal/repository/csvfile"
	"invoicesync/internal/repository/postgres"
	"invoicesync/internal/service"
	"invoicesync/internal/settings"
	"invoicesync/internal/storage"
	"invoicesync/internal/voucher"
)

// app holds everything a command needs. close releases it in reverse order.
type app struct {
	cfg      *config.AppConfig
	log      *slog.Logger
	registry *prometheus.Registry
	sync     *service.SyncService
	closers  []func() error
}

// newApp wires the process. When uploads is false the voucher client, the archive and the
// settings file are left out, so read-only commands never prompt or touch the network.
func newApp(ctx context.Context, cfg *config.AppConfig, uploads bool) (*app, error) {
	logger, closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	a := &app{cfg: cfg, log: logger, registry: prometheus.NewRegistry()}
	a.closers = append(a.closers, closeLog)

	shutdown, err := otel.Init(ctx, logging.Component(logger, "otel"))
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	ledgerRepo, err := a.openLedger(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	var uploader service.Uploader = readOnlyUploader{}
	if uploads {
		if uploader, err = a.newUploader(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	syncMetrics, err := metrics.NewSyncMetrics(a.registry)
	if err != nil {
		a.close()
		return nil, err
	}

	a.sync = service.NewSyncService(
		csvfile.NewInvoiceCSV(logger),
		ledgerRepo,
		uploader,
		syncMetrics,
		logging.Component(logger, "sync"),
	)
	return a, nil
}

func (a *app) openLedger(ctx context.Context) (repository.LedgerRepository, error) {
	switch a.cfg.LedgerBackend {
	case config.LedgerBackendCSV:
		return csvfile.NewLedgerCSV(a.cfg.LedgerPath), nil
	case config.LedgerBackendPostgres:
		db, err := database.NewPostgres(ctx, a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := migration.EnsureMigrated(ctx, db, logging.Component(a.log, "migration"), a.cfg.Database.Host); err != nil {
			return nil, err
		}
		return postgres.NewLedgerPostgres(db), nil
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", a.cfg.LedgerBackend)
	}
}

func (a *app) newUploader(ctx context.Context) (service.Uploader, error) {
	prom, err := middleware.NewPrometheusMiddleware(a.registry)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(middleware.Chain(http.DefaultTransport,
			middleware.RequestID(),
			middleware.Logger(logging.Component(a.log, "voucher_api")),
			prom.Middleware(),
		)),
	}
	client := voucher.NewClient(a.cfg.VoucherAPI.BaseURL, httpClient, a.cfg.VoucherAPI.Timeout)

	resolver := settings.NewFileResolver(a.cfg.SettingsPath, settings.NewLinePrompter(os.Stdin, os.Stdout), a.log)
	// Ask for a missing key up front rather than in the middle of the first upload.
	if _, err := resolver.APIKey(ctx); err != nil {
		return nil, fmt.Errorf("api key: %w", err)
	}

	var archive storage.Archive
	if a.cfg.MinIO.Enabled() {
		if archive, err = storage.NewMinIO(ctx, a.cfg.MinIO); err != nil {
			return nil, fmt.Errorf("failed to initialize attachment archive: %w", err)
		}
	}

	return service.NewVoucherUploader(client, resolver, archive, logging.Component(a.log, "uploader")), nil
}

// writeMetrics exports the registry when METRICS_TEXTFILE is set. Failures are only logged.
func (a *app) writeMetrics() {
	if a.cfg.MetricsTextfile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsTextfile, a.registry); err != nil {
		a.log.Warn("metrics textfile not written", "event", "metrics_write_failed", "path", a.cfg.MetricsTextfile, "error", err.Error())
	}
}

func (a *app) close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}

// readOnlyUploader backs commands that must never upload.
type readOnlyUploader struct{}

func (readOnlyUploader) Upload(context.Context, model.Invoice) error {
	return errors.New("uploads are disabled for this command")
}
