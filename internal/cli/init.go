// Package cli provides the process bootstrap shared by cmd/kakeibo and
// cmd/kakeibo-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kakeibo/internal/amqp"
	"kakeibo/internal/backend"
	"kakeibo/internal/config"
	"kakeibo/internal/ledger"
	klog "kakeibo/internal/log"
	"kakeibo/internal/services"
	"kakeibo/internal/sheets"
	"kakeibo/internal/taxonomy"
)

// SetupLogger builds the process logger at the given LOG_LEVEL and installs
// it as the slog default.
func SetupLogger(w io.Writer, level string) (*klog.Logger, error) {
	lvl, err := klog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := klog.NewText(w, lvl, klog.ComponentApp)
	klog.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// LoadAndValidateConfig loads the environment configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Ledger is an opened ledger together with the capabilities of its backend.
type Ledger struct {
	Service  *services.LedgerService
	Taxonomy sheets.TaxonomyReader
	Watcher  backend.Watcher // nil when external edits cannot be observed
}

// Close releases the publisher and the backend.
func (l *Ledger) Close() error {
	return l.Service.Close()
}

// OpenLedger creates the configured backend and the service driving it.
// Changes are published when AMQP_URL is set; an unreachable broker is
// logged and the ledger opens without notifications.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *klog.Logger) (*Ledger, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger.With(klog.FieldComponent, klog.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}

	tax := res.Taxonomy
	if tax == nil {
		t, err := taxonomy.Load(cfg.CategoriesFile)
		if err != nil {
			res.Cleanup.Close()
			return nil, err
		}
		tax = t
	}

	var pub services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, changes will not be published", klog.FieldError, err)
		} else {
			pub = client
		}
	}

	store := ledger.New(res.Table, ledger.WithLogger(logger.Logger.With(klog.FieldComponent, klog.ComponentLedger)))
	svc := services.NewLedgerService(store, pub, res.Cleanup)

	l := &Ledger{Service: svc, Taxonomy: tax}
	if res.Watcher != nil && cfg.WatchFile {
		l.Watcher = res.Watcher
	}
	return l, nil
}
