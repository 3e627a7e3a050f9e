package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kakeibo/internal/cli"
	apphttp "kakeibo/internal/http"
	klog "kakeibo/internal/log"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(e *env) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				e.cfg.Port = port
			}
			return runServe(cmd, e)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func runServe(cmd *cobra.Command, e *env) error {
	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	logger := e.logger.WithComponent(klog.ComponentApp)
	l, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			logger.Error("Failed to close ledger", klog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+e.cfg.Port, l.Service, l.Taxonomy, apphttp.Options{
		WindowDays: e.cfg.WindowDays,
		CacheSize:  e.cfg.WindowCacheSize,
		Logger:     e.logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	// An unreadable ledger is reported per request; the UI still starts.
	if n, err := l.Service.Store().Len(ctx); err != nil {
		logger.Warn("Ledger not readable at startup", klog.FieldError, err)
	} else {
		logger.Info("Ledger loaded", "records", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting kakeibo server",
			"port", e.cfg.Port,
			klog.FieldBackend, e.cfg.DataBackend,
			klog.FieldWindowDays, e.cfg.WindowDays)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(srv.RunBackground(gctx))
	})
	if l.Watcher != nil {
		g.Go(func() error {
			return ignoreCanceled(l.Watcher.Watch(gctx, func() {
				if err := srv.Refresh(gctx); err != nil {
					logger.Warn("Failed to reload ledger after external edit", klog.FieldError, err)
					return
				}
				logger.Info("Ledger reloaded after external edit",
					klog.FieldRevision, l.Service.Store().Revision())
			}))
		})
	}

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
