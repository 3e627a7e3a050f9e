package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/amqp"
	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	klog "kakeibo/internal/log"
	"kakeibo/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(1)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger = logger.WithComponent(klog.ComponentWorker)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", klog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.Info("Starting kakeibo-worker",
		klog.FieldBackend, cfg.DataBackend,
		"mirror_backend", cfg.MirrorBackend,
		"interval", cfg.MirrorInterval)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker failed", klog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *klog.Logger) error {
	factory := backend.NewFactory(logger.Logger.With(klog.FieldComponent, klog.ComponentBackend))

	source, err := openBackend(ctx, factory, cfg, backend.FromAppConfig)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer source.Cleanup.Close()

	mirror, err := openBackend(ctx, factory, cfg, backend.MirrorFromAppConfig)
	if err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	defer mirror.Cleanup.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect AMQP: %w", err)
	}
	defer client.Close()

	w := worker.NewMirrorWorker(source.Table, mirror.Table)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(client.ConsumeChanges(gctx, w.HandleChange))
	})
	g.Go(func() error {
		return w.Run(gctx, cfg.MirrorInterval)
	})
	return g.Wait()
}

func openBackend(ctx context.Context, f backend.Factory, cfg *config.Config,
	build func(*config.Config) (backend.Config, error)) (*backend.BackendResult, error) {
	bcfg, err := build(cfg)
	if err != nil {
		return nil, err
	}
	return f.CreateBackend(ctx, bcfg)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
