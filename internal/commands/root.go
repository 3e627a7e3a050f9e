// Package commands implements the kakeibo command line.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	klog "kakeibo/internal/log"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

// env carries the state shared by every subcommand once the root's
// pre-run hook has loaded it.
type env struct {
	envFile    string
	ledgerFile string
	backend    string
	logLevel   string

	now    func() time.Time
	cfg    *config.Config
	logger *klog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(time.Now)
}

func newRootCommand(now func() time.Time) *cobra.Command {
	e := &env{now: now}

	rootCmd := &cobra.Command{
		Use:     "kakeibo",
		Short:   "Household ledger kept in a spreadsheet",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&e.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&e.ledgerFile, "file", "", "ledger workbook (overrides KAKEIBO_FILE)")
	flags.StringVar(&e.backend, "backend", "",
		"ledger backend, one of "+strings.Join(backend.GetBackendTypeStrings(), ", ")+" (overrides DATA_BACKEND)")
	flags.StringVar(&e.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(
		newServeCommand(e),
		newAddCommand(e),
		newListCommand(e),
		newEditCommand(e),
		newDeleteCommand(e),
		newTotalsCommand(e),
		newExportCommand(e),
		newCategoriesCommand(e),
	)

	return rootCmd
}

func (e *env) load(cmd *cobra.Command) error {
	if err := cli.LoadEnvFile(e.envFile); err != nil {
		return fmt.Errorf("loading %s: %w", e.envFile, err)
	}

	cfg := config.Load()
	if e.ledgerFile != "" {
		cfg.LedgerFile = e.ledgerFile
	}
	if e.backend != "" {
		cfg.DataBackend = e.backend
	}
	if e.logLevel != "" {
		cfg.LogLevel = e.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cli.SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = logger
	return nil
}

// open returns the configured ledger. Callers close it.
func (e *env) open(ctx context.Context) (*cli.Ledger, error) {
	l, err := cli.OpenLedger(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	l.Service.SetClock(e.now)
	return l, nil
}
