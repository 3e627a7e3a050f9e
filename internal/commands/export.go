package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kakeibo/internal/sheets/xlsx"
)

func newExportCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the whole ledger to an .xlsx workbook",
		Long:  "Write every record to <file> as an .xlsx workbook. Use - for standard output.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, e, args[0])
		},
	}
}

func runExport(cmd *cobra.Command, e *env, path string) error {
	ctx := cmd.Context()
	l, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	records, err := l.Service.Records(ctx)
	if err != nil {
		return err
	}

	if path == "-" {
		return xlsx.Encode(cmd.OutOrStdout(), records)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := writeAndClose(f, func(w io.Writer) error { return xlsx.Encode(w, records) }); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d record(s) to %s\n", len(records), path)
	return nil
}

func writeAndClose(f *os.File, write func(io.Writer) error) error {
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
