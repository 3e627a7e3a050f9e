package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func newEditCommand(e *env) *cobra.Command {
	var f recordFlags
	var revision uint64

	cmd := &cobra.Command{
		Use:   "edit <pos>",
		Short: "Change fields of the record at a position",
		Long: "Change the record at <pos>, as printed by list. Fields without a flag\n" +
			"keep their current value.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			positions, err := parsePositions(args)
			if err != nil {
				return err
			}
			if !f.given(cmd) {
				return fmt.Errorf("nothing to change: pass at least one of --date, --kind, --category, --amount")
			}
			return runEdit(cmd, e, &f, positions[0], revision)
		},
	}
	f.register(cmd)
	cmd.Flags().Uint64Var(&revision, "revision", 0, "fail if the ledger changed since this revision")

	return cmd
}

func runEdit(cmd *cobra.Command, e *env, f *recordFlags, pos int, revision uint64) error {
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
	if pos >= len(records) {
		return fmt.Errorf("%w: %d (ledger has %d records)", core.ErrPositionOutOfRange, pos, len(records))
	}

	r, err := f.apply(cmd, records[pos])
	if err != nil {
		return err
	}
	if err := l.Service.Update(ctx, revision, pos, r); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %d: %s\n", pos, r)
	return nil
}
