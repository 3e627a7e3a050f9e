package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func newDeleteCommand(e *env) *cobra.Command {
	var f recordFlags
	var revision uint64
	var match bool

	cmd := &cobra.Command{
		Use:   "delete <pos>...",
		Short: "Remove records by position",
		Long: "Remove the records at the given positions, as printed by list, in one write.\n" +
			"With --match, remove the single record equal to the record flags instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if match {
				if len(args) > 0 {
					return errors.New("--match takes no positions")
				}
				return runDeleteMatching(cmd, e, &f)
			}
			if len(args) == 0 {
				return errors.New("no positions given")
			}
			positions, err := parsePositions(args)
			if err != nil {
				return err
			}
			return runDelete(cmd, e, positions, revision)
		},
	}
	f.register(cmd)
	cmd.Flags().Uint64Var(&revision, "revision", 0, "fail if the ledger changed since this revision")
	cmd.Flags().BoolVar(&match, "match", false, "delete the record matching --date, --kind, --category and --amount")

	return cmd
}

func runDelete(cmd *cobra.Command, e *env, positions []int, revision uint64) error {
	ctx := cmd.Context()
	l, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.Service.Delete(ctx, revision, positions); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d record(s)\n", len(positions))
	return nil
}

func runDeleteMatching(cmd *cobra.Command, e *env, f *recordFlags) error {
	ctx := cmd.Context()
	l, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	target, err := f.apply(cmd, core.Record{Date: l.Service.Today(), Kind: core.Expense})
	if err != nil {
		return err
	}
	if err := l.Service.DeleteMatching(ctx, target); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted: %s\n", target)
	return nil
}
