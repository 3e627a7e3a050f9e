package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func newAddCommand(e *env) *cobra.Command {
	var f recordFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a record to the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdd(cmd, e, &f)
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runAdd(cmd *cobra.Command, e *env, f *recordFlags) error {
	ctx := cmd.Context()
	l, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	r, err := f.apply(cmd, core.Record{Date: l.Service.Today(), Kind: core.Expense})
	if err != nil {
		return err
	}
	pos, err := l.Service.Add(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %d: %s\n", pos, r)
	return nil
}
