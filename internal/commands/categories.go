package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
)

func newCategoriesCommand(e *env) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the suggested categories of a kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := core.ParseKind(kind)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			l, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer l.Close()

			cats, err := l.Taxonomy.Categories(ctx, k)
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "expense", "expense (支出) or income (収入)")

	return cmd
}
