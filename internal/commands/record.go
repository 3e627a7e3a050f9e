package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
)

// recordFlags are the --date/--kind/--category/--amount flags shared by the
// commands that build a record.
type recordFlags struct {
	date     string
	kind     string
	category string
	amount   string
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "date, e.g. 2024/05/20 (default today)")
	cmd.Flags().StringVar(&f.kind, "kind", "expense", "expense (支出) or income (収入)")
	cmd.Flags().StringVar(&f.category, "category", "", "category label")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in yen, e.g. 1,500")
}

func (f *recordFlags) given(cmd *cobra.Command) bool {
	for _, name := range []string{"date", "kind", "category", "amount"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// apply overwrites the fields of base whose flags were given and validates
// the result, reporting every violation at once.
func (f *recordFlags) apply(cmd *cobra.Command, base core.Record) (core.Record, error) {
	r := base
	var violations []string

	if cmd.Flags().Changed("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			violations = append(violations, err.Error())
		} else {
			r.Date = d
		}
	}
	if cmd.Flags().Changed("kind") {
		k, err := core.ParseKind(f.kind)
		if err != nil {
			violations = append(violations, err.Error())
		} else {
			r.Kind = k
		}
	}
	if cmd.Flags().Changed("category") {
		r.Category = f.category
	}
	if cmd.Flags().Changed("amount") {
		n, err := core.ParseAmount(f.amount)
		var ve *core.ValidationError
		switch {
		case errors.As(err, &ve):
			violations = append(violations, ve.Violations...)
		case err != nil:
			violations = append(violations, err.Error())
		default:
			r.Amount = n
		}
	}

	if len(violations) > 0 {
		return core.Record{}, &core.ValidationError{Violations: violations}
	}
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}
	return r, nil
}

func parsePositions(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid position %q", a)
		}
		out = append(out, n)
	}
	return out, nil
}

// printRows writes rows as an aligned table. No counts the displayed rows;
// Pos is the position accepted by edit and delete.
func printRows(w io.Writer, rows []ledger.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "No\tPos\t日付\tタイプ\t種類\t金額")
	for i, row := range rows {
		r := row.Record
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			i+1, row.Position, r.Date, r.Kind.Label(), r.Category, core.FormatYen(r.SignedAmount()))
	}
	return tw.Flush()
}

func printTotals(w io.Writer, t core.Totals) {
	fmt.Fprintf(w, "収入 %s  支出 %s  収支 %s\n",
		core.FormatYen(t.Income), core.FormatYen(t.Expense), core.FormatYen(t.Balance()))
}

func allRows(records []core.Record) []ledger.Row {
	rows := make([]ledger.Row, len(records))
	for i, r := range records {
		rows[i] = ledger.Row{Position: i, Record: r}
	}
	return rows
}
