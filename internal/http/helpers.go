package http

import (
	"html/template"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
)

var templateFuncs = template.FuncMap{
	"yen": core.FormatYen,
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type kindOption struct {
	Value string
	Label string
}

var kindOptions = []kindOption{
	{Value: string(core.Expense), Label: core.Expense.Label()},
	{Value: string(core.Income), Label: core.Income.Label()},
}

// rowView is one line of the window grid. No is the 1-based number shown
// to the user; Position addresses the record in the full sequence.
type rowView struct {
	No       int
	Position int
	Date     string
	DateISO  string
	Kind     string
	KindName string
	Category string
	Amount   int64
	Income   bool
}

type windowView struct {
	Days     int
	From     string
	To       string
	Revision uint64
	Rows     []rowView
	Income   int64
	Expense  int64
	Balance  int64
	Kinds    []kindOption
}

func newWindowView(v ledger.View, days int) windowView {
	totals := v.Totals()
	wv := windowView{
		Days:     days,
		From:     v.From.String(),
		To:       v.To.String(),
		Revision: v.Revision,
		Rows:     make([]rowView, 0, len(v.Rows)),
		Income:   totals.Income,
		Expense:  totals.Expense,
		Balance:  totals.Balance(),
		Kinds:    kindOptions,
	}
	for i, row := range v.Rows {
		r := row.Record
		wv.Rows = append(wv.Rows, rowView{
			No:       i + 1,
			Position: row.Position,
			Date:     r.Date.String(),
			DateISO:  r.Date.ISO(),
			Kind:     string(r.Kind),
			KindName: r.Kind.Label(),
			Category: r.Category,
			Amount:   r.Amount,
			Income:   r.Kind == core.Income,
		})
	}
	return wv
}
