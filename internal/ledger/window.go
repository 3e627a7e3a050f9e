package ledger

import (
	"time"

	"kakeibo/internal/core"
)

// DefaultWindowDays is the length of the trailing window shown to users.
const DefaultWindowDays = 7

// Row is a record paired with its position in the full sequence.
type Row struct {
	Position int
	Record   core.Record
}

// View is the result of a trailing-window query.
type View struct {
	From     core.Date
	To       core.Date
	Rows     []Row
	Revision uint64
}

// Records returns the records of the view in order.
func (v View) Records() []core.Record {
	out := make([]core.Record, len(v.Rows))
	for i, row := range v.Rows {
		out[i] = row.Record
	}
	return out
}

// Totals sums the records of the view per kind.
func (v View) Totals() core.Totals {
	return core.SumTotals(v.Records())
}

// Window selects the records dated within [now-days, now], both ends
// inclusive, keeping their relative order. Records without a valid date are
// skipped.
func Window(records []core.Record, now time.Time, days int) View {
	if days <= 0 {
		days = DefaultWindowDays
	}
	to := core.DateOf(now)
	from := to.AddDays(-days)

	v := View{From: from, To: to, Rows: []Row{}}
	for i, r := range records {
		if !r.Date.Valid() {
			continue
		}
		if r.Date.Before(from.Time) || r.Date.After(to.Time) {
			continue
		}
		v.Rows = append(v.Rows, Row{Position: i, Record: r})
	}
	return v
}
