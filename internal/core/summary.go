package core

// Totals holds the income and expense sums of a record set. The two sums
// are kept apart and never netted.
type Totals struct {
	Income  int64
	Expense int64
}

// Balance returns income minus expense, for display.
func (t Totals) Balance() int64 {
	return t.Income - t.Expense
}

// SumTotals adds up amounts per kind.
func SumTotals(records []Record) Totals {
	var t Totals
	for _, r := range records {
		switch r.Kind {
		case Income:
			t.Income += r.Amount
		case Expense:
			t.Expense += r.Amount
		}
	}
	return t
}

// ChangeOp names a ledger mutation.
type ChangeOp string

const (
	OpAppend ChangeOp = "append"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
	OpReload ChangeOp = "reload"
)

// Change describes a committed mutation of the ledger.
type Change struct {
	Op        ChangeOp
	Positions []int
	Revision  uint64
}
