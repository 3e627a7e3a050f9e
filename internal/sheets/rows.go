// Package sheets defines the storage ports of the ledger and the row codec
// shared by the spreadsheet-shaped backends.
package sheets

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// Column names of the persisted table, in order.
const (
	ColDate     = "日付"
	ColKind     = "タイプ"
	ColCategory = "種類"
	ColUsage    = "用途" // alternative category header
	ColAmount   = "金額"
)

// Header is the header row written by every backend.
var Header = []string{ColDate, ColKind, ColCategory, ColAmount}

// DefaultIncomeCategories decide the kind of rows in files without a タイプ
// column whose amount is not negative.
var DefaultIncomeCategories = []string{"給与", "賞与", "収入", "副収入"}

// DecodeOptions tunes DecodeRows for a particular backend.
type DecodeOptions struct {
	// ParseDate converts a date cell. Defaults to core.LenientDate.
	ParseDate func(cell string) core.Date
	// IncomeCategories is used when the table has no kind column.
	IncomeCategories []string
}

type columns struct {
	date, kind, category, amount int
}

// DecodeRows converts a cell matrix into records. The first row is treated as
// the header when it names the date column; otherwise the default column
// order is assumed and every row is data.
func DecodeRows(rows [][]string, opts DecodeOptions) ([]core.Record, error) {
	if opts.ParseDate == nil {
		opts.ParseDate = core.LenientDate
	}
	if opts.IncomeCategories == nil {
		opts.IncomeCategories = DefaultIncomeCategories
	}
	if len(rows) == 0 {
		return []core.Record{}, nil
	}

	cols := columns{date: 0, kind: 1, category: 2, amount: 3}
	start := 0
	if indexOf(rows[0], ColDate) != -1 {
		header := rows[0]
		cols = columns{
			date:     indexOf(header, ColDate),
			kind:     indexOf(header, ColKind),
			category: indexOf(header, ColCategory),
			amount:   indexOf(header, ColAmount),
		}
		if cols.category == -1 {
			cols.category = indexOf(header, ColUsage)
		}
		if cols.category == -1 || cols.amount == -1 {
			return nil, fmt.Errorf("%w: unexpected header %v", core.ErrStorageUnavailable, header)
		}
		start = 1
	}

	out := make([]core.Record, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		amount, err := parseCellAmount(safeGet(row, cols.amount))
		if err != nil {
			// Spreadsheet row numbers are 1-based.
			return nil, fmt.Errorf("%w: row %d: %v", core.ErrStorageUnavailable, i+1, err)
		}
		category := strings.TrimSpace(safeGet(row, cols.category))

		var kind core.Kind
		if cols.kind != -1 {
			k, err := core.ParseKind(safeGet(row, cols.kind))
			if err != nil {
				kind = inferKind(amount, category, opts.IncomeCategories)
			} else {
				kind = k
			}
		} else {
			kind = inferKind(amount, category, opts.IncomeCategories)
		}
		if amount < 0 {
			amount = -amount
		}

		out = append(out, core.Record{
			Date:     opts.ParseDate(safeGet(row, cols.date)),
			Kind:     kind,
			Category: category,
			Amount:   amount,
		})
	}
	return out, nil
}

// EncodeRow renders a record as cell values in Header order.
func EncodeRow(r core.Record) []any {
	return []any{r.Date.String(), r.Kind.Label(), r.Category, r.Amount}
}

func inferKind(amount int64, category string, income []string) core.Kind {
	if amount < 0 {
		return core.Expense
	}
	if indexOf(income, category) != -1 {
		return core.Income
	}
	return core.Expense
}

func parseCellAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimSuffix(s, "円")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", s)
	}
	return d.Round(0).IntPart(), nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// ToStrings converts a row of API values into trimmed strings.
func ToStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
