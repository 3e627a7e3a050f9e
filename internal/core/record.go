package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

// Japanese labels as they appear in the タイプ column.
const (
	LabelExpense = "支出"
	LabelIncome  = "収入"
)

const maxCategoryLen = 100

type (
	Kind string

	// Date is a calendar date without time component. A Date read from a
	// malformed cell keeps the original text in raw and reports !Valid().
	Date struct {
		time.Time
		raw string
	}

	// Record is one ledger entry. Amount is a non-negative magnitude in whole
	// yen; the sign is derived from Kind at display boundaries only.
	Record struct {
		Date     Date
		Kind     Kind
		Category string
		Amount   int64
	}
)

var dateLayouts = []string{
	"2006/01/02",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006/1/2",
	"2006-1-2",
	time.RFC3339,
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses the date formats found in kakeibo files and forms.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// LenientDate parses s and, on failure, returns an invalid Date that keeps s
// verbatim so the row survives a rewrite of the table.
func LenientDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Date{raw: strings.TrimSpace(s)}
	}
	return d
}

// Valid reports whether d holds a real calendar date.
func (d Date) Valid() bool {
	return !d.IsZero()
}

// Raw returns the unparsed text for invalid dates.
func (d Date) Raw() string {
	return d.raw
}

func (d Date) String() string {
	if !d.Valid() {
		return d.raw
	}
	return d.Format("2006/01/02")
}

// ISO renders the date as YYYY-MM-DD (HTML date inputs).
func (d Date) ISO() string {
	if !d.Valid() {
		return ""
	}
	return d.Format("2006-01-02")
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Equal compares calendar dates; invalid dates compare by raw text.
func (d Date) Equal(o Date) bool {
	if d.Valid() != o.Valid() {
		return false
	}
	if !d.Valid() {
		return d.raw == o.raw
	}
	return d.Time.Equal(o.Time)
}

// ParseKind accepts the identifiers and the Japanese labels.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSpace(s) {
	case string(Expense), LabelExpense:
		return Expense, nil
	case string(Income), LabelIncome:
		return Income, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

func (k Kind) Valid() bool {
	return k == Expense || k == Income
}

// Label returns the Japanese column label.
func (k Kind) Label() string {
	switch k {
	case Expense:
		return LabelExpense
	case Income:
		return LabelIncome
	}
	return string(k)
}

// SignedAmount returns the amount with expenses negated.
func (r Record) SignedAmount() int64 {
	if r.Kind == Expense {
		return -r.Amount
	}
	return r.Amount
}

// Equal compares records field by field.
func (r Record) Equal(o Record) bool {
	return r.Date.Equal(o.Date) &&
		r.Kind == o.Kind &&
		r.Category == o.Category &&
		r.Amount == o.Amount
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s %s %d", r.Date, r.Kind.Label(), r.Category, r.Amount)
}

// Normalize returns r with the category trimmed, the form in which it is
// stored and read back.
func (r Record) Normalize() Record {
	r.Category = strings.TrimSpace(r.Category)
	return r
}

// Validate checks every field and reports all violations at once.
func (r Record) Validate() error {
	var violations []string
	if r.Amount < 0 {
		violations = append(violations, "amount must not be negative")
	}
	if !r.Date.Valid() {
		violations = append(violations, "date is not a valid calendar date")
	}
	if !r.Kind.Valid() {
		violations = append(violations, fmt.Sprintf("kind %q must be expense or income", r.Kind))
	}
	cat := strings.TrimSpace(r.Category)
	if cat == "" {
		violations = append(violations, "category must not be empty")
	} else if utf8.RuneCountInString(cat) > maxCategoryLen {
		violations = append(violations, fmt.Sprintf("category too long (max %d characters)", maxCategoryLen))
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
