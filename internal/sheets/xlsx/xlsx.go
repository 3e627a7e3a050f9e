// Package xlsx stores the ledger in a single-sheet Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

const (
	DefaultPath  = "kakeibo.xlsx"
	DefaultSheet = "Sheet1"

	dateFormat = "yyyy/mm/dd"
)

var _ ports.Table = (*Table)(nil)

// Table is a kakeibo workbook on the local filesystem.
type Table struct {
	mu     sync.Mutex
	path   string
	sheet  string
	income []string
	logger *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithSheet selects the worksheet holding the ledger.
func WithSheet(name string) Option {
	return func(t *Table) {
		if name != "" {
			t.sheet = name
		}
	}
}

// WithIncomeCategories sets the categories treated as income in workbooks
// that lack a タイプ column.
func WithIncomeCategories(cats []string) Option {
	return func(t *Table) { t.income = cats }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Table) { t.logger = l }
}

func New(path string, opts ...Option) *Table {
	if path == "" {
		path = DefaultPath
	}
	t := &Table{
		path:   path,
		sheet:  DefaultSheet,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Path returns the workbook location.
func (t *Table) Path() string { return t.path }

// Load reads every row of the ledger sheet. A missing workbook is created
// with just the header row.
func (t *Table) Load(ctx context.Context) ([]core.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := excelize.OpenFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		t.logger.InfoContext(ctx, "Ledger workbook not found, creating", "path", t.path)
		if err := t.saveLocked(nil); err != nil {
			return nil, err
		}
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrStorageUnavailable, t.path, err)
	}
	defer f.Close()

	sheet := t.sheet
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		// Files saved by other tools may name the sheet differently.
		list := f.GetSheetList()
		if len(list) == 0 {
			return []core.Record{}, nil
		}
		sheet = list[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrStorageUnavailable, t.path, err)
	}
	return ports.DecodeRows(rows, ports.DecodeOptions{
		ParseDate:        parseDateCell,
		IncomeCategories: t.income,
	})
}

// Save replaces the workbook with one holding exactly records. The new file
// is written next to the target and renamed over it.
func (t *Table) Save(_ context.Context, records []core.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked(records)
}

func (t *Table) saveLocked(records []core.Record) error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	tmp, err := os.CreateTemp(dir, ".kakeibo-*.xlsx")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := encode(tmp, t.sheet, records); err != nil {
		cleanup()
		return fmt.Errorf("%w: encode workbook: %v", core.ErrStorageUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: sync %s: %v", core.ErrStorageUnavailable, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %v", core.ErrStorageUnavailable, t.path, err)
	}
	return nil
}

// Encode writes records as a workbook in the persisted layout.
func Encode(w io.Writer, records []core.Record) error {
	return encode(w, DefaultSheet, records)
}

func encode(w io.Writer, sheet string, records []core.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return err
		}
	}

	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(dateFormat)})
	if err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []any{dateValue(r.Date), r.Kind.Label(), r.Category, r.Amount}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		if serialDate(r.Date) {
			if err := f.SetCellStyle(sheet, cell, cell, dateStyle); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 8)
	_ = f.SetColWidth(sheet, "C", "C", 15)
	_ = f.SetColWidth(sheet, "D", "D", 12)

	return f.Write(w)
}

// firstSerialDate is the first day whose Excel serial number is unaffected
// by the phantom 1900-02-29.
var firstSerialDate = core.NewDate(1900, 3, 1)

// serialDate reports whether d is written as a native date cell. Earlier
// dates are written as text.
func serialDate(d core.Date) bool {
	return d.Valid() && !d.Before(firstSerialDate.Time)
}

func dateValue(d core.Date) any {
	if !serialDate(d) {
		return d.String()
	}
	return d.Time
}

// parseDateCell handles raw cell values: Excel serial numbers for native date
// cells, text for everything else.
func parseDateCell(cell string) core.Date {
	cell = strings.TrimSpace(cell)
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return core.DateOf(t)
		}
	}
	return core.LenientDate(cell)
}

func strPtr(s string) *string { return &s }
