package backend

import (
	"context"

	"kakeibo/internal/sheets"
)

// Watcher is implemented by backends that can report external edits.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Close lets a CleanupFunc be registered as an io.Closer.
func (f CleanupFunc) Close() error {
	if f == nil {
		return nil
	}
	return f()
}

// BackendResult contains the ledger table and the optional capabilities of
// the selected backend.
type BackendResult struct {
	Table    sheets.Table
	Taxonomy sheets.TaxonomyReader // nil when the backend has no category list
	Watcher  Watcher               // nil when external edits cannot be observed
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Shared by the spreadsheet backends
	IncomeCategories []string

	// xlsx specific
	LedgerFile  string
	LedgerSheet string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID       string
	GoogleSheetName           string
	GoogleCategoriesSheetName string
	GoogleServiceAccountJSON  string
	GoogleServiceAccountFile  string
}

// BackendType represents the type of backend
type BackendType string

const (
	XLSXBackend   BackendType = "xlsx"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case XLSXBackend, SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
