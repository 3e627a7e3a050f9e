package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"

	_ "modernc.org/sqlite"
)

var (
	_ ports.Table          = (*SQLiteRepository)(nil)
	_ ports.TaxonomyReader = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; the ledger rewrites the whole table per save.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements sheets.Table
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Record, error) {
	rows, err := r.queries.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", core.ErrStorageUnavailable, err)
	}
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		kind, err := core.ParseKind(row.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", core.ErrStorageUnavailable, row.Position, err)
		}
		out = append(out, core.Record{
			Date:     core.LenientDate(row.Date),
			Kind:     kind,
			Category: row.Category,
			Amount:   row.Amount,
		})
	}
	return out, nil
}

// Save implements sheets.Table. The previous snapshot is replaced inside a
// single transaction.
func (r *SQLiteRepository) Save(ctx context.Context, records []core.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", core.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllRecords(ctx); err != nil {
		return fmt.Errorf("%w: clear records: %v", core.ErrStorageUnavailable, err)
	}
	for i, rec := range records {
		err := q.InsertRecord(ctx, RecordRow{
			Position: int64(i),
			Date:     rec.Date.String(),
			Kind:     string(rec.Kind),
			Category: rec.Category,
			Amount:   rec.Amount,
		})
		if err != nil {
			return fmt.Errorf("%w: insert record %d: %v", core.ErrStorageUnavailable, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", core.ErrStorageUnavailable, err)
	}

	slog.DebugContext(ctx, "Ledger snapshot saved to SQLite", "records", len(records))
	return nil
}

// Categories implements sheets.TaxonomyReader
func (r *SQLiteRepository) Categories(ctx context.Context, kind core.Kind) ([]string, error) {
	cats, err := r.queries.ListCategories(ctx, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list categories for %s: %w", kind, err)
	}
	return cats, nil
}
