package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type RecordRow struct {
	Position int64
	Date     string
	Kind     string
	Category string
	Amount   int64
}

const listRecords = `SELECT position, date, kind, category, amount FROM records ORDER BY position`

func (q *Queries) ListRecords(ctx context.Context) ([]RecordRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecordRow
	for rows.Next() {
		var i RecordRow
		if err := rows.Scan(&i.Position, &i.Date, &i.Kind, &i.Category, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAllRecords = `DELETE FROM records`

func (q *Queries) DeleteAllRecords(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllRecords)
	return err
}

const insertRecord = `INSERT INTO records (position, date, kind, category, amount) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertRecord(ctx context.Context, arg RecordRow) error {
	_, err := q.db.ExecContext(ctx, insertRecord, arg.Position, arg.Date, arg.Kind, arg.Category, arg.Amount)
	return err
}

const listCategories = `SELECT name FROM categories WHERE kind = ? ORDER BY sort_order, name`

func (q *Queries) ListCategories(ctx context.Context, kind string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
