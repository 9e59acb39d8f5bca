package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the client_storage statements.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const getValue = `SELECT value FROM client_storage WHERE sid = ? AND key = ?`

func (q *Queries) GetValue(ctx context.Context, sid, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, getValue, sid, key).Scan(&value)
	return value, err
}

const putValue = `
INSERT INTO client_storage (sid, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (sid, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (q *Queries) PutValue(ctx context.Context, sid, key, value string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, putValue, sid, key, value, at.UTC())
	return err
}

const deleteValue = `DELETE FROM client_storage WHERE sid = ? AND key = ?`

func (q *Queries) DeleteValue(ctx context.Context, sid, key string) error {
	_, err := q.db.ExecContext(ctx, deleteValue, sid, key)
	return err
}

const deleteOlderThan = `DELETE FROM client_storage WHERE updated_at < ?`

func (q *Queries) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteOlderThan, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
