package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finflare/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is a per-browser key-value store. It keeps the bearer
// token across front-end restarts.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps modernc sqlite away from SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: NewQueries(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Get returns "" with a nil error when sid has no value under key.
func (r *SQLiteRepository) Get(ctx context.Context, sid, key string) (string, error) {
	v, err := r.queries.GetValue(ctx, sid, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, sid, key, value string) error {
	if err := r.queries.PutValue(ctx, sid, key, value, r.now()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, sid, key string) error {
	if err := r.queries.DeleteValue(ctx, sid, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Prune removes values untouched for longer than maxAge.
func (r *SQLiteRepository) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := r.queries.DeleteOlderThan(ctx, r.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune client storage: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Pruned stale client storage", "rows", n)
	}
	return n, nil
}

// TokenStore returns a session token store bound to sid.
func (r *SQLiteRepository) TokenStore(sid, key string) *TokenStore {
	return &TokenStore{repo: r, sid: sid, key: key}
}

// TokenStore persists one value for one sid.
type TokenStore struct {
	repo *SQLiteRepository
	sid  string
	key  string
}

func (t *TokenStore) Load(ctx context.Context) (string, error) {
	return t.repo.Get(ctx, t.sid, t.key)
}

func (t *TokenStore) Save(ctx context.Context, token string) error {
	return t.repo.Set(ctx, t.sid, t.key, token)
}

func (t *TokenStore) Clear(ctx context.Context) error {
	return t.repo.Delete(ctx, t.sid, t.key)
}
