// Package sqlite persists dispatch history. The ledger is an audit trail, not
// a queue: the coordinator writes a row when a dispatch starts and finalizes
// it with the outcome.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"wikiaudio/internal/domain"
	"wikiaudio/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Ledger struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewLedger(dataDir string) (*Ledger, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "wikiaudio.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) RecordStart(pageTitle, sourceURL string, mode domain.DownloadMode) (int64, error) {
	res, err := l.db.Exec(
		`INSERT INTO dispatches (page_title, source_url, mode, status, created_at)
		 VALUES (?, ?, ?, 'pending', ?)`,
		pageTitle, sourceURL, string(mode), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert dispatch: %w", err)
	}
	return res.LastInsertId()
}

func (l *Ledger) RecordOutcome(id int64, filename string, byteSize int64, dispatchErr error) error {
	status := "done"
	var kind, detail string
	if dispatchErr != nil {
		status = "failed"
		kind = string(domain.KindOf(dispatchErr))
		detail = dispatchErr.Error()
	}

	_, err := l.db.Exec(
		`UPDATE dispatches
		 SET status = ?, filename = ?, byte_size = ?, error_kind = ?, error_detail = ?, completed_at = ?
		 WHERE id = ?`,
		status, filename, byteSize, kind, detail, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update dispatch %d: %w", id, err)
	}
	return nil
}

func (l *Ledger) Recent(limit int) ([]port.DispatchRecord, error) {
	rows, err := l.db.Query(
		`SELECT id, page_title, source_url, mode, status, filename, byte_size,
		        error_kind, error_detail, created_at, completed_at
		 FROM dispatches ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []port.DispatchRecord
	for rows.Next() {
		var r port.DispatchRecord
		var mode string
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.PageTitle, &r.SourceURL, &mode, &r.Status,
			&r.Filename, &r.ByteSize, &r.ErrorKind, &r.ErrorDetail, &r.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		r.Mode = domain.DownloadMode(mode)
		if completedAt.Valid {
			r.CompletedAt = completedAt.Time
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

var _ port.DispatchLedger = (*Ledger)(nil)
