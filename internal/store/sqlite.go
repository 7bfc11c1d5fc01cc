package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) InsertVisit(ctx context.Context, v Visit) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO visits(client_ip, date) VALUES(?, ?)`, v.ClientIP, v.Date)
	if err != nil {
		return classifySQLite(err, ErrStoreWriteFailed)
	}
	return nil
}

func (s *SQLite) RecentVisits(ctx context.Context, limit int) ([]Visit, error) {
	res := []Visit{}
	if limit <= 0 {
		return res, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT client_ip, date FROM visits ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classifySQLite(err, ErrStoreUnavailable)
	}
	defer rows.Close()
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ClientIP, &v.Date); err != nil {
			return nil, fmt.Errorf("%w: scan visit: %v", ErrStoreUnavailable, err)
		}
		res = append(res, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite(err, ErrStoreUnavailable)
	}
	return res, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

// classifySQLite reports errors meaning the database could not be reached
// in time as ErrStoreUnavailable, and everything else as def.
func classifySQLite(err error, def error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", def, err)
}

// Migrate ensures schema exists
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_ip TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_visits_date ON visits(date);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
