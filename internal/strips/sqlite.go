package strips

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteStripTable = "strips"

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the strip database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite strip store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite strip store: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,%s
	)`, sqliteStripTable, stripTableColumnsDDL())
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create strip table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Strip, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", stripColumnList(), sqliteStripTable)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Strip{}
	for rows.Next() {
		strip, err := scanStrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, strip)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Strip, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", stripColumnList(), sqliteStripTable)
	strip, err := scanStrip(s.db.QueryRowContext(ctx, query, strings.TrimSpace(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return Strip{}, ErrStripNotFound
	}
	if err != nil {
		return Strip{}, err
	}
	return strip, nil
}

func (s *SQLiteStore) Put(ctx context.Context, strip Strip) error {
	strip.ID = strings.TrimSpace(strip.ID)
	if err := strip.validate(); err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(stripColumns)), ", ")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		sqliteStripTable, stripColumnList(), placeholders, stripUpdateAssignments(),
	)
	_, err := s.db.ExecContext(ctx, query, stripArgs(strip)...)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", sqliteStripTable)
	result, err := s.db.ExecContext(ctx, query, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStripNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
