package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// SQLite is a Gateway backed by a local SQLite file.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Gateway = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path with WAL
// journaling, and initializes the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, t model.Transaction) (Outcome, error) {
	rec := toRecord(t)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.args()...)
	if err != nil {
		if isSQLiteDuplicate(err) {
			return Duplicate, nil
		}
		return 0, fmt.Errorf("inserting transaction %s: %w", t.ID, err)
	}
	return Inserted, nil
}

func isSQLiteDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *SQLite) SaveMany(ctx context.Context, ts []model.Transaction) (SaveResult, error) {
	return saveEach(ctx, s.Save, ts)
}

func (s *SQLite) Get(ctx context.Context, id string) (*model.Transaction, error) {
	var rec record
	err := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM transactions WHERE id = ?`, id).Scan(rec.targets()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("getting transaction %s: %w", id, err)
	}
	t, err := rec.transaction()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLite) Query(ctx context.Context, f Filter) ([]model.Transaction, error) {
	q, args := selectQuery(sqliteDialect, columns, f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var rec record
		if err := rows.Scan(rec.targets()...); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t, err := rec.transaction()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) Count(ctx context.Context, f Filter) (int, error) {
	q, args := countQuery(sqliteDialect, f)
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	return requireAffected(res, id)
}

func (s *SQLite) UpdateCategory(ctx context.Context, id, category string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET category = ? WHERE id = ?`, optional(category), id)
	if err != nil {
		return fmt.Errorf("updating category of %s: %w", id, err)
	}
	return requireAffected(res, id)
}

func (s *SQLite) DistinctValues(ctx context.Context, field string) ([]string, error) {
	if err := checkDistinctField(field); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, distinctQuery(field))
	if err != nil {
		return nil, fmt.Errorf("listing distinct %s: %w", field, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", field, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func distinctQuery(field string) string {
	return fmt.Sprintf(`SELECT DISTINCT %[1]s FROM transactions WHERE %[1]s IS NOT NULL AND %[1]s <> '' ORDER BY %[1]s`, field)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}
