package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// Postgres is a Gateway backed by a PostgreSQL connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

var _ Gateway = (*Postgres)(nil)

// pgColumns reads numeric and date columns back as text.
const pgColumns = `id, date::text, amount::text, description, account_id, account_type, bank_source, source_file,
	balance::text, original_category, category, transaction_type, merchant_name, location,
	foreign_amount::text, foreign_currency, created_at`

const pgUniqueViolation = "23505"

// OpenPostgres connects to dsn, pings, and initializes the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("database URL cannot be empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() error {
	if p.Pool != nil {
		p.Pool.Close()
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, t model.Transaction) (Outcome, error) {
	rec := toRecord(t)
	_, err := p.Pool.Exec(ctx,
		`INSERT INTO transactions (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.args()...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Duplicate, nil
		}
		return 0, fmt.Errorf("inserting transaction %s: %w", t.ID, err)
	}
	return Inserted, nil
}

func (p *Postgres) SaveMany(ctx context.Context, ts []model.Transaction) (SaveResult, error) {
	return saveEach(ctx, p.Save, ts)
}

func (p *Postgres) Get(ctx context.Context, id string) (*model.Transaction, error) {
	var rec record
	err := p.Pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM transactions WHERE id = $1`, id).Scan(rec.targets()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

func (p *Postgres) Query(ctx context.Context, f Filter) ([]model.Transaction, error) {
	q, args := selectQuery(postgresDialect, pgColumns, f)
	rows, err := p.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Transaction, error) {
		var rec record
		if err := row.Scan(rec.targets()...); err != nil {
			return model.Transaction{}, fmt.Errorf("scanning transaction: %w", err)
		}
		return rec.transaction()
	})
}

func (p *Postgres) Count(ctx context.Context, f Filter) (int, error) {
	q, args := countQuery(postgresDialect, f)
	var n int
	if err := p.Pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.Pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (p *Postgres) UpdateCategory(ctx context.Context, id, category string) error {
	tag, err := p.Pool.Exec(ctx, `UPDATE transactions SET category = $1 WHERE id = $2`, optional(category), id)
	if err != nil {
		return fmt.Errorf("updating category of %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (p *Postgres) DistinctValues(ctx context.Context, field string) ([]string, error) {
	if err := checkDistinctField(field); err != nil {
		return nil, err
	}
	rows, err := p.Pool.Query(ctx, distinctQuery(field))
	if err != nil {
		return nil, fmt.Errorf("listing distinct %s: %w", field, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
