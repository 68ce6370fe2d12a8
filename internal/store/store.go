// Package store persists canonical transactions and enforces that a
// transaction ID is stored at most once.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankfeed/internal/apperrors"
	"github.com/cleared-dev/bankfeed/internal/model"
)

// Outcome is the result of saving one transaction.
type Outcome int

const (
	Inserted Outcome = iota + 1
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	}
	return "unknown"
}

// SaveResult aggregates a SaveMany call.
type SaveResult struct {
	Inserted   int
	Duplicates int
}

// Add folds another result into r.
func (r *SaveResult) Add(o SaveResult) {
	r.Inserted += o.Inserted
	r.Duplicates += o.Duplicates
}

// Gateway is the storage boundary used by the watcher and CLI.
type Gateway interface {
	// Save inserts t. An existing ID yields Duplicate with a nil error.
	Save(ctx context.Context, t model.Transaction) (Outcome, error)
	// SaveMany saves each transaction independently; a failure on one does
	// not stop the rest. The error joins every individual failure.
	SaveMany(ctx context.Context, ts []model.Transaction) (SaveResult, error)
	Get(ctx context.Context, id string) (*model.Transaction, error)
	Query(ctx context.Context, f Filter) ([]model.Transaction, error)
	// Count ignores the filter's Limit and Offset.
	Count(ctx context.Context, f Filter) (int, error)
	Delete(ctx context.Context, id string) error
	UpdateCategory(ctx context.Context, id, category string) error
	DistinctValues(ctx context.Context, field string) ([]string, error)
	Close() error
}

// Filter narrows Query and Count. Zero values mean "no constraint".
type Filter struct {
	From      time.Time // inclusive
	To        time.Time // inclusive
	Bank      string
	AccountID string
	// Category matches either the assigned or the bank-provided category.
	Category  string
	Type      model.TransactionType
	MinAmount decimal.NullDecimal
	MaxAmount decimal.NullDecimal
	Limit     int
	Offset    int
}

// ErrInvalidField is returned by DistinctValues for unsupported columns.
var ErrInvalidField = errors.New("invalid field")

var distinctFields = map[string]bool{
	"category":          true,
	"original_category": true,
	"bank_source":       true,
	"account_id":        true,
}

func checkDistinctField(field string) error {
	if !distinctFields[field] {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

type saveFunc func(ctx context.Context, t model.Transaction) (Outcome, error)

// saveEach applies save to every transaction, counting outcomes.
func saveEach(ctx context.Context, save saveFunc, ts []model.Transaction) (SaveResult, error) {
	var (
		res  SaveResult
		errs []error
	)
	for _, t := range ts {
		o, err := save(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("saving %s: %w", t.ID, err))
			continue
		}
		switch o {
		case Inserted:
			res.Inserted++
		case Duplicate:
			res.Duplicates++
		}
	}
	return res, errors.Join(errs...)
}

func notFound(id string) error {
	return fmt.Errorf("transaction %s: %w", id, apperrors.ErrNotFound)
}
