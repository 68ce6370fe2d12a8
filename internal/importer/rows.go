package importer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankfeed/internal/id"
	"github.com/cleared-dev/bankfeed/internal/logger"
	"github.com/cleared-dev/bankfeed/internal/model"
)

// now is replaced in tests.
var now = time.Now

// parsedRow is a dialect-neutral row awaiting an identity.
type parsedRow struct {
	Row              csvRow
	Date             time.Time
	Amount           decimal.Decimal
	Description      string
	AccountID        string
	AccountType      model.AccountType
	Balance          decimal.NullDecimal
	OriginalCategory string
	Type             model.TransactionType
	MerchantName     string
	Location         string
	ForeignAmount    decimal.NullDecimal
	ForeignCurrency  string
}

// rowFunc maps one source row to a parsedRow. A nil row with a nil error
// means the row is blank and should be skipped quietly.
type rowFunc func(csvRow) (*parsedRow, error)

// collectRows runs fn over rows, logging and skipping rows that fail.
func collectRows(ctx context.Context, bank, path string, rows []csvRow, fn rowFunc) []parsedRow {
	log := logger.FromContext(ctx).With().Str("parser", bank).Str("file", path).Logger()

	out := make([]parsedRow, 0, len(rows))
	for _, r := range rows {
		pr, err := fn(r)
		if err != nil {
			rowErr := &RowError{Row: r.Num, Err: err}
			log.Warn().Err(rowErr).Int("row", r.Num).Msg("skipping row")
			continue
		}
		if pr == nil {
			log.Debug().Int("row", r.Num).Msg("skipping blank row")
			continue
		}
		out = append(out, *pr)
	}
	return out
}

// buildTransactions assigns occurrence-based identities to parsed rows and
// produces canonical transactions in source order.
func buildTransactions(bank, path string, rows []parsedRow) []model.Transaction {
	sigs := make([]id.Signature, len(rows))
	for i, r := range rows {
		sigs[i] = id.Signature{
			Date:        r.Date,
			AccountID:   r.AccountID,
			Amount:      r.Amount,
			Description: r.Description,
		}
	}
	occ := id.AssignOccurrences(sigs)

	ts := now()
	txns := make([]model.Transaction, len(rows))
	for i, r := range rows {
		raw := &model.RawTransaction{
			SourceFile:  path,
			SourceBank:  bank,
			RowNumber:   r.Row.Num,
			Fields:      r.Row.Fields,
			ParsedAt:    ts,
			ParseErrors: []string{},
		}
		txns[i] = model.Transaction{
			ID:               id.Format(bank, sigs[i], occ[i]),
			Date:             r.Date,
			Amount:           model.Money(r.Amount),
			Description:      r.Description,
			AccountID:        r.AccountID,
			AccountType:      r.AccountType,
			BankSource:       bank,
			SourceFile:       path,
			Balance:          r.Balance,
			OriginalCategory: r.OriginalCategory,
			Type:             r.Type,
			MerchantName:     r.MerchantName,
			Location:         r.Location,
			ForeignAmount:    r.ForeignAmount,
			ForeignCurrency:  r.ForeignCurrency,
			Raw:              raw,
			CreatedAt:        ts,
		}
	}
	return txns
}
