package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankfeed/internal/model"
)

const columns = `id, date, amount, description, account_id, account_type, bank_source, source_file,
	balance, original_category, category, transaction_type, merchant_name, location,
	foreign_amount, foreign_currency, created_at`

// dialect captures the SQL differences between backends.
type dialect struct {
	placeholder func(n int) string
	// amount wraps a column or parameter for numeric comparison.
	amount  func(expr string) string
	noLimit string
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	amount:      func(expr string) string { return "CAST(" + expr + " AS REAL)" },
	noLimit:     "-1",
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	amount:      func(expr string) string { return expr + "::numeric" },
	noLimit:     "ALL",
}

// queryBuilder accumulates WHERE conditions and their arguments.
type queryBuilder struct {
	d     dialect
	conds []string
	args  []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

func (b *queryBuilder) where(f Filter) string {
	if !f.From.IsZero() {
		b.conds = append(b.conds, "date >= "+b.arg(f.From.Format(model.DateFormat)))
	}
	if !f.To.IsZero() {
		b.conds = append(b.conds, "date <= "+b.arg(f.To.Format(model.DateFormat)))
	}
	if f.Bank != "" {
		b.conds = append(b.conds, "bank_source = "+b.arg(f.Bank))
	}
	if f.AccountID != "" {
		b.conds = append(b.conds, "account_id = "+b.arg(f.AccountID))
	}
	if f.Category != "" {
		b.conds = append(b.conds, fmt.Sprintf("(category = %s OR original_category = %s)",
			b.arg(f.Category), b.arg(f.Category)))
	}
	if f.Type != "" {
		b.conds = append(b.conds, "transaction_type = "+b.arg(string(f.Type)))
	}
	if f.MinAmount.Valid {
		b.conds = append(b.conds, b.d.amount("amount")+" >= "+b.d.amount(b.arg(f.MinAmount.Decimal.String())))
	}
	if f.MaxAmount.Valid {
		b.conds = append(b.conds, b.d.amount("amount")+" <= "+b.d.amount(b.arg(f.MaxAmount.Decimal.String())))
	}
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func (b *queryBuilder) page(f Filter) string {
	var sb strings.Builder
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(f.Limit))
	} else if f.Offset > 0 {
		sb.WriteString(" LIMIT " + b.d.noLimit)
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET " + b.arg(f.Offset))
	}
	return sb.String()
}

// selectQuery returns the full Query statement for f. selectCols lets a
// backend cast columns to text.
func selectQuery(d dialect, selectCols string, f Filter) (string, []any) {
	b := &queryBuilder{d: d}
	q := "SELECT " + selectCols + " FROM transactions" + b.where(f) + " ORDER BY date DESC, id" + b.page(f)
	return q, b.args
}

func countQuery(d dialect, f Filter) (string, []any) {
	b := &queryBuilder{d: d}
	return "SELECT COUNT(*) FROM transactions" + b.where(f), b.args
}

// record is the storage row shape shared by the SQL backends.
type record struct {
	ID               string
	Date             string
	Amount           string
	Description      string
	AccountID        string
	AccountType      string
	BankSource       string
	SourceFile       string
	Balance          *string
	OriginalCategory *string
	Category         *string
	Type             string
	MerchantName     *string
	Location         *string
	ForeignAmount    *string
	ForeignCurrency  *string
	CreatedAt        time.Time
}

func (r *record) targets() []any {
	return []any{
		&r.ID, &r.Date, &r.Amount, &r.Description, &r.AccountID, &r.AccountType, &r.BankSource, &r.SourceFile,
		&r.Balance, &r.OriginalCategory, &r.Category, &r.Type, &r.MerchantName, &r.Location,
		&r.ForeignAmount, &r.ForeignCurrency, &r.CreatedAt,
	}
}

func toRecord(t model.Transaction) record {
	return record{
		ID:               t.ID,
		Date:             t.Date.Format(model.DateFormat),
		Amount:           t.Amount.StringFixed(2),
		Description:      t.Description,
		AccountID:        t.AccountID,
		AccountType:      string(t.AccountType),
		BankSource:       t.BankSource,
		SourceFile:       t.SourceFile,
		Balance:          optional(model.FormatNullMoney(t.Balance)),
		OriginalCategory: optional(t.OriginalCategory),
		Category:         optional(t.Category),
		Type:             string(t.Type),
		MerchantName:     optional(t.MerchantName),
		Location:         optional(t.Location),
		ForeignAmount:    optional(model.FormatNullMoney(t.ForeignAmount)),
		ForeignCurrency:  optional(t.ForeignCurrency),
		CreatedAt:        t.CreatedAt,
	}
}

func (r *record) args() []any {
	return []any{
		r.ID, r.Date, r.Amount, r.Description, r.AccountID, r.AccountType, r.BankSource, r.SourceFile,
		r.Balance, r.OriginalCategory, r.Category, r.Type, r.MerchantName, r.Location,
		r.ForeignAmount, r.ForeignCurrency, r.CreatedAt,
	}
}

func (r *record) transaction() (model.Transaction, error) {
	date, err := time.Parse(model.DateFormat, r.Date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing stored date %q: %w", r.Date, err)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing stored amount %q: %w", r.Amount, err)
	}
	balance, err := model.ParseNullMoney(deref(r.Balance))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing stored balance: %w", err)
	}
	foreign, err := model.ParseNullMoney(deref(r.ForeignAmount))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing stored foreign amount: %w", err)
	}
	accountType, err := model.ParseAccountType(r.AccountType)
	if err != nil {
		return model.Transaction{}, err
	}
	typ, err := model.ParseTransactionType(r.Type)
	if err != nil {
		return model.Transaction{}, err
	}

	return model.Transaction{
		ID:               r.ID,
		Date:             date,
		Amount:           amount,
		Description:      r.Description,
		AccountID:        r.AccountID,
		AccountType:      accountType,
		BankSource:       r.BankSource,
		SourceFile:       r.SourceFile,
		Balance:          balance,
		OriginalCategory: deref(r.OriginalCategory),
		Category:         deref(r.Category),
		Type:             typ,
		MerchantName:     deref(r.MerchantName),
		Location:         deref(r.Location),
		ForeignAmount:    foreign,
		ForeignCurrency:  deref(r.ForeignCurrency),
		CreatedAt:        r.CreatedAt,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
