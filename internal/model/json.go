package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// transactionJSON is the wire form of a Transaction. Optional values are
// emitted as null rather than omitted.
type transactionJSON struct {
	ID               string          `json:"id"`
	Date             string          `json:"date"`
	Amount           string          `json:"amount"`
	Description      string          `json:"description"`
	AccountID        string          `json:"account_id"`
	AccountType      AccountType     `json:"account_type"`
	BankSource       string          `json:"bank_source"`
	SourceFile       string          `json:"source_file"`
	Balance          *string         `json:"balance"`
	OriginalCategory *string         `json:"original_category"`
	Category         *string         `json:"category"`
	TransactionType  TransactionType `json:"transaction_type"`
	MerchantName     *string         `json:"merchant_name"`
	Location         *string         `json:"location"`
	ForeignAmount    *string         `json:"foreign_amount"`
	ForeignCurrency  *string         `json:"foreign_currency"`
	CreatedAt        time.Time       `json:"created_at"`
	RawTransaction   *RawTransaction `json:"raw_transaction,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:               t.ID,
		Date:             t.Date.Format(DateFormat),
		Amount:           t.Amount.StringFixed(2),
		Description:      t.Description,
		AccountID:        t.AccountID,
		AccountType:      t.AccountType,
		BankSource:       t.BankSource,
		SourceFile:       t.SourceFile,
		Balance:          nullMoney(t.Balance),
		OriginalCategory: nullString(t.OriginalCategory),
		Category:         nullString(t.Category),
		TransactionType:  t.Type,
		MerchantName:     nullString(t.MerchantName),
		Location:         nullString(t.Location),
		ForeignAmount:    nullMoney(t.ForeignAmount),
		ForeignCurrency:  nullString(t.ForeignCurrency),
		CreatedAt:        t.CreatedAt,
		RawTransaction:   t.Raw,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w transactionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	date, err := time.Parse(DateFormat, w.Date)
	if err != nil {
		return fmt.Errorf("parsing date %q: %w", w.Date, err)
	}
	amount, err := decimal.NewFromString(w.Amount)
	if err != nil {
		return fmt.Errorf("parsing amount %q: %w", w.Amount, err)
	}
	balance, err := parseNullMoney(w.Balance)
	if err != nil {
		return fmt.Errorf("parsing balance: %w", err)
	}
	foreign, err := parseNullMoney(w.ForeignAmount)
	if err != nil {
		return fmt.Errorf("parsing foreign_amount: %w", err)
	}
	acctType, err := ParseAccountType(string(w.AccountType))
	if err != nil {
		return err
	}
	txnType, err := ParseTransactionType(string(w.TransactionType))
	if err != nil {
		return err
	}

	*t = Transaction{
		ID:               w.ID,
		Date:             date,
		Amount:           amount,
		Description:      w.Description,
		AccountID:        w.AccountID,
		AccountType:      acctType,
		BankSource:       w.BankSource,
		SourceFile:       w.SourceFile,
		Balance:          balance,
		OriginalCategory: deref(w.OriginalCategory),
		Category:         deref(w.Category),
		Type:             txnType,
		MerchantName:     deref(w.MerchantName),
		Location:         deref(w.Location),
		ForeignAmount:    foreign,
		ForeignCurrency:  deref(w.ForeignCurrency),
		Raw:              w.RawTransaction,
		CreatedAt:        w.CreatedAt,
	}
	return nil
}

// FormatNullMoney renders an optional amount, or "" when absent.
func FormatNullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

// ParseNullMoney is the inverse of FormatNullMoney.
func ParseNullMoney(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

func parseNullMoney(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	return ParseNullMoney(*s)
}

func nullString(s string) *string {
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
