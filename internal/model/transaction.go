package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical calendar date layout used in exports and stores.
const DateFormat = "2006-01-02"

// RawTransaction is the audit copy of one source CSV row.
type RawTransaction struct {
	SourceFile  string            `json:"source_file"`
	SourceBank  string            `json:"source_bank"`
	RowNumber   int               `json:"row_number"` // 1-based, header counts as row 1
	Fields      map[string]string `json:"raw_fields"`
	ParsedAt    time.Time         `json:"parsed_at"`
	ParseErrors []string          `json:"parse_errors"`
}

// Transaction is the normalized record every bank parser produces.
type Transaction struct {
	ID          string
	Date        time.Time       // midnight UTC
	Amount      decimal.Decimal // positive = inflow, negative = outflow
	Description string

	AccountID   string
	AccountType AccountType

	BankSource string
	SourceFile string

	Balance          decimal.NullDecimal
	OriginalCategory string
	Category         string

	Type TransactionType

	MerchantName    string
	Location        string
	ForeignAmount   decimal.NullDecimal
	ForeignCurrency string

	// Raw is kept for file exports only; stores never persist it.
	Raw *RawTransaction

	CreatedAt time.Time
}

// DateOnly truncates t to a calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Money normalizes an amount to two decimal places.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
