package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// Header is the flattened CSV header. Raw source rows are not exported.
const Header = "id,date,amount,description,account_id,account_type,bank_source,source_file,balance,original_category,category,transaction_type,merchant_name,location,foreign_amount,foreign_currency,created_at"

const (
	numFields       = 17
	colID           = 0
	colDate         = 1
	colAmount       = 2
	colDesc         = 3
	colAccountID    = 4
	colAccountType  = 5
	colBank         = 6
	colSourceFile   = 7
	colBalance      = 8
	colOrigCategory = 9
	colCategory     = 10
	colType         = 11
	colMerchant     = 12
	colLocation     = 13
	colForeignAmt   = 14
	colForeignCur   = 15
	colCreatedAt    = 16
)

// WriteCSV writes transactions to w (including header).
func WriteCSV(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, t := range txns {
		if err := cw.Write(MarshalRow(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads transactions written by WriteCSV.
func ReadCSV(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var txns []model.Transaction
	for i, rec := range records[1:] {
		t, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// MarshalRow converts a Transaction to a CSV row.
func MarshalRow(t model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = t.ID
	row[colDate] = t.Date.Format(model.DateFormat)
	row[colAmount] = t.Amount.StringFixed(2)
	row[colDesc] = t.Description
	row[colAccountID] = t.AccountID
	row[colAccountType] = string(t.AccountType)
	row[colBank] = t.BankSource
	row[colSourceFile] = t.SourceFile
	row[colBalance] = model.FormatNullMoney(t.Balance)
	row[colOrigCategory] = t.OriginalCategory
	row[colCategory] = t.Category
	row[colType] = string(t.Type)
	row[colMerchant] = t.MerchantName
	row[colLocation] = t.Location
	row[colForeignAmt] = model.FormatNullMoney(t.ForeignAmount)
	row[colForeignCur] = t.ForeignCurrency
	if !t.CreatedAt.IsZero() {
		row[colCreatedAt] = t.CreatedAt.Format(time.RFC3339)
	}
	return row
}

// UnmarshalRow converts a CSV row to a Transaction.
func UnmarshalRow(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(model.DateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	balance, err := model.ParseNullMoney(record[colBalance])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing balance %q: %w", record[colBalance], err)
	}

	foreign, err := model.ParseNullMoney(record[colForeignAmt])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing foreign_amount %q: %w", record[colForeignAmt], err)
	}

	accountType, err := model.ParseAccountType(record[colAccountType])
	if err != nil {
		return model.Transaction{}, err
	}

	typ, err := model.ParseTransactionType(record[colType])
	if err != nil {
		return model.Transaction{}, err
	}

	var created time.Time
	if record[colCreatedAt] != "" {
		created, err = time.Parse(time.RFC3339, record[colCreatedAt])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
		}
	}

	return model.Transaction{
		ID:               record[colID],
		Date:             date,
		Amount:           amount,
		Description:      record[colDesc],
		AccountID:        record[colAccountID],
		AccountType:      accountType,
		BankSource:       record[colBank],
		SourceFile:       record[colSourceFile],
		Balance:          balance,
		OriginalCategory: record[colOrigCategory],
		Category:         record[colCategory],
		Type:             typ,
		MerchantName:     record[colMerchant],
		Location:         record[colLocation],
		ForeignAmount:    foreign,
		ForeignCurrency:  record[colForeignCur],
		CreatedAt:        created,
	}, nil
}
