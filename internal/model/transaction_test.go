package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransaction() Transaction {
	return Transaction{
		ID:               "westpac_20251101_7802_-11.40_COLESSUP-3f2a_1",
		Date:             time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.RequireFromString("-11.40"),
		Description:      "COLES SUPERMARKET SYDNEY AUS",
		AccountID:        "7802",
		AccountType:      AccountTypeCreditCard,
		BankSource:       "westpac",
		SourceFile:       "incoming/westpac.csv",
		Balance:          decimal.NewNullDecimal(decimal.RequireFromString("1520.05")),
		OriginalCategory: "OTHER",
		Type:             TypeDebit,
		MerchantName:     "COLES SUPERMARKET SYDNEY",
		Location:         "AUS",
		Raw: &RawTransaction{
			SourceFile: "incoming/westpac.csv",
			SourceBank: "westpac",
			RowNumber:  2,
			Fields:     map[string]string{"Narrative": "COLES SUPERMARKET SYDNEY AUS"},
			ParsedAt:   time.Date(2025, 11, 2, 9, 30, 0, 0, time.UTC),
		},
		CreatedAt: time.Date(2025, 11, 2, 9, 30, 1, 0, time.UTC),
	}
}

func TestTransactionJSONRoundTrip(t *testing.T) {
	orig := sampleTransaction()

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var got Transaction
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, orig.ID, got.ID)
	assert.True(t, orig.Date.Equal(got.Date))
	assert.True(t, orig.Amount.Equal(got.Amount))
	assert.Equal(t, orig.Description, got.Description)
	assert.Equal(t, orig.AccountID, got.AccountID)
	assert.Equal(t, orig.AccountType, got.AccountType)
	assert.Equal(t, orig.BankSource, got.BankSource)
	assert.Equal(t, orig.SourceFile, got.SourceFile)
	require.True(t, got.Balance.Valid)
	assert.True(t, orig.Balance.Decimal.Equal(got.Balance.Decimal))
	assert.Equal(t, orig.OriginalCategory, got.OriginalCategory)
	assert.Empty(t, got.Category)
	assert.Equal(t, orig.Type, got.Type)
	assert.Equal(t, orig.MerchantName, got.MerchantName)
	assert.Equal(t, orig.Location, got.Location)
	assert.False(t, got.ForeignAmount.Valid)
	assert.True(t, orig.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Raw)
	assert.Equal(t, orig.Raw.RowNumber, got.Raw.RowNumber)
	assert.Equal(t, orig.Raw.Fields, got.Raw.Fields)
	assert.True(t, orig.Raw.ParsedAt.Equal(got.Raw.ParsedAt))
}

func TestTransactionJSONShape(t *testing.T) {
	data, err := json.Marshal(sampleTransaction())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, "2025-11-01", m["date"])
	assert.Equal(t, "-11.40", m["amount"])
	assert.Equal(t, "1520.05", m["balance"])
	assert.Equal(t, "debit", m["transaction_type"])
	assert.Equal(t, "credit_card", m["account_type"])
	assert.Nil(t, m["category"])
	assert.Nil(t, m["foreign_amount"])
	assert.Contains(t, m, "raw_transaction")
}

func TestTransactionJSONWithoutRaw(t *testing.T) {
	txn := sampleTransaction()
	txn.Raw = nil
	data, err := json.Marshal(txn)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "raw_transaction")
}

func TestTransactionUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"bad date", `{"date":"01/11/2025","amount":"1.00","account_type":"unknown","transaction_type":"debit"}`},
		{"bad amount", `{"date":"2025-11-01","amount":"abc","account_type":"unknown","transaction_type":"debit"}`},
		{"bad account type", `{"date":"2025-11-01","amount":"1.00","account_type":"brokerage","transaction_type":"debit"}`},
		{"bad type", `{"date":"2025-11-01","amount":"1.00","account_type":"unknown","transaction_type":"refund"}`},
	}
	for _, tt := range tests {
		var txn Transaction
		assert.Error(t, json.Unmarshal([]byte(tt.json), &txn), tt.name)
	}
}

func TestParseEnums(t *testing.T) {
	at, err := ParseAccountType("savings")
	require.NoError(t, err)
	assert.Equal(t, AccountTypeSavings, at)

	tt, err := ParseTransactionType("transfer")
	require.NoError(t, err)
	assert.Equal(t, TypeTransfer, tt)

	_, err = ParseAccountType("")
	assert.Error(t, err)
}

func TestNullMoney(t *testing.T) {
	assert.Equal(t, "", FormatNullMoney(decimal.NullDecimal{}))
	assert.Equal(t, "10.50", FormatNullMoney(decimal.NewNullDecimal(decimal.RequireFromString("10.5"))))

	d, err := ParseNullMoney("")
	require.NoError(t, err)
	assert.False(t, d.Valid)

	d, err = ParseNullMoney("3.20")
	require.NoError(t, err)
	assert.True(t, d.Valid)
	assert.Equal(t, "3.20", d.Decimal.StringFixed(2))
}

func TestMoneyAndDateOnly(t *testing.T) {
	m := Money(decimal.RequireFromString("11.4"))
	assert.Equal(t, int32(-2), m.Exponent())
	assert.Equal(t, "11.40", m.StringFixed(2))
	assert.Equal(t, "-3.13", Money(decimal.RequireFromString("-3.125")).StringFixed(2))
	local := time.Date(2025, 3, 4, 15, 4, 5, 0, time.FixedZone("AEST", 10*3600))
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), DateOnly(local))
}
