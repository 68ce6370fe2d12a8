package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// WestpacParser parses Westpac credit card and savings exports.
type WestpacParser struct{}

const (
	westpacColAccount   = "Bank Account"
	westpacColDate      = "Date"
	westpacColNarrative = "Narrative"
	westpacColDebit     = "Debit Amount"
	westpacColCredit    = "Credit Amount"
	westpacColBalance   = "Balance"
	westpacColCategory  = "Categories"

	westpacPaymentCategory = "PAYMENT"
)

var (
	westpacTransferKeywords = []string{"TFR FROM", "TFR TO", "TRANSFER", "TFR WESTPAC", "TFR ALTITUDE"}

	westpacCardAccount = regexp.MustCompile(`^\d{4}$`)

	westpacCountry     = regexp.MustCompile(`\s+(AUS|USA|GBR|NZL|SGP|HKG|JPN|CHN)$`)
	westpacCityCountry = regexp.MustCompile(`\s+([A-Z]{2,})\s+(AUS|USA|GBR|NZL)$`)

	westpacForeign = regexp.MustCompile(`(?i)FRGN AMT:\s*([\d.]+)\s+([A-Z.\s]+(?:DOLLAR|POUND|EURO|YEN))`)

	westpacCurrencies = map[string]string{
		"U. S. DOLLAR": "USD",
		"U.S. DOLLAR":  "USD",
		"POUND":        "GBP",
		"EURO":         "EUR",
		"YEN":          "JPY",
	}
)

// Format returns the parser name.
func (p *WestpacParser) Format() string { return "westpac" }

// Description summarizes the Westpac exports this parser reads.
func (p *WestpacParser) Description() string {
	return "Westpac credit card and savings exports (Bank Account, Narrative, Debit/Credit Amount columns)"
}

// CanParse reports true when the header has the Westpac account, narrative and debit/credit columns.
func (p *WestpacParser) CanParse(path string) bool {
	return headerHasAll(path, westpacColAccount, westpacColNarrative, westpacColDebit, westpacColCredit)
}

// Parse reads a Westpac CSV export and returns normalized transactions.
func (p *WestpacParser) Parse(ctx context.Context, path string) ([]model.Transaction, error) {
	rows, err := readRows(path, true)
	if err != nil {
		return nil, err
	}
	parsed := collectRows(ctx, p.Format(), path, rows, parseWestpacRow)
	return buildTransactions(p.Format(), path, parsed), nil
}

func parseWestpacRow(r csvRow) (*parsedRow, error) {
	dateStr := r.get(westpacColDate)
	narrative := r.get(westpacColNarrative)
	if dateStr == "" || narrative == "" {
		return nil, nil
	}

	date, err := parseDate(dateStr, dmyDate)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", dateStr, err)
	}
	amount, typ, err := splitDebitCredit(r.get(westpacColDebit), r.get(westpacColCredit))
	if err != nil {
		return nil, fmt.Errorf("parsing amount: %w", err)
	}
	balance, err := parseOptionalAmount(r.get(westpacColBalance))
	if err != nil {
		return nil, fmt.Errorf("parsing balance: %w", err)
	}

	category := r.get(westpacColCategory)
	if category == westpacPaymentCategory && containsAnyFold(narrative, westpacTransferKeywords) {
		typ = model.TypeTransfer
	}

	account := r.get(westpacColAccount)
	merchant, location := westpacMerchant(narrative)
	foreignAmt, foreignCur := westpacForeignAmount(narrative)

	return &parsedRow{
		Row:              r,
		Date:             date,
		Amount:           amount,
		Description:      narrative,
		AccountID:        account,
		AccountType:      westpacAccountType(account),
		Balance:          balance,
		OriginalCategory: category,
		Type:             typ,
		MerchantName:     merchant,
		Location:         location,
		ForeignAmount:    foreignAmt,
		ForeignCurrency:  foreignCur,
	}, nil
}

// westpacAccountType: four digits is a card suffix, long numbers are savings.
func westpacAccountType(account string) model.AccountType {
	switch {
	case westpacCardAccount.MatchString(account):
		return model.AccountTypeCreditCard
	case len(account) > 8:
		return model.AccountTypeSavings
	default:
		return model.AccountTypeUnknown
	}
}

// westpacMerchant splits a trailing "CITY COUNTRY" or "COUNTRY" suffix off
// the narrative.
func westpacMerchant(narrative string) (merchant, location string) {
	for _, re := range []*regexp.Regexp{westpacCountry, westpacCityCountry} {
		loc := re.FindStringIndex(narrative)
		if loc == nil {
			continue
		}
		return strings.TrimSpace(narrative[:loc[0]]), strings.TrimSpace(narrative[loc[0]:])
	}
	return narrative, ""
}

func westpacForeignAmount(narrative string) (decimal.NullDecimal, string) {
	m := westpacForeign.FindStringSubmatch(narrative)
	if m == nil {
		return decimal.NullDecimal{}, ""
	}
	amt, err := parseAmount(m[1])
	if err != nil {
		return decimal.NullDecimal{}, ""
	}

	currency := strings.TrimSpace(m[2])
	if code, ok := westpacCurrencies[strings.ToUpper(currency)]; ok {
		currency = code
	}
	return decimal.NewNullDecimal(amt), currency
}
