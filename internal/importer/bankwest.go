package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// BankwestParser parses Bankwest transaction exports.
type BankwestParser struct{}

const (
	bankwestColBSB       = "BSB Number"
	bankwestColAccount   = "Account Number"
	bankwestColDate      = "Transaction Date"
	bankwestColNarration = "Narration"
	bankwestColDebit     = "Debit"
	bankwestColCredit    = "Credit"
	bankwestColBalance   = "Balance"
	bankwestColType      = "Transaction Type"
)

var (
	bankwestTypeCodes = map[string]model.TransactionType{
		"WDL": model.TypeDebit,
		"DEP": model.TypeCredit,
		"TFR": model.TypeTransfer,
		"INT": model.TypeCredit,
		"FEE": model.TypeDebit,
	}

	bankwestMerchantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:To|From)\s+(.+?)\s+\d{2}:\d{2}[AP]M`),
		regexp.MustCompile(`(?i)^(.+?)\s+\d{2}:\d{2}[AP]M`),
	}
)

// Format returns the parser name.
func (p *BankwestParser) Format() string { return "bankwest" }

// Description summarizes the Bankwest exports this parser reads.
func (p *BankwestParser) Description() string {
	return "Bankwest exports (BSB Number, Narration, Debit/Credit, Transaction Type columns)"
}

// CanParse reports true when the header has the BSB, narration and transaction type columns.
func (p *BankwestParser) CanParse(path string) bool {
	return headerHasAll(path, bankwestColBSB, bankwestColNarration, bankwestColType)
}

// Parse reads a Bankwest CSV export and returns normalized transactions.
func (p *BankwestParser) Parse(ctx context.Context, path string) ([]model.Transaction, error) {
	rows, err := readRows(path, true)
	if err != nil {
		return nil, err
	}
	parsed := collectRows(ctx, p.Format(), path, rows, parseBankwestRow)
	return buildTransactions(p.Format(), path, parsed), nil
}

func parseBankwestRow(r csvRow) (*parsedRow, error) {
	dateStr := r.get(bankwestColDate)
	narration := r.get(bankwestColNarration)
	if dateStr == "" || narration == "" {
		return nil, nil
	}

	date, err := parseDate(dateStr, dmyDate)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", dateStr, err)
	}
	amount, typ, err := splitDebitCredit(r.get(bankwestColDebit), r.get(bankwestColCredit))
	if err != nil {
		return nil, fmt.Errorf("parsing amount: %w", err)
	}
	balance, err := parseOptionalAmount(r.get(bankwestColBalance))
	if err != nil {
		return nil, fmt.Errorf("parsing balance: %w", err)
	}

	code := r.get(bankwestColType)
	if mapped, ok := bankwestTypeCodes[strings.ToUpper(code)]; ok {
		typ = mapped
	}

	return &parsedRow{
		Row:              r,
		Date:             date,
		Amount:           amount,
		Description:      narration,
		AccountID:        bankwestAccountID(r.get(bankwestColBSB), r.get(bankwestColAccount)),
		AccountType:      model.AccountTypeTransaction,
		Balance:          balance,
		OriginalCategory: code,
		Type:             typ,
		MerchantName:     bankwestMerchant(narration),
	}, nil
}

func bankwestAccountID(bsb, account string) string {
	switch {
	case bsb != "" && account != "":
		return bsb + "-" + account
	case account != "":
		return account
	default:
		return bsb
	}
}

func bankwestMerchant(narration string) string {
	for _, re := range bankwestMerchantPatterns {
		if m := re.FindStringSubmatch(narration); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return narration
}
