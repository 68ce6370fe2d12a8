package importer

import (
	"context"
	"fmt"
	"regexp"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// ANZParser parses headerless ANZ exports. ANZ files carry no account
// number, so AccountID overrides the one derived from the file path.
type ANZParser struct {
	AccountID string
}

const (
	anzColDate        = 0
	anzColAmount      = 1
	anzColDescription = 2
	anzColReference   = 3
	anzColPayee       = 4
)

var (
	anzTransferKeywords = []string{
		"TRANSFER FROM",
		"TRANSFER TO",
		"ANZ INTERNET BANKING PAYMENT",
		"ANZ INTERNET BANKING TRANSFER",
		"INTERNAL TRANSFER",
	}

	anzCounterparty = regexp.MustCompile(`(?i)(?:TO|FROM)\s+(.+)$`)
)

// Format returns the parser name.
func (p *ANZParser) Format() string { return "anz" }

// Description summarizes the ANZ exports this parser reads.
func (p *ANZParser) Description() string {
	return "ANZ headerless exports (date, signed amount, description, reference, payee); detected by 'anz' in the folder or file name"
}

// CanParse reports true when the file name or its directory mentions anz.
func (p *ANZParser) CanParse(path string) bool {
	return hasCSVExt(path) && pathMentions(path, true, "anz")
}

// Parse reads a headerless ANZ CSV export and returns normalized transactions.
func (p *ANZParser) Parse(ctx context.Context, path string) ([]model.Transaction, error) {
	rows, err := readRows(path, false)
	if err != nil {
		return nil, err
	}
	account := p.AccountID
	if account == "" {
		account = pathAccountID(path)
	}
	parsed := collectRows(ctx, p.Format(), path, rows, func(r csvRow) (*parsedRow, error) {
		return parseANZRow(r, account)
	})
	return buildTransactions(p.Format(), path, parsed), nil
}

func parseANZRow(r csvRow, account string) (*parsedRow, error) {
	dateStr := r.col(anzColDate)
	desc := r.col(anzColDescription)
	if dateStr == "" || desc == "" {
		return nil, nil
	}

	date, err := parseDate(dateStr, dmyDate)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", dateStr, err)
	}
	amount, err := parseAmount(r.col(anzColAmount))
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", r.col(anzColAmount), err)
	}

	typ := signedType(amount)
	if containsAnyFold(desc, anzTransferKeywords) {
		typ = model.TypeTransfer
	}

	payee := r.col(anzColPayee)
	full := desc
	if payee != "" {
		full = desc + " - " + payee
	}

	return &parsedRow{
		Row:          r,
		Date:         date,
		Amount:       amount,
		Description:  full,
		AccountID:    account,
		AccountType:  model.AccountTypeTransaction,
		Type:         typ,
		MerchantName: anzMerchant(desc, payee),
	}, nil
}

func anzMerchant(desc, payee string) string {
	if payee != "" {
		return payee
	}
	if m := anzCounterparty.FindStringSubmatch(desc); m != nil {
		return m[1]
	}
	return desc
}
