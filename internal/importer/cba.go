package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// CBAParser parses headerless Commonwealth Bank exports. AccountID
// overrides the account derived from the file path.
type CBAParser struct {
	AccountID string
}

const (
	cbaColDate        = 0
	cbaColAmount      = 1
	cbaColDescription = 2
	cbaColBalance     = 3
)

var (
	cbaTransferKeywords = []string{
		"Transfer To",
		"Transfer From",
		"Fast Transfer",
		"Direct Credit",
		"NetBank",
		"CommBank App",
	}

	cbaMerchantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Transfer (?:To|From)\s+(.+?)\s+(?:NetBank|CommBank)`),
		regexp.MustCompile(`(?i)Fast Transfer From\s+(.+?)\s+CT\.`),
		regexp.MustCompile(`(?i)Direct Credit \d+\s+(.+?)\s+RENT`),
	}
)

// Format returns the parser name.
func (p *CBAParser) Format() string { return "cba" }

// Description summarizes the CommBank exports this parser reads.
func (p *CBAParser) Description() string {
	return "Commonwealth Bank headerless exports (date, signed amount, description, balance); detected by a cba/commbank/commonwealth folder"
}

// CanParse reports true when the directory mentions cba, commbank or commonwealth.
func (p *CBAParser) CanParse(path string) bool {
	return hasCSVExt(path) && pathMentions(path, false, "cba", "commbank", "commonwealth")
}

// Parse reads a headerless CommBank CSV export and returns normalized transactions.
func (p *CBAParser) Parse(ctx context.Context, path string) ([]model.Transaction, error) {
	rows, err := readRows(path, false)
	if err != nil {
		return nil, err
	}
	account := p.AccountID
	if account == "" {
		account = pathAccountID(path)
	}
	parsed := collectRows(ctx, p.Format(), path, rows, func(r csvRow) (*parsedRow, error) {
		return parseCBARow(r, account)
	})
	return buildTransactions(p.Format(), path, parsed), nil
}

func parseCBARow(r csvRow, account string) (*parsedRow, error) {
	dateStr := r.col(cbaColDate)
	desc := r.col(cbaColDescription)
	if dateStr == "" || desc == "" {
		return nil, nil
	}

	date, err := parseDate(dateStr, dmyDate)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", dateStr, err)
	}
	amount, err := parseAmount(r.col(cbaColAmount))
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", r.col(cbaColAmount), err)
	}
	balance, err := parseOptionalAmount(r.col(cbaColBalance))
	if err != nil {
		return nil, fmt.Errorf("parsing balance: %w", err)
	}

	typ := signedType(amount)
	if containsAnyFold(desc, cbaTransferKeywords) {
		typ = model.TypeTransfer
	}

	return &parsedRow{
		Row:          r,
		Date:         date,
		Amount:       amount,
		Description:  desc,
		AccountID:    account,
		AccountType:  model.AccountTypeTransaction,
		Balance:      balance,
		Type:         typ,
		MerchantName: cbaMerchant(desc),
	}, nil
}

func cbaMerchant(desc string) string {
	for _, re := range cbaMerchantPatterns {
		if m := re.FindStringSubmatch(desc); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return desc
}
