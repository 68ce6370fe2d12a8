package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// MacquarieParser parses Macquarie exports, which carry their own
// category, subcategory and tag columns.
type MacquarieParser struct{}

const (
	macquarieColDate        = "Transaction Date"
	macquarieColDetails     = "Details"
	macquarieColAccount     = "Account"
	macquarieColCategory    = "Category"
	macquarieColSubcategory = "Subcategory"
	macquarieColTags        = "Tags"
	macquarieColDebit       = "Debit"
	macquarieColCredit      = "Credit"
	macquarieColBalance     = "Balance"
	macquarieColOrigDesc    = "Original Description"

	macquarieUnknownAccount = "macquarie-unknown"
)

var (
	macquarieTransferKeywords = []string{"transfer", "from ", "to "}

	macquarieMerchantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^From\s+(.+?)\s+-\s+`),
		regexp.MustCompile(`(?i)^To\s+(.+?)\s+-\s+`),
		regexp.MustCompile(`(?i)^Salary from\s+(.+)`),
		regexp.MustCompile(`(?i)^Payment$`),
	}

	macquarieSlug = regexp.MustCompile(`[^a-z0-9]+`)
)

// Format returns the parser name.
func (p *MacquarieParser) Format() string { return "macquarie" }

// Description summarizes the Macquarie exports this parser reads.
func (p *MacquarieParser) Description() string {
	return "Macquarie exports (Details, Category, Subcategory, Tags, Original Description columns)"
}

// CanParse reports true when the header has the subcategory, tags and original description columns.
func (p *MacquarieParser) CanParse(path string) bool {
	return headerHasAll(path, macquarieColSubcategory, macquarieColTags, macquarieColOrigDesc)
}

// Parse reads a Macquarie CSV export and returns normalized transactions.
func (p *MacquarieParser) Parse(ctx context.Context, path string) ([]model.Transaction, error) {
	rows, err := readRows(path, true)
	if err != nil {
		return nil, err
	}
	parsed := collectRows(ctx, p.Format(), path, rows, parseMacquarieRow)
	return buildTransactions(p.Format(), path, parsed), nil
}

func parseMacquarieRow(r csvRow) (*parsedRow, error) {
	dateStr := r.get(macquarieColDate)
	details := r.get(macquarieColDetails)
	if dateStr == "" || details == "" {
		return nil, nil
	}

	date, err := parseDate(dateStr, dayMonYear)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", dateStr, err)
	}
	amount, typ, err := splitDebitCredit(r.get(macquarieColDebit), r.get(macquarieColCredit))
	if err != nil {
		return nil, fmt.Errorf("parsing amount: %w", err)
	}
	balance, err := parseOptionalAmount(r.get(macquarieColBalance))
	if err != nil {
		return nil, fmt.Errorf("parsing balance: %w", err)
	}

	category := r.get(macquarieColCategory)
	subcategory := r.get(macquarieColSubcategory)
	if macquarieIsTransfer(category, subcategory, details) {
		typ = model.TypeTransfer
	}

	account := r.get(macquarieColAccount)
	return &parsedRow{
		Row:              r,
		Date:             date,
		Amount:           amount,
		Description:      details,
		AccountID:        macquarieAccountID(account),
		AccountType:      macquarieAccountType(account),
		Balance:          balance,
		OriginalCategory: macquarieCategory(category, subcategory, r.get(macquarieColTags)),
		Type:             typ,
		MerchantName:     macquarieMerchant(details),
	}, nil
}

func macquarieIsTransfer(category, subcategory, details string) bool {
	if strings.EqualFold(category, "financial") && strings.EqualFold(subcategory, "transfers") {
		return true
	}
	lower := strings.ToLower(details)
	for _, kw := range macquarieTransferKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// macquarieCategory renders "Category > Subcategory > [tags]", skipping blanks.
func macquarieCategory(category, subcategory, tags string) string {
	var parts []string
	if category != "" {
		parts = append(parts, category)
	}
	if subcategory != "" {
		parts = append(parts, subcategory)
	}
	if tags != "" {
		parts = append(parts, "["+tags+"]")
	}
	return strings.Join(parts, " > ")
}

func macquarieAccountID(name string) string {
	lower := strings.ToLower(name)
	switch {
	case name == "":
		return macquarieUnknownAccount
	case strings.Contains(lower, "platinum") && strings.Contains(lower, "transaction"):
		return "macquarie-platinum"
	case strings.Contains(lower, "savings"):
		return "macquarie-savings"
	case strings.Contains(lower, "transaction"):
		return "macquarie-transaction"
	default:
		return "macquarie-" + strings.Trim(macquarieSlug.ReplaceAllString(lower, "-"), "-")
	}
}

func macquarieAccountType(name string) model.AccountType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "savings"):
		return model.AccountTypeSavings
	case strings.Contains(lower, "transaction"):
		return model.AccountTypeTransaction
	case strings.Contains(lower, "credit"):
		return model.AccountTypeCreditCard
	case strings.Contains(lower, "loan"):
		return model.AccountTypeLoan
	default:
		return model.AccountTypeTransaction
	}
}

func macquarieMerchant(details string) string {
	for _, re := range macquarieMerchantPatterns {
		m := re.FindStringSubmatch(details)
		if m == nil {
			continue
		}
		if len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
		return details
	}
	return details
}
