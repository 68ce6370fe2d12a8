package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankfeed/internal/model"
)

const (
	csvExt     = ".csv"
	dmyDate    = "2/1/2006"
	dayMonYear = "_2 Jan 2006"
	utf8BOM    = "\ufeff"

	firstDataRowWithHeader = 2
)

// csvRow is one data row of a source file.
type csvRow struct {
	Num    int
	Fields map[string]string // header name, or column index for headerless files
}

// get returns the trimmed value for key, or "".
func (r csvRow) get(key string) string {
	return strings.TrimSpace(r.Fields[key])
}

// col returns the trimmed value of a headerless column.
func (r csvRow) col(i int) string {
	return r.get(strconv.Itoa(i))
}

func hasCSVExt(path string) bool {
	return strings.EqualFold(filepath.Ext(path), csvExt)
}

// firstLine returns the first line of path without a UTF-8 BOM.
// Any read failure yields "".
func firstLine(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(line, utf8BOM))
}

// headerHasAll reports whether the first line of path contains every column name.
func headerHasAll(path string, cols ...string) bool {
	if !hasCSVExt(path) {
		return false
	}
	line := firstLine(path)
	if line == "" {
		return false
	}
	for _, c := range cols {
		if !strings.Contains(line, c) {
			return false
		}
	}
	return true
}

// readRows reads every data row of a CSV file. Headed files key fields by
// column name and number rows from 2; headerless files key by column index
// and number rows from 1.
func readRows(path string, header bool) ([]csvRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	if !utf8.Valid(data) {
		return nil, &FileError{Path: path, Err: errors.New("file is not valid UTF-8")}
	}
	data = bytes.TrimPrefix(data, []byte(utf8BOM))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	if !header {
		rows := make([]csvRow, 0, len(records))
		for i, rec := range records {
			fields := make(map[string]string, len(rec))
			for j, v := range rec {
				fields[strconv.Itoa(j)] = v
			}
			rows = append(rows, csvRow{Num: i + 1, Fields: fields})
		}
		return rows, nil
	}

	if len(records) <= 1 {
		return nil, nil
	}
	cols := records[0]
	rows := make([]csvRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		fields := make(map[string]string, len(cols))
		for j, name := range cols {
			if j < len(rec) {
				fields[name] = rec[j]
			}
		}
		rows = append(rows, csvRow{Num: i + firstDataRowWithHeader, Fields: fields})
	}
	return rows, nil
}

// parseAmount accepts "$1,234.50", "-12.00", "+250.00" and "(45.00)".
// Blank input is zero. The result is normalized to two decimal places.
func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", `"`, "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, nil
	}
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}
	cleaned = strings.TrimPrefix(cleaned, "+")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	return model.Money(d), nil
}

// parseOptionalAmount returns an invalid NullDecimal for blank input.
func parseOptionalAmount(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseAmount(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func parseDate(s, layout string) (time.Time, error) {
	t, err := time.Parse(layout, strings.Trim(s, `" `))
	if err != nil {
		return time.Time{}, err
	}
	return model.DateOnly(t), nil
}

// splitDebitCredit applies the separate-column convention: a positive credit
// wins, then a positive debit, otherwise a zero debit.
func splitDebitCredit(debitStr, creditStr string) (decimal.Decimal, model.TransactionType, error) {
	debit, err := parseAmount(debitStr)
	if err != nil {
		return decimal.Zero, "", err
	}
	credit, err := parseAmount(creditStr)
	if err != nil {
		return decimal.Zero, "", err
	}

	switch {
	case credit.IsPositive():
		return credit, model.TypeCredit, nil
	case debit.IsPositive():
		return debit.Neg(), model.TypeDebit, nil
	default:
		return model.Money(decimal.Zero), model.TypeDebit, nil
	}
}

// signedType derives the flow type from a signed amount.
func signedType(amount decimal.Decimal) model.TransactionType {
	if amount.IsPositive() {
		return model.TypeCredit
	}
	return model.TypeDebit
}

// containsAnyFold reports whether s contains any keyword, ignoring case.
func containsAnyFold(s string, keywords []string) bool {
	upper := strings.ToUpper(s)
	for _, kw := range keywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

// pathAccountID derives an account ID for dialects that carry none: the
// parent directory name, else the file stem.
func pathAccountID(path string) string {
	parent := filepath.Base(filepath.Dir(path))
	if parent != "" && parent != "." && parent != string(filepath.Separator) {
		return parent
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// pathMentions reports whether the parent directory name, or the file stem
// when includeStem is set, contains any of the lowercase needles.
func pathMentions(path string, includeStem bool, needles ...string) bool {
	dir := strings.ToLower(filepath.Base(filepath.Dir(path)))
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, n := range needles {
		if strings.Contains(dir, n) || includeStem && strings.Contains(stem, n) {
			return true
		}
	}
	return false
}
