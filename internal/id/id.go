package id

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout   = "20060102"
	snippetLen   = 8
	digestLen    = 4
	minIDSegment = 6
)

// Signature identifies rows describing the same movement within one parse batch.
type Signature struct {
	Date        time.Time
	AccountID   string
	Amount      decimal.Decimal
	Description string
}

// key is the exact comparison form of a signature.
func (s Signature) key() string {
	return strings.Join([]string{
		s.Date.Format(dateLayout),
		s.AccountID,
		s.Amount.StringFixed(2),
		s.Description,
	}, "\x00")
}

// AssignOccurrences returns, for each signature, its 1-based rank among the
// signatures equal to it, in input order.
func AssignOccurrences(sigs []Signature) []int {
	seen := make(map[string]int, len(sigs))
	occ := make([]int, len(sigs))
	for i, s := range sigs {
		k := s.key()
		seen[k]++
		occ[i] = seen[k]
	}
	return occ
}

// Format returns a transaction ID like
// "westpac_20251101_7802_-50.00_BUNNINGS-a1b2_1".
func Format(bank string, sig Signature, occurrence int) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s-%s_%d",
		bank,
		sig.Date.Format(dateLayout),
		sig.AccountID,
		sig.Amount.StringFixed(2),
		Snippet(sig.Description),
		Digest(sig.Description),
		occurrence,
	)
}

// Snippet returns up to the first 8 ASCII letters and digits of desc, upper-cased.
func Snippet(desc string) string {
	s := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(s) > snippetLen {
		s = s[:snippetLen]
	}
	return strings.ToUpper(s)
}

// Digest returns the first 4 hex digits of the SHA-256 of desc.
func Digest(desc string) string {
	sum := sha256.Sum256([]byte(desc))
	return hex.EncodeToString(sum[:])[:digestLen]
}

// Parts is a transaction ID split back into its components.
type Parts struct {
	Bank       string
	Date       time.Time
	AccountID  string
	Amount     decimal.Decimal
	Snippet    string
	Digest     string
	Occurrence int
}

// Parse splits a transaction ID produced by Format. The account segment may
// itself contain underscores; bank and the trailing segments may not.
func Parse(txnID string) (Parts, error) {
	segs := strings.Split(txnID, "_")
	if len(segs) < minIDSegment {
		return Parts{}, fmt.Errorf("invalid transaction ID format: %q", txnID)
	}

	n := len(segs)
	date, err := time.Parse(dateLayout, segs[1])
	if err != nil {
		return Parts{}, fmt.Errorf("invalid date in transaction ID %q: %w", txnID, err)
	}

	occ, err := strconv.Atoi(segs[n-1])
	if err != nil || occ < 1 {
		return Parts{}, fmt.Errorf("invalid occurrence in transaction ID %q", txnID)
	}

	snippet, digest, ok := strings.Cut(segs[n-2], "-")
	if !ok || len(digest) != digestLen {
		return Parts{}, fmt.Errorf("invalid description tag in transaction ID %q", txnID)
	}

	amount, err := decimal.NewFromString(segs[n-3])
	if err != nil {
		return Parts{}, fmt.Errorf("invalid amount in transaction ID %q: %w", txnID, err)
	}

	return Parts{
		Bank:       segs[0],
		Date:       date,
		AccountID:  strings.Join(segs[2:n-3], "_"),
		Amount:     amount,
		Snippet:    snippet,
		Digest:     digest,
		Occurrence: occ,
	}, nil
}
