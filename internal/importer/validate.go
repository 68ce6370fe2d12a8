package importer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cleared-dev/bankfeed/internal/id"
	"github.com/cleared-dev/bankfeed/internal/model"
)

// Violation describes a batch consistency problem.
type Violation struct {
	TransactionID string
	Description   string
}

func (v Violation) Error() string {
	return fmt.Sprintf("[%s]: %s", v.TransactionID, v.Description)
}

// ValidateBatch checks one parse batch for unique IDs, contiguous
// occurrence numbers per signature, and amounts whose sign agrees with a
// debit or credit type. Each finding is also appended to the offending
// transaction's raw ParseErrors.
func ValidateBatch(txns []model.Transaction) []Violation {
	var out []Violation
	flag := func(i int, format string, args ...any) {
		v := Violation{TransactionID: txns[i].ID, Description: fmt.Sprintf(format, args...)}
		out = append(out, v)
		if txns[i].Raw != nil {
			txns[i].Raw.ParseErrors = append(txns[i].Raw.ParseErrors, v.Description)
		}
	}

	seen := make(map[string]bool, len(txns))
	maxOcc := make(map[string]int)
	occSeen := make(map[string]map[int]bool)
	firstIdx := make(map[string]int)

	for i, t := range txns {
		if seen[t.ID] {
			flag(i, "duplicate transaction ID in batch")
		}
		seen[t.ID] = true

		parts, err := id.Parse(t.ID)
		if err != nil {
			flag(i, "invalid transaction ID: %v", err)
		} else {
			key := t.ID[:strings.LastIndex(t.ID, "_")]
			if occSeen[key] == nil {
				occSeen[key] = make(map[int]bool)
				firstIdx[key] = i
			}
			occSeen[key][parts.Occurrence] = true
			if parts.Occurrence > maxOcc[key] {
				maxOcc[key] = parts.Occurrence
			}
		}

		switch {
		case t.Type == model.TypeDebit && t.Amount.IsPositive():
			flag(i, "debit with positive amount %s", t.Amount.StringFixed(2))
		case t.Type == model.TypeCredit && t.Amount.IsNegative():
			flag(i, "credit with negative amount %s", t.Amount.StringFixed(2))
		}
	}

	keys := make([]string, 0, len(occSeen))
	for key := range occSeen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for n := 1; n <= maxOcc[key]; n++ {
			if !occSeen[key][n] {
				flag(firstIdx[key], "missing occurrence %d in 1..%d", n, maxOcc[key])
			}
		}
	}
	return out
}
