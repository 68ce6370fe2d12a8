package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// Envelope is the JSON export document.
type Envelope struct {
	ExportedAt   time.Time           `json:"exported_at"`
	Count        int                 `json:"count"`
	Transactions []model.Transaction `json:"transactions"`
}

// WriteJSON writes txns, with their raw source rows, as an indented envelope.
func WriteJSON(w io.Writer, txns []model.Transaction, exportedAt time.Time) error {
	if txns == nil {
		txns = []model.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Envelope{ExportedAt: exportedAt, Count: len(txns), Transactions: txns}); err != nil {
		return fmt.Errorf("encoding transactions: %w", err)
	}
	return nil
}

// ReadJSON decodes an envelope written by WriteJSON.
func ReadJSON(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding transactions: %w", err)
	}
	if env.Count != len(env.Transactions) {
		return nil, fmt.Errorf("envelope count %d does not match %d transactions", env.Count, len(env.Transactions))
	}
	return &env, nil
}
