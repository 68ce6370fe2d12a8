// Package export writes normalized transactions to JSON and CSV files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cleared-dev/bankfeed/internal/config"
	"github.com/cleared-dev/bankfeed/internal/model"
)

// SaveFiles writes txns to dir as <base>.json and/or <base>.csv according
// to format and returns the paths written.
func SaveFiles(dir, base, format string, txns []model.Transaction, exportedAt time.Time) ([]string, error) {
	var exts []string
	switch format {
	case config.FormatJSON:
		exts = []string{".json"}
	case config.FormatCSV:
		exts = []string{".csv"}
	case config.FormatBoth:
		exts = []string{".json", ".csv"}
	case config.FormatNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	var written []string
	for _, ext := range exts {
		path := filepath.Join(dir, base+ext)
		if err := writeFile(path, ext, txns, exportedAt); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path, ext string, txns []model.Transaction, exportedAt time.Time) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	if ext == ".json" {
		return WriteJSON(f, txns, exportedAt)
	}
	return WriteCSV(f, txns)
}

// ReadFile loads transactions from a .json or .csv file written by SaveFiles.
func ReadFile(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		env, err := ReadJSON(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return env.Transactions, nil
	case ".csv":
		txns, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return txns, nil
	default:
		return nil, fmt.Errorf("unsupported export file %s (want .json or .csv)", path)
	}
}
