// Package ingestlog keeps an append-only CSV record of every file the
// watcher handled.
package ingestlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Status is the outcome recorded for a file.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Entry is one row in the ingest log.
type Entry struct {
	Timestamp  time.Time
	RunID      string
	File       string
	Parser     string
	Status     Status
	Inserted   int
	Duplicates int
	Detail     string
}

// Header is the CSV header for ingest-log.csv.
const Header = "timestamp,run_id,file,parser,status,inserted,duplicates,detail"

const (
	numFields     = 8
	logDir        = "logs"
	logFile       = "ingest-log.csv"
	colTimestamp  = 0
	colRunID      = 1
	colFile       = 2
	colParser     = 3
	colStatus     = 4
	colInserted   = 5
	colDuplicates = 6
	colDetail     = 7
)

// Path returns the log file location under dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, logDir, logFile)
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colFile] = e.File
	row[colParser] = e.Parser
	row[colStatus] = string(e.Status)
	row[colInserted] = strconv.Itoa(e.Inserted)
	row[colDuplicates] = strconv.Itoa(e.Duplicates)
	row[colDetail] = e.Detail
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	inserted, err := strconv.Atoi(record[colInserted])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing inserted %q: %w", record[colInserted], err)
	}
	dups, err := strconv.Atoi(record[colDuplicates])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing duplicates %q: %w", record[colDuplicates], err)
	}

	return Entry{
		Timestamp:  ts,
		RunID:      record[colRunID],
		File:       record[colFile],
		Parser:     record[colParser],
		Status:     Status(record[colStatus]),
		Inserted:   inserted,
		Duplicates: dups,
		Detail:     record[colDetail],
	}, nil
}

// Append writes entries to <dataDir>/logs/ingest-log.csv, creating the file
// and header if needed.
func Append(dataDir string, entries ...Entry) error {
	if err := os.MkdirAll(filepath.Join(dataDir, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(dataDir)
	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ingest log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dataDir>/logs/ingest-log.csv.
// Returns an empty slice if the file does not exist.
func Read(dataDir string) ([]Entry, error) {
	f, err := os.Open(Path(dataDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ingest log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ingest log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
