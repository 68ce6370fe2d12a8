// Package watcher polls an inbox directory, imports every CSV it finds and
// relocates each file to processed/ or failed/ according to the outcome.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/bankfeed/internal/importer"
	"github.com/cleared-dev/bankfeed/internal/ingestlog"
	"github.com/cleared-dev/bankfeed/internal/logger"
	"github.com/cleared-dev/bankfeed/internal/store"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
	errorExt     = ".error"

	defaultPattern = "*.csv"
)

// ErrNoTransactions marks a file that parsed cleanly but yielded nothing.
var ErrNoTransactions = errors.New("no transactions parsed")

// Options configure a Watcher.
type Options struct {
	WatchDir     string
	DataDir      string
	PollInterval time.Duration
	// Parser forces a named parser instead of detection.
	Parser string
	// Pattern is the file glob; "*.csv" when empty.
	Pattern string
}

// Watcher moves files from WatchDir through the registry into the store.
type Watcher struct {
	opts      Options
	registry  *importer.Registry
	store     store.Gateway
	processed string
	failed    string
	now       func() time.Time
}

// Result is the outcome of one file.
type Result struct {
	Path       string
	Parser     string
	Status     ingestlog.Status
	Parsed     int
	Inserted   int
	Duplicates int
	MovedTo    string
	Err        error
}

// CycleReport summarizes one scan.
type CycleReport struct {
	RunID      string
	Found      int
	Processed  int
	Failed     int
	Inserted   int
	Duplicates int
	Results    []Result
}

// New creates the watch, processed and failed directories and returns a
// Watcher that uses reg and gw.
func New(opts Options, reg *importer.Registry, gw store.Gateway) (*Watcher, error) {
	if opts.Pattern == "" {
		opts.Pattern = defaultPattern
	}
	w := &Watcher{
		opts:      opts,
		registry:  reg,
		store:     gw,
		processed: filepath.Join(opts.DataDir, processedDir),
		failed:    filepath.Join(opts.DataDir, failedDir),
		now:       time.Now,
	}
	for _, dir := range []string{opts.WatchDir, w.processed, w.failed} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return w, nil
}

// ProcessedDir returns where successfully imported files are moved.
func (w *Watcher) ProcessedDir() string { return w.processed }

// FailedDir returns where rejected files and their notes are moved.
func (w *Watcher) FailedDir() string { return w.failed }

// Scan returns matching files at the top level of the watch directory and
// one level below it, in path order. The processed and failed directories
// are skipped when they live inside the watch directory.
func (w *Watcher) Scan() ([]string, error) {
	var paths []string
	for _, pattern := range []string{
		filepath.Join(w.opts.WatchDir, w.opts.Pattern),
		filepath.Join(w.opts.WatchDir, "*", w.opts.Pattern),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", w.opts.WatchDir, err)
		}
		for _, m := range matches {
			if w.excluded(m) {
				continue
			}
			if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
				continue
			}
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (w *Watcher) excluded(path string) bool {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return false
	}
	for _, skip := range []string{w.processed, w.failed} {
		abs, err := filepath.Abs(skip)
		if err == nil && abs == dir {
			return true
		}
	}
	return false
}

// ProcessFile parses, saves and relocates one file. The file is always
// moved out of the watch directory unless the move itself fails.
// Cancelling ctx does not interrupt a file already in progress.
func (w *Watcher) ProcessFile(ctx context.Context, path string) Result {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx).With().Str("file", path).Logger()
	log.Info().Msg("processing file")

	res := Result{Path: path}
	batch, err := w.registry.ParseFile(ctx, path, w.opts.Parser)
	if err != nil {
		return w.fail(ctx, log, res, err)
	}
	res.Parser = batch.Bank
	res.Parsed = len(batch.Transactions)
	if res.Parsed == 0 {
		return w.fail(ctx, log, res, fmt.Errorf("%w from %s", ErrNoTransactions, filepath.Base(path)))
	}
	log.Info().Str("parser", res.Parser).Int("transactions", res.Parsed).Msg("parsed file")

	saved, err := w.store.SaveMany(ctx, batch.Transactions)
	res.Inserted, res.Duplicates = saved.Inserted, saved.Duplicates
	if err != nil {
		return w.fail(ctx, log, res, fmt.Errorf("saving transactions: %w", err))
	}
	log.Info().Int("saved", saved.Inserted).Int("skipped", saved.Duplicates).Msg("saved transactions")

	dest, err := w.moveToProcessed(path)
	if err != nil {
		res.Status = ingestlog.StatusFailed
		res.Err = err
		log.Error().Err(err).Msg("could not relocate processed file")
		w.record(ctx, res)
		return res
	}
	res.Status = ingestlog.StatusProcessed
	res.MovedTo = dest
	log.Info().Str("dest", dest).Msg("moved to processed")
	w.record(ctx, res)
	return res
}

func (w *Watcher) fail(ctx context.Context, log zerolog.Logger, res Result, cause error) Result {
	log.Error().Err(cause).Msg("failed to process file")
	res.Status = ingestlog.StatusFailed
	res.Err = cause

	dest, err := w.moveToFailed(res.Path, cause)
	if err != nil {
		log.Error().Err(err).Msg("could not relocate failed file")
		res.Err = errors.Join(cause, err)
	} else {
		res.MovedTo = dest
		log.Info().Str("dest", dest).Msg("moved to failed")
	}
	w.record(ctx, res)
	return res
}

// moveToProcessed keeps a one-level subdirectory so path-detected dialects
// can be dropped back in unchanged.
func (w *Watcher) moveToProcessed(path string) (string, error) {
	destDir := w.processed
	if parent := filepath.Dir(path); filepath.Clean(parent) != filepath.Clean(w.opts.WatchDir) {
		destDir = filepath.Join(w.processed, filepath.Base(parent))
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", destDir, err)
		}
	}
	name := filepath.Base(path)
	dest := filepath.Join(destDir, stampedName(destDir, name, w.now(), false)+filepath.Ext(name))
	if err := moveFile(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// moveToFailed relocates path and writes a sidecar note next to it.
func (w *Watcher) moveToFailed(path string, cause error) (string, error) {
	name := filepath.Base(path)
	base := stampedName(w.failed, name, w.now(), true)
	dest := filepath.Join(w.failed, base+filepath.Ext(name))
	if err := moveFile(path, dest); err != nil {
		return "", err
	}
	note := fmt.Sprintf("Error processing %s:\n%v\n", name, cause)
	if err := os.WriteFile(filepath.Join(w.failed, base+errorExt), []byte(note), 0o644); err != nil {
		return dest, fmt.Errorf("writing error note: %w", err)
	}
	return dest, nil
}

func (w *Watcher) record(ctx context.Context, res Result) {
	entry := ingestlog.Entry{
		Timestamp:  w.now(),
		RunID:      runID(ctx),
		File:       res.Path,
		Parser:     res.Parser,
		Status:     res.Status,
		Inserted:   res.Inserted,
		Duplicates: res.Duplicates,
		Detail:     res.MovedTo,
	}
	if res.Err != nil {
		entry.Detail = res.Err.Error()
	}
	if err := ingestlog.Append(w.opts.DataDir, entry); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("could not append ingest log")
	}
}

// RunOnce scans once and processes every file found. When ctx is cancelled
// it stops before the next file and returns what was done so far.
func (w *Watcher) RunOnce(ctx context.Context) (CycleReport, error) {
	report := CycleReport{RunID: uuid.NewString()}
	log := logger.FromContext(ctx).With().Str("run_id", report.RunID).Logger()
	ctx = withRunID(logger.WithContext(ctx, log), report.RunID)

	files, err := w.Scan()
	if err != nil {
		return report, err
	}
	report.Found = len(files)
	if len(files) == 0 {
		return report, nil
	}
	log.Info().Int("files", len(files)).Msg("found CSV files")

	for _, path := range files {
		if ctx.Err() != nil {
			log.Info().Msg("stopping before next file")
			break
		}
		res := w.ProcessFile(ctx, path)
		report.Results = append(report.Results, res)
		report.Inserted += res.Inserted
		report.Duplicates += res.Duplicates
		if res.Status == ingestlog.StatusProcessed {
			report.Processed++
		} else {
			report.Failed++
		}
	}
	log.Info().
		Int("processed", report.Processed).
		Int("failed", report.Failed).
		Int("saved", report.Inserted).
		Int("skipped", report.Duplicates).
		Msg("cycle complete")
	return report, nil
}

// Run polls until ctx is cancelled, sleeping PollInterval between scans.
func (w *Watcher) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("watch_dir", w.opts.WatchDir).
		Str("data_dir", w.opts.DataDir).
		Dur("poll_interval", w.opts.PollInterval).
		Msg("starting file watcher")

	for {
		report, err := w.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("scan failed")
		}
		if report.Processed > 0 {
			if total, err := w.store.Count(context.WithoutCancel(ctx), store.Filter{}); err == nil {
				log.Info().Int("total", total).Msg("transactions in store")
			} else {
				log.Warn().Err(err).Msg("could not count transactions")
			}
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case <-time.After(w.opts.PollInterval):
		}
	}
}

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
