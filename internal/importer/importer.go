package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/bankfeed/internal/logger"
	"github.com/cleared-dev/bankfeed/internal/model"
)

// Parser converts one bank's CSV export into canonical transactions.
type Parser interface {
	// Format is the bank tag stamped on every transaction, e.g. "westpac".
	Format() string
	Description() string
	// CanParse sniffs path cheaply. It must not fail loudly on unreadable files.
	CanParse(path string) bool
	Parse(ctx context.Context, path string) ([]model.Transaction, error)
}

// Registry holds parsers in registration order.
type Registry struct {
	order   []string
	parsers map[string]Parser
}

// Batch is the result of parsing one file.
type Batch struct {
	Bank         string
	Path         string
	Transactions []model.Transaction
}

// FileResult pairs a file found by ParseDirectory with its outcome.
type FileResult struct {
	Path  string
	Batch *Batch
	Err   error
}

// Options tune the built-in parsers.
type Options struct {
	// AccountID overrides the path-derived account for dialects without one.
	AccountID string
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
	r.order = append(r.order, key)
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Lookup is Get with an UnknownParserError for missing names.
func (r *Registry) Lookup(format string) (Parser, error) {
	if p := r.Get(format); p != nil {
		return p, nil
	}
	return nil, &UnknownParserError{Name: format}
}

// Names returns registered formats in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Parsers returns registered parsers in registration order.
func (r *Registry) Parsers() []Parser {
	out := make([]Parser, len(r.order))
	for i, name := range r.order {
		out[i] = r.parsers[name]
	}
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	return DefaultRegistryWithOptions(Options{})
}

// DefaultRegistryWithOptions returns the built-in parsers configured by opts.
// Registration order is detection priority: the first parser that claims a
// file wins.
func DefaultRegistryWithOptions(opts Options) *Registry {
	r := NewRegistry()
	r.Register(&WestpacParser{})
	r.Register(&ANZParser{AccountID: opts.AccountID})
	r.Register(&BankwestParser{})
	r.Register(&CBAParser{AccountID: opts.AccountID})
	r.Register(&MacquarieParser{})
	return r
}

// Detect returns the first parser, in registration order, that claims path.
// A parser that panics while sniffing is logged and skipped.
func (r *Registry) Detect(ctx context.Context, path string) (Parser, error) {
	log := logger.FromContext(ctx)
	for _, p := range r.Parsers() {
		ok, err := safeCanParse(p, path)
		if err != nil {
			log.Warn().Err(err).Str("parser", p.Format()).Str("file", path).Msg("detection failed")
			continue
		}
		if ok {
			return p, nil
		}
	}
	return nil, &NoParserMatchedError{Path: path, Tried: r.Names()}
}

func safeCanParse(p Parser, path string) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s detection panicked: %v", p.Format(), rec)
		}
	}()
	return p.CanParse(path), nil
}

// ParseFile parses path with the forced parser, or the detected one when
// forced is empty. Batch validation findings are attached, never fatal.
func (r *Registry) ParseFile(ctx context.Context, path, forced string) (*Batch, error) {
	var (
		p   Parser
		err error
	)
	if forced != "" {
		p, err = r.Lookup(forced)
	} else {
		p, err = r.Detect(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With().Str("parser", p.Format()).Str("file", path).Logger()
	log.Debug().Msg("parsing file")

	txns, err := p.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s with %s: %w", path, p.Format(), err)
	}

	for _, v := range ValidateBatch(txns) {
		log.Warn().Str("id", v.TransactionID).Msg(v.Description)
	}
	log.Debug().Int("transactions", len(txns)).Msg("parsed file")

	return &Batch{Bank: p.Format(), Path: path, Transactions: txns}, nil
}

// ParseDirectory parses every .csv file under dir in path order. Failures
// are recorded per file and never stop the walk.
func (r *Registry) ParseDirectory(ctx context.Context, dir string, recursive bool, forced string) ([]FileResult, error) {
	paths, err := ListCSV(dir, recursive)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		batch, err := r.ParseFile(ctx, path, forced)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("failed to parse file")
		}
		results = append(results, FileResult{Path: path, Batch: batch, Err: err})
	}
	return results, nil
}

// ListCSV returns the sorted .csv files in dir, descending into
// subdirectories when recursive is set.
func ListCSV(dir string, recursive bool) ([]string, error) {
	var paths []string
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && hasCSVExt(e.Name()) {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
		return paths, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasCSVExt(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
