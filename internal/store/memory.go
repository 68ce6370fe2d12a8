package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cleared-dev/bankfeed/internal/model"
)

// Memory is an in-process Gateway for dry runs and tests.
type Memory struct {
	mu   sync.RWMutex
	txns map[string]model.Transaction
}

var _ Gateway = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{txns: make(map[string]model.Transaction)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Save(_ context.Context, t model.Transaction) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[t.ID]; ok {
		return Duplicate, nil
	}
	t.Raw = nil
	m.txns[t.ID] = t
	return Inserted, nil
}

func (m *Memory) SaveMany(ctx context.Context, ts []model.Transaction) (SaveResult, error) {
	return saveEach(ctx, m.Save, ts)
}

func (m *Memory) Get(_ context.Context, id string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.txns[id]
	if !ok {
		return nil, notFound(id)
	}
	return &t, nil
}

func (m *Memory) Query(_ context.Context, f Filter) ([]model.Transaction, error) {
	m.mu.RLock()
	matched := m.filter(f)
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID < matched[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (m *Memory) Count(_ context.Context, f Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filter(f)), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[id]; !ok {
		return notFound(id)
	}
	delete(m.txns, id)
	return nil
}

func (m *Memory) UpdateCategory(_ context.Context, id, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return notFound(id)
	}
	t.Category = category
	m.txns[id] = t
	return nil
}

func (m *Memory) DistinctValues(_ context.Context, field string) ([]string, error) {
	if err := checkDistinctField(field); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, t := range m.txns {
		var v string
		switch field {
		case "category":
			v = t.Category
		case "original_category":
			v = t.OriginalCategory
		case "bank_source":
			v = t.BankSource
		case "account_id":
			v = t.AccountID
		}
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

// filter must be called with mu held.
func (m *Memory) filter(f Filter) []model.Transaction {
	var out []model.Transaction
	for _, t := range m.txns {
		if matches(f, t) {
			out = append(out, t)
		}
	}
	return out
}

func matches(f Filter, t model.Transaction) bool {
	switch {
	case !f.From.IsZero() && t.Date.Before(model.DateOnly(f.From)):
		return false
	case !f.To.IsZero() && t.Date.After(model.DateOnly(f.To)):
		return false
	case f.Bank != "" && t.BankSource != f.Bank:
		return false
	case f.AccountID != "" && t.AccountID != f.AccountID:
		return false
	case f.Category != "" && t.Category != f.Category && t.OriginalCategory != f.Category:
		return false
	case f.Type != "" && t.Type != f.Type:
		return false
	case f.MinAmount.Valid && t.Amount.LessThan(f.MinAmount.Decimal):
		return false
	case f.MaxAmount.Valid && t.Amount.GreaterThan(f.MaxAmount.Decimal):
		return false
	}
	return true
}
