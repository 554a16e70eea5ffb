// Package memory provides a fixture-backed receipt source for tests and the
// offline backend mode.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"receiptdash/internal/core"
	ports "receiptdash/internal/source"
)

type Store struct {
	mu    sync.Mutex
	items []core.RawReceipt
}

// Ensure interface conformance
var _ ports.ReceiptFetcher = (*Store)(nil)

func New(items []core.RawReceipt) *Store {
	return &Store{items: items}
}

// NewFromFile seeds the store from a JSON fixture shaped like the data
// source's response ({"items": [...]}). A missing or unreadable file yields
// an empty store.
func NewFromFile(path string) *Store {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Store{}
	}
	var body struct {
		Items []core.RawReceipt `json:"items"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return &Store{}
	}
	return &Store{items: body.Items}
}

// Fetch returns a copy of the seeded items. An empty token is rejected to
// keep parity with the real data source.
func (s *Store) Fetch(_ context.Context, token string) ([]core.RawReceipt, error) {
	if token == "" {
		return nil, ports.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]core.RawReceipt, len(s.items))
	copy(items, s.items)
	return items, nil
}

// Replace swaps the seeded items, for tests that simulate dataset changes.
func (s *Store) Replace(items []core.RawReceipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}
