// Package memory provides an in-memory implementation of storage.Store
// for testing and throwaway development. Waivers are lost when the
// process exits.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/storage"
)

// Store is an in-memory waiver store. Ids are assigned from a strictly
// increasing counter under the store lock, so two "latest" rows for the
// same subject and testcase are never simultaneously visible.
type Store struct {
	mu      sync.RWMutex
	waivers []*api.Waiver
	nextID  int64

	// now is replaced in tests to control timestamps.
	now func() time.Time
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{nextID: 1, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Insert appends a waiver, assigning its id and timestamp.
func (s *Store) Insert(_ context.Context, w *api.Waiver) (*api.Waiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *w
	stored.ID = s.nextID
	s.nextID++
	stored.Timestamp = s.now()
	s.waivers = append(s.waivers, &stored)

	result := stored
	return &result, nil
}

// Get retrieves a waiver by id.
func (s *Store) Get(_ context.Context, id int64) (*api.Waiver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.waivers {
		if w.ID == id {
			result := *w
			return &result, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Query returns the page of waivers matching the filter, newest first.
func (s *Store) Query(_ context.Context, f storage.Filter, p storage.Page) (*storage.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The obsolescence collapse is membership in the set of ids that are
	// the maximum within their (subject, testcase) group, computed over
	// the whole collection, not over the filtered subset.
	var latest map[int64]bool
	if !f.IncludeObsolete {
		maxPerGroup := make(map[[2]string]int64)
		for _, w := range s.waivers {
			key := [2]string{w.Subject.Key(), w.Testcase}
			if w.ID > maxPerGroup[key] {
				maxPerGroup[key] = w.ID
			}
		}
		latest = make(map[int64]bool, len(maxPerGroup))
		for _, id := range maxPerGroup {
			latest[id] = true
		}
	}

	var matched []*api.Waiver
	for _, w := range s.waivers {
		if latest != nil && !latest[w.ID] {
			continue
		}
		if !storage.Matches(w, f) {
			continue
		}
		result := *w
		matched = append(matched, &result)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))

	if p.Limit > 0 {
		offset := p.Offset()
		if offset >= len(matched) {
			matched = nil
		} else {
			end := offset + p.Limit
			if end > len(matched) {
				end = len(matched)
			}
			matched = matched[offset:end]
		}
	}

	return &storage.QueryResult{Waivers: matched, Total: total}, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
