package docstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Client used by tests. It honors the same
// contract as the Redis implementation: Apply is atomic under one lock,
// absent documents read as empty maps, and RangeLast orders by score
// with the member id breaking ties.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]map[string]string
	indexes map[string]map[string]float64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]map[string]string),
		indexes: make(map[string]map[string]float64),
	}
}

func (s *Memory) GetField(ctx context.Context, doc, field string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.docs[doc][field]
	return val, ok, nil
}

func (s *Memory) GetDoc(ctx context.Context, doc string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.docs[doc]))
	for k, v := range s.docs[doc] {
		out[k] = v
	}
	return out, nil
}

func (s *Memory) RangeLast(ctx context.Context, index string, limit int) ([]RankedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]RankedEntry, 0, len(s.indexes[index]))
	for member, score := range s.indexes[index] {
		entries = append(entries, RankedEntry{Member: member, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score < entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (s *Memory) Apply(ctx context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range u.Ops {
		if op.Delete {
			delete(s.docs[op.Doc], op.Field)
			if len(s.docs[op.Doc]) == 0 {
				delete(s.docs, op.Doc)
			}
			continue
		}
		if s.docs[op.Doc] == nil {
			s.docs[op.Doc] = make(map[string]string)
		}
		s.docs[op.Doc][op.Field] = op.Value
	}
	for _, op := range u.Indexes {
		if op.Delete {
			delete(s.indexes[op.Index], op.Member)
			if len(s.indexes[op.Index]) == 0 {
				delete(s.indexes, op.Index)
			}
			continue
		}
		if s.indexes[op.Index] == nil {
			s.indexes[op.Index] = make(map[string]float64)
		}
		s.indexes[op.Index][op.Member] = op.Score
	}
	return nil
}
