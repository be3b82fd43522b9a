package store

import (
	"sync"

	"github.com/didresolve/sidetree-resolver/pkg/operation"
)

// MemStore is a map-of-slices OperationStore, zero dependencies, used by
// the resolver's scenario tests (S1–S5) in this module.
type MemStore struct {
	mu  sync.RWMutex
	ops map[operation.DidSuffix][]*operation.AnchoredOperation
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{ops: make(map[operation.DidSuffix][]*operation.AnchoredOperation)}
}

// Put inserts ops, skipping any whose anchor key already exists for that
// DID suffix — the idempotency spec.md §4.6 requires.
func (s *MemStore) Put(ops []*operation.AnchoredOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		existing := s.ops[op.DidSuffix]
		if anchorKeyExists(existing, op.AnchorKey) {
			continue
		}
		s.ops[op.DidSuffix] = append(existing, op)
	}
	return nil
}

func anchorKeyExists(ops []*operation.AnchoredOperation, key operation.AnchorKey) bool {
	for _, op := range ops {
		if op.AnchorKey == key {
			return true
		}
	}
	return false
}

// Get returns every operation stored for didSuffix, in insertion order —
// an order the resolver must not rely on, per spec.md §4.6.
func (s *MemStore) Get(didSuffix operation.DidSuffix) ([]*operation.AnchoredOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := s.ops[didSuffix]
	out := make([]*operation.AnchoredOperation, len(existing))
	copy(out, existing)
	return out, nil
}

// DeleteUpdatesEarlierThan removes Update operations anchored before
// transactionTime, across every DID — the pruning escape hatch spec.md
// §4.6 permits.
func (s *MemStore) DeleteUpdatesEarlierThan(transactionTime uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for suffix, ops := range s.ops {
		kept := ops[:0:0]
		for _, op := range ops {
			if op.Kind == operation.KindUpdate && op.AnchorKey.TransactionTime < transactionTime {
				continue
			}
			kept = append(kept, op)
		}
		s.ops[suffix] = kept
	}
	return nil
}
