// Package store implements the OperationStore contract of spec.md §4.6:
// a multimap DidSuffix → Set<AnchoredOperation>, put idempotent by anchor
// key, get's iteration order unspecified (the resolver sorts).
package store

import "github.com/didresolve/sidetree-resolver/pkg/operation"

// OperationStore is the contract spec.md §4.6 names. No delete in the
// normal path; DeleteUpdatesEarlierThan is permitted for pruning after
// checkpointing but is never called by Resolver.Resolve itself.
type OperationStore interface {
	Put(ops []*operation.AnchoredOperation) error
	Get(didSuffix operation.DidSuffix) ([]*operation.AnchoredOperation, error)
	DeleteUpdatesEarlierThan(transactionTime uint64) error
}
