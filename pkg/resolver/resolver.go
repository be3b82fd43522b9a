// Package resolver implements the Resolver of spec.md §4.7: orchestrate
// per-DID state reconstruction from the store, enforcing the anchor-key
// total order, the commit-reveal discipline, and the earliest-anchor-key
// tiebreak for adversarially duplicated reveals. Grounded on the
// teacher's pkg/did/processor.go's ProcessBallot dispatch-by-kind control
// flow, generalized from "one operation at a time, ballot by ballot"
// into the full bucketed resolution algorithm.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/google/uuid"

	"github.com/didresolve/sidetree-resolver/pkg/canon"
	"github.com/didresolve/sidetree-resolver/pkg/operation"
	"github.com/didresolve/sidetree-resolver/pkg/processor"
	"github.com/didresolve/sidetree-resolver/pkg/store"
	"github.com/didresolve/sidetree-resolver/pkg/versionmgr"
)

// processorCacheTTL mirrors cocoon's identity/mem_cache.go 5-minute TTL.
const processorCacheTTL = 5 * time.Minute

var errUnrevealable = errors.New("operation kind carries no revealed key")

// Resolver implements spec.md §4.7's resolve(did_suffix) → Option<DidState>.
type Resolver struct {
	store  store.OperationStore
	vm     versionmgr.VersionManager
	logger *slog.Logger

	// Memoizes VersionManager.ForTransactionTime per transaction time.
	// The spec requires the call site per operation but never forbids
	// caching the result; grounded on cocoon's identity/mem_cache.go
	// expirable.LRU usage.
	procCache *lru.LRU[uint64, versionmgr.Processor]
}

// New returns a Resolver over store, consulting vm for the processor in
// effect at each operation's transaction time. logger may be nil, in
// which case slog.Default() is used.
func New(s store.OperationStore, vm versionmgr.VersionManager, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:     s,
		vm:        vm,
		logger:    logger,
		procCache: lru.NewLRU[uint64, versionmgr.Processor](256, nil, processorCacheTTL),
	}
}

func (r *Resolver) processorFor(transactionTime uint64) (versionmgr.Processor, error) {
	if p, ok := r.procCache.Get(transactionTime); ok {
		return p, nil
	}
	p, err := r.vm.ForTransactionTime(transactionTime)
	if err != nil {
		return nil, err
	}
	r.procCache.Add(transactionTime, p)
	return p, nil
}

func (r *Resolver) apply(prior *processor.DidState, op *operation.AnchoredOperation) (*processor.DidState, bool) {
	proc, err := r.processorFor(op.AnchorKey.TransactionTime)
	if err != nil {
		r.logger.Warn("version manager lookup failed", "transaction_time", op.AnchorKey.TransactionTime, "error", err)
		return nil, false
	}
	return proc.Apply(prior, op)
}

// Resolve implements spec.md §4.7's 9-step algorithm.
func (r *Resolver) Resolve(ctx context.Context, didSuffix operation.DidSuffix) (*processor.DidState, bool) {
	requestID := uuid.NewString()
	log := r.logger.With("request_id", requestID, "did_suffix", didSuffix)

	// Step 1: fetch all operations for did_suffix.
	ops, err := r.store.Get(didSuffix)
	if err != nil {
		log.Error("store.Get failed", "error", err)
		return nil, false
	}

	// Step 2: partition by kind.
	var creates, updates, recovers, deactivates []*operation.AnchoredOperation
	for _, op := range ops {
		switch op.Kind {
		case operation.KindCreate:
			creates = append(creates, op)
		case operation.KindUpdate:
			updates = append(updates, op)
		case operation.KindRecover:
			recovers = append(recovers, op)
		case operation.KindDeactivate:
			deactivates = append(deactivates, op)
		}
	}
	sortByAnchorKey(creates)

	// Step 3 & 4: pick the earliest valid Create by anchor key. Per the
	// resolved open question (spec.md §9), the first valid Create wins —
	// later ones, even if individually well-formed, never overwrite it.
	var state *processor.DidState
	for _, candidate := range creates {
		if candidate.Create == nil {
			continue
		}
		computedSuffix, err := canon.CanonicalizeHashEncode(candidate.Create.SuffixData)
		if err != nil || computedSuffix != didSuffix {
			continue
		}
		if next, ok := r.apply(nil, candidate); ok {
			state = next
			break
		}
	}
	if state == nil {
		log.Debug("resolve: no valid create found")
		return nil, false
	}

	// Step 5: bucket recover+deactivate by the commitment each reveals
	// against, derived from the revealed recovery key.
	recoverDeactivateBuckets := make(map[string][]*operation.AnchoredOperation)
	for _, op := range recovers {
		key, err := revealCommitment(op)
		if err != nil {
			continue
		}
		recoverDeactivateBuckets[key] = append(recoverDeactivateBuckets[key], op)
	}
	for _, op := range deactivates {
		key, err := revealCommitment(op)
		if err != nil {
			continue
		}
		recoverDeactivateBuckets[key] = append(recoverDeactivateBuckets[key], op)
	}
	for k := range recoverDeactivateBuckets {
		sortByAnchorKey(recoverDeactivateBuckets[k])
	}

	// Step 6: applyRecoverAndDeactivateOperations.
	for !state.IsDeactivated {
		commitment := state.NextRecoveryCommitment
		bucket, ok := recoverDeactivateBuckets[commitment]
		if !ok || len(bucket) == 0 {
			break
		}
		candidate := bucket[0]
		recoverDeactivateBuckets[commitment] = bucket[1:]
		if next, applied := r.apply(state, candidate); applied {
			state = next
		}
		// On failure the entry is dropped (already popped above) and the
		// loop retries the same commitment against the next candidate in
		// the bucket, per the same-reveal-earliest-wins rule.
	}

	if state.IsDeactivated {
		log.Debug("resolve: terminal after deactivate")
		return state, true
	}

	// Step 7: bucket all updates by the commitment each reveals against.
	updateBuckets := make(map[string][]*operation.AnchoredOperation)
	for _, op := range updates {
		key, err := revealCommitment(op)
		if err != nil {
			continue
		}
		updateBuckets[key] = append(updateBuckets[key], op)
	}
	for k := range updateBuckets {
		sortByAnchorKey(updateBuckets[k])
	}

	// Step 8: applyUpdateOperations. Only one update per commitment can
	// succeed — it shifts the commitment forward; losers in a same-reveal
	// race are skipped by the earliest-anchor-key rule already baked into
	// each bucket's sort order.
	for state.NextUpdateCommitment != nil {
		commitment := *state.NextUpdateCommitment
		bucket, ok := updateBuckets[commitment]
		if !ok || len(bucket) == 0 {
			break
		}
		candidate := bucket[0]
		updateBuckets[commitment] = bucket[1:]
		if next, applied := r.apply(state, candidate); applied {
			state = next
		}
	}

	log.Debug("resolve: done", "last_operation_transaction_number", state.LastOperationTransactionNumber, "is_deactivated", state.IsDeactivated)
	return state, true
}

// revealCommitment computes the commitment string that op reveals
// against, derived from its own revealed key — the bucketing key for
// steps 5 and 7.
func revealCommitment(op *operation.AnchoredOperation) (string, error) {
	switch op.Kind {
	case operation.KindRecover:
		return canon.CanonicalizeHashEncode(op.Recover.SignedData.RecoveryKey)
	case operation.KindDeactivate:
		return canon.CanonicalizeHashEncode(op.Deactivate.SignedData.RecoveryKey)
	case operation.KindUpdate:
		return canon.CanonicalizeHashEncode(op.Update.SignedData.UpdateKey)
	default:
		return "", errUnrevealable
	}
}

func sortByAnchorKey(ops []*operation.AnchoredOperation) {
	sort.Slice(ops, func(i, j int) bool { return ops[i].AnchorKey.Less(ops[j].AnchorKey) })
}
