package resolver

import (
	"context"
	"math/rand"
	"testing"

	"github.com/didresolve/sidetree-resolver/internal/testutil"
	"github.com/didresolve/sidetree-resolver/pkg/canon"
	"github.com/didresolve/sidetree-resolver/pkg/document"
	"github.com/didresolve/sidetree-resolver/pkg/jwk"
	"github.com/didresolve/sidetree-resolver/pkg/operation"
	"github.com/didresolve/sidetree-resolver/pkg/store"
	"github.com/didresolve/sidetree-resolver/pkg/versionmgr"
)

func newResolver(t *testing.T) (*Resolver, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	return New(s, versionmgr.NewStatic(), nil), s
}

func commitmentOf(t *testing.T, v any) string {
	t.Helper()
	c, err := canon.CanonicalizeHashEncode(v)
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	return c
}

func samplePublicJWK(t *testing.T, id string) *jwk.JWK {
	t.Helper()
	kp, err := testutil.NewECKeyPair(id)
	if err != nil {
		t.Fatalf("generate key %q: %v", id, err)
	}
	return kp.Public
}

// TestS1CreateOnly is spec.md §8's scenario S1.
func TestS1CreateOnly(t *testing.T) {
	r, s := newResolver(t)

	op, _, err := testutil.BuildCreate(testutil.CreateOpts{
		RecoveryCommitment: "recovery-commitment",
		UpdateCommitment:   "update-commitment",
		Patches: []document.Patch{
			{Action: document.ActionAddPublicKeys, PublicKeys: []document.PublicKey{{ID: "signingKey", Type: "JsonWebKey2020", PublicKeyJwk: samplePublicJWK(t, "signingKey")}}},
			{Action: document.ActionAddServiceEndpoints, ServiceEndpoints: []document.ServiceEndpoint{{ID: "dummyHubUri1", Type: "LinkedDomains", ServiceEndpoint: "https://hub.example/1"}}},
		},
		AnchorKey: operation.AnchorKey{TransactionTime: 1, TransactionNumber: 1, OperationIndex: 1},
	})
	if err != nil {
		t.Fatalf("build create: %v", err)
	}
	if err := s.Put([]*operation.AnchoredOperation{op}); err != nil {
		t.Fatalf("put: %v", err)
	}

	state, ok := r.Resolve(context.Background(), op.DidSuffix)
	if !ok {
		t.Fatal("resolve failed for a lone valid Create")
	}
	if len(state.Document.PublicKeys) != 1 {
		t.Errorf("public_keys.len = %d, want 1", len(state.Document.PublicKeys))
	}
	if len(state.Document.ServiceEndpoints) != 1 {
		t.Errorf("service_endpoints.len = %d, want 1", len(state.Document.ServiceEndpoints))
	}
	if state.IsDeactivated {
		t.Error("is_deactivated = true, want false")
	}
}

// TestS2CreateUpdatesRecoverUpdates is spec.md §8's scenario S2.
func TestS2CreateUpdatesRecoverUpdates(t *testing.T) {
	r, s := newResolver(t)

	updateKey1, _ := testutil.NewECKeyPair("update-1")
	updateKey2, _ := testutil.NewECKeyPair("update-2")
	updateKey3, _ := testutil.NewECKeyPair("update-3")
	updateKey4, _ := testutil.NewECKeyPair("update-4")
	recoveryKey1, _ := testutil.NewECKeyPair("recovery-1")
	recoveryKey2, _ := testutil.NewECKeyPair("recovery-2")

	create, _, err := testutil.BuildCreate(testutil.CreateOpts{
		RecoveryCommitment: commitmentOf(t, recoveryKey1.Public),
		UpdateCommitment:   commitmentOf(t, updateKey1.Public),
		Patches: []document.Patch{
			{Action: document.ActionAddPublicKeys, PublicKeys: []document.PublicKey{{ID: "key1", Type: "JsonWebKey2020", PublicKeyJwk: samplePublicJWK(t, "key1")}}},
			{Action: document.ActionAddServiceEndpoints, ServiceEndpoints: []document.ServiceEndpoint{{ID: "dummyHubUri1", Type: "LinkedDomains", ServiceEndpoint: "https://hub.example/1"}}},
		},
		AnchorKey: operation.AnchorKey{TransactionTime: 1, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build create: %v", err)
	}

	update1, _, err := testutil.BuildUpdate(testutil.UpdateOpts{
		DidSuffix:        create.DidSuffix,
		UpdateKey:        updateKey1,
		UpdateCommitment: commitmentOf(t, updateKey2.Public),
		DeltaPatches: []document.Patch{
			{Action: document.ActionAddPublicKeys, PublicKeys: []document.PublicKey{{ID: "key2", Type: "JsonWebKey2020", PublicKeyJwk: samplePublicJWK(t, "key2")}}},
			{Action: document.ActionAddServiceEndpoints, ServiceEndpoints: []document.ServiceEndpoint{{ID: "dummyHubUri2", Type: "LinkedDomains", ServiceEndpoint: "https://hub.example/2"}}},
		},
		AnchorKey: operation.AnchorKey{TransactionTime: 2, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build update1: %v", err)
	}

	update2, _, err := testutil.BuildUpdate(testutil.UpdateOpts{
		DidSuffix:        create.DidSuffix,
		UpdateKey:        updateKey2,
		UpdateCommitment: commitmentOf(t, updateKey3.Public),
		AnchorKey:        operation.AnchorKey{TransactionTime: 3, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build update2: %v", err)
	}

	if err := s.Put([]*operation.AnchoredOperation{create, update1, update2}); err != nil {
		t.Fatalf("put pre-recover batch: %v", err)
	}

	preRecover, ok := r.Resolve(context.Background(), create.DidSuffix)
	if !ok {
		t.Fatal("resolve failed before recover")
	}
	if len(preRecover.Document.PublicKeys) != 2 {
		t.Errorf("before recover: public_keys.len = %d, want 2", len(preRecover.Document.PublicKeys))
	}
	if len(preRecover.Document.ServiceEndpoints) != 2 {
		t.Errorf("before recover: service_endpoints.len = %d, want 2", len(preRecover.Document.ServiceEndpoints))
	}

	recoverOp, _, err := testutil.BuildRecover(testutil.RecoverOpts{
		DidSuffix:             create.DidSuffix,
		RecoveryKey:           recoveryKey1,
		NewRecoveryCommitment: commitmentOf(t, recoveryKey2.Public),
		UpdateCommitment:      commitmentOf(t, updateKey3.Public),
		DeltaPatches: []document.Patch{
			{Action: document.ActionAddPublicKeys, PublicKeys: []document.PublicKey{
				{ID: "newKey1", Type: "JsonWebKey2020", PublicKeyJwk: samplePublicJWK(t, "newKey1")},
				{ID: "newKey2", Type: "JsonWebKey2020", PublicKeyJwk: samplePublicJWK(t, "newKey2")},
			}},
			{Action: document.ActionAddServiceEndpoints, ServiceEndpoints: []document.ServiceEndpoint{{ID: "newDummyHubUri1", Type: "LinkedDomains", ServiceEndpoint: "https://hub.example/new1"}}},
		},
		AnchorKey: operation.AnchorKey{TransactionTime: 4, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build recover: %v", err)
	}

	update3, _, err := testutil.BuildUpdate(testutil.UpdateOpts{
		DidSuffix:        create.DidSuffix,
		UpdateKey:        updateKey3,
		UpdateCommitment: commitmentOf(t, updateKey4.Public),
		DeltaPatches: []document.Patch{
			{Action: document.ActionRemoveServiceEndpoints, ServiceEndpointIDs: []string{"newDummyHubUri1"}},
			{Action: document.ActionAddServiceEndpoints, ServiceEndpoints: []document.ServiceEndpoint{{ID: "newDummyHubUri2", Type: "LinkedDomains", ServiceEndpoint: "https://hub.example/new2"}}},
		},
		AnchorKey: operation.AnchorKey{TransactionTime: 5, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build update3: %v", err)
	}

	update4, _, err := testutil.BuildUpdate(testutil.UpdateOpts{
		DidSuffix:        create.DidSuffix,
		UpdateKey:        updateKey4,
		UpdateCommitment: "final-update-commitment",
		AnchorKey:        operation.AnchorKey{TransactionTime: 6, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build update4: %v", err)
	}

	if err := s.Put([]*operation.AnchoredOperation{recoverOp, update3, update4}); err != nil {
		t.Fatalf("put post-recover batch: %v", err)
	}

	final, ok := r.Resolve(context.Background(), create.DidSuffix)
	if !ok {
		t.Fatal("resolve failed after full replay")
	}
	if len(final.Document.PublicKeys) != 2 {
		t.Errorf("after full replay: public_keys.len = %d, want 2", len(final.Document.PublicKeys))
	}
	if len(final.Document.ServiceEndpoints) != 1 {
		t.Errorf("after full replay: service_endpoints.len = %d, want 1", len(final.Document.ServiceEndpoints))
	}
	if len(final.Document.ServiceEndpoints) == 1 && final.Document.ServiceEndpoints[0].ID != "newDummyHubUri2" {
		t.Errorf("remaining endpoint id = %q, want newDummyHubUri2", final.Document.ServiceEndpoints[0].ID)
	}
}

// TestS3ThreeRecoversOutOfOrder is spec.md §8's scenario S3.
func TestS3ThreeRecoversOutOfOrder(t *testing.T) {
	r, s := newResolver(t)

	recoveryKey, _ := testutil.NewECKeyPair("recovery")
	createCommitment := commitmentOf(t, recoveryKey.Public)

	create, _, err := testutil.BuildCreate(testutil.CreateOpts{
		RecoveryCommitment: createCommitment,
		UpdateCommitment:   "update-commitment",
		AnchorKey:          operation.AnchorKey{TransactionTime: 1, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build create: %v", err)
	}

	recoveryCommitmentAt := map[uint64]string{2: "recovery-commitment-at-2", 3: "recovery-commitment-at-3", 4: "recovery-commitment-at-4"}
	ops := []*operation.AnchoredOperation{create}

	// Insert at anchor times 4, 2, 3, in that literal order, all sharing the
	// same reveal — spec.md §8 asks for out-of-order insertion to prove the
	// store's iteration order never matters.
	for _, txnTime := range []uint64{4, 2, 3} {
		op, _, err := testutil.BuildRecover(testutil.RecoverOpts{
			DidSuffix:             create.DidSuffix,
			RecoveryKey:           recoveryKey,
			NewRecoveryCommitment: recoveryCommitmentAt[txnTime],
			UpdateCommitment:      "update-commitment-after-recover",
			AnchorKey:             operation.AnchorKey{TransactionTime: txnTime, TransactionNumber: 1},
		})
		if err != nil {
			t.Fatalf("build recover at %d: %v", txnTime, err)
		}
		ops = append(ops, op)
	}

	if err := s.Put(ops); err != nil {
		t.Fatalf("put: %v", err)
	}

	state, ok := r.Resolve(context.Background(), create.DidSuffix)
	if !ok {
		t.Fatal("resolve failed")
	}
	if state.NextRecoveryCommitment != recoveryCommitmentAt[2] {
		t.Errorf("next_recovery_commitment = %q, want %q (the recover anchored at time 2)", state.NextRecoveryCommitment, recoveryCommitmentAt[2])
	}
}

// TestS4ThreeUpdatesOutOfOrder is spec.md §8's scenario S4.
func TestS4ThreeUpdatesOutOfOrder(t *testing.T) {
	r, s := newResolver(t)

	updateKey, _ := testutil.NewECKeyPair("update")
	createCommitment := commitmentOf(t, updateKey.Public)

	create, _, err := testutil.BuildCreate(testutil.CreateOpts{
		RecoveryCommitment: "recovery-commitment",
		UpdateCommitment:   createCommitment,
		AnchorKey:          operation.AnchorKey{TransactionTime: 1, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build create: %v", err)
	}

	updateCommitmentAt := map[uint64]string{2: "update-commitment-at-2", 3: "update-commitment-at-3", 4: "update-commitment-at-4"}
	ops := []*operation.AnchoredOperation{create}
	for _, txnTime := range []uint64{4, 2, 3} {
		op, _, err := testutil.BuildUpdate(testutil.UpdateOpts{
			DidSuffix:        create.DidSuffix,
			UpdateKey:        updateKey,
			UpdateCommitment: updateCommitmentAt[txnTime],
			AnchorKey:        operation.AnchorKey{TransactionTime: txnTime, TransactionNumber: 1},
		})
		if err != nil {
			t.Fatalf("build update at %d: %v", txnTime, err)
		}
		ops = append(ops, op)
	}

	if err := s.Put(ops); err != nil {
		t.Fatalf("put: %v", err)
	}

	state, ok := r.Resolve(context.Background(), create.DidSuffix)
	if !ok {
		t.Fatal("resolve failed")
	}
	if state.NextUpdateCommitment == nil || *state.NextUpdateCommitment != updateCommitmentAt[2] {
		t.Errorf("next_update_commitment = %v, want %q (the update anchored at time 2)", state.NextUpdateCommitment, updateCommitmentAt[2])
	}
}

// TestS5UnapplicableCreateReturnsNotFound is the resolver's side of
// spec.md §8's scenario S5: a Create that Resolve cannot apply resolves
// to not-found, never a panic escaping Resolve. This record is rejected
// by Resolve's own suffix check before processor.Apply runs; the
// processor's recovery of internal panics is not exercised here.
func TestS5UnapplicableCreateReturnsNotFound(t *testing.T) {
	r, s := newResolver(t)

	// A hand-built AnchoredOperation whose DidSuffix does not match the hash
	// of its own SuffixData, the shape a corrupted store record would take;
	// Resolve must reject it without panicking.
	op := &operation.AnchoredOperation{
		Kind:      operation.KindCreate,
		DidSuffix: "suffix-that-does-not-match-its-own-suffix-data",
		AnchorKey: operation.AnchorKey{TransactionTime: 1, TransactionNumber: 1},
		Create: &operation.CreateFields{
			SuffixData: operation.SuffixData{DeltaHash: "h", RecoveryCommitment: "r"},
		},
	}
	if err := s.Put([]*operation.AnchoredOperation{op}); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, ok := r.Resolve(context.Background(), op.DidSuffix)
	if ok {
		t.Error("expected resolve to report not-found for a suffix that never matches its own suffix_data")
	}
}

// TestInvariantDeterminismUnderPermutation is invariant 1 of spec.md §8:
// resolve(H) does not depend on the order operations were inserted.
func TestInvariantDeterminismUnderPermutation(t *testing.T) {
	updateKey1, _ := testutil.NewECKeyPair("update-1")
	updateKey2, _ := testutil.NewECKeyPair("update-2")

	create, _, err := testutil.BuildCreate(testutil.CreateOpts{
		RecoveryCommitment: "recovery-commitment",
		UpdateCommitment:   commitmentOf(t, updateKey1.Public),
		AnchorKey:          operation.AnchorKey{TransactionTime: 1, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build create: %v", err)
	}
	update, _, err := testutil.BuildUpdate(testutil.UpdateOpts{
		DidSuffix:        create.DidSuffix,
		UpdateKey:        updateKey1,
		UpdateCommitment: commitmentOf(t, updateKey2.Public),
		AnchorKey:        operation.AnchorKey{TransactionTime: 2, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build update: %v", err)
	}

	all := []*operation.AnchoredOperation{create, update}
	var results []*string
	for i := 0; i < 5; i++ {
		shuffled := make([]*operation.AnchoredOperation, len(all))
		copy(shuffled, all)
		rand.New(rand.NewSource(int64(i))).Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		s := store.NewMemStore()
		if err := s.Put(shuffled); err != nil {
			t.Fatalf("put permutation %d: %v", i, err)
		}
		r := New(s, versionmgr.NewStatic(), nil)
		state, ok := r.Resolve(context.Background(), create.DidSuffix)
		if !ok {
			t.Fatalf("permutation %d: resolve failed", i)
		}
		results = append(results, state.NextUpdateCommitment)
	}
	for i, got := range results {
		if got == nil || *got != *results[0] {
			t.Errorf("permutation %d produced a different result than permutation 0", i)
		}
	}
}

// TestInvariantDeactivationAbsorbsEverything is invariant 4 of spec.md §8.
func TestInvariantDeactivationAbsorbsEverything(t *testing.T) {
	r, s := newResolver(t)
	recoveryKey, _ := testutil.NewECKeyPair("recovery")

	create, _, err := testutil.BuildCreate(testutil.CreateOpts{
		RecoveryCommitment: commitmentOf(t, recoveryKey.Public),
		UpdateCommitment:   "update-commitment",
		AnchorKey:          operation.AnchorKey{TransactionTime: 1, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build create: %v", err)
	}
	deactivate, _, err := testutil.BuildDeactivate(testutil.DeactivateOpts{
		DidSuffix:   create.DidSuffix,
		RecoveryKey: recoveryKey,
		AnchorKey:   operation.AnchorKey{TransactionTime: 2, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build deactivate: %v", err)
	}
	laterUpdate, _, err := testutil.BuildUpdate(testutil.UpdateOpts{
		DidSuffix:        create.DidSuffix,
		UpdateKey:        recoveryKey,
		UpdateCommitment: "irrelevant",
		AnchorKey:        operation.AnchorKey{TransactionTime: 3, TransactionNumber: 1},
	})
	if err != nil {
		t.Fatalf("build later update: %v", err)
	}

	if err := s.Put([]*operation.AnchoredOperation{create, deactivate, laterUpdate}); err != nil {
		t.Fatalf("put: %v", err)
	}

	state, ok := r.Resolve(context.Background(), create.DidSuffix)
	if !ok {
		t.Fatal("resolve failed")
	}
	if !state.IsDeactivated {
		t.Error("expected is_deactivated = true")
	}
	if len(state.Document.PublicKeys) != 0 || len(state.Document.ServiceEndpoints) != 0 {
		t.Error("deactivated state should carry an empty document")
	}
}
