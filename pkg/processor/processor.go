// Package processor implements the OperationProcessor of spec.md §4.5:
// a total, pure function from (prior DidState, one AnchoredOperation) to
// (next DidState, ok). Grounded directly on the teacher's
// pkg/did/processor.go (processCreate/processUpdate/processRecover/
// processDeactivate), with the SQL side effects (store.SaveDID,
// store.SaveOperation) lifted out — the teacher conflated "apply an
// operation" with "persist the result"; spec.md's store contract (§4.6)
// requires them separated, so Apply here only ever computes, never
// persists.
package processor

import (
	"fmt"
	"log/slog"

	"github.com/Azure/go-autorest/autorest/to"

	"github.com/didresolve/sidetree-resolver/pkg/canon"
	"github.com/didresolve/sidetree-resolver/pkg/codes"
	"github.com/didresolve/sidetree-resolver/pkg/document"
	"github.com/didresolve/sidetree-resolver/pkg/jws"
	"github.com/didresolve/sidetree-resolver/pkg/operation"
)

// logger is package-level rather than threaded through Apply because Apply's
// signature is fixed by versionmgr.Processor (spec.md §6) — it has no room
// for a logger parameter. Matches pkg/resolver's slog.Default() fallback.
var logger = slog.Default()

// DidState is the resolved state of a DID, spec.md §3: the document plus
// the commitment chain's current heads. NextUpdateCommitment is a
// pointer so a deactivated DID (which "carries no commitments") can
// represent "none" distinctly from the empty string, using
// github.com/Azure/go-autorest/autorest/to at every construction site
// that needs the pointer form — the same package cocoon's
// internal/helpers/helpers.go reaches for.
type DidState struct {
	Document                       *document.Document
	NextRecoveryCommitment         string
	NextUpdateCommitment           *string
	LastOperationTransactionNumber uint64
	IsDeactivated                  bool
}

var composer = document.NewComposer()

// Apply is the OperationProcessor of spec.md §4.5. It never panics to the
// caller: any internal error (bad base64, malformed key, signature
// mismatch, or a genuine panic deep in a library) is caught here and
// converted to (nil, false), satisfying scenario S5.
func Apply(prior *DidState, op *operation.AnchoredOperation) (next *DidState, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			next, ok = nil, false
		}
	}()

	switch op.Kind {
	case operation.KindCreate:
		return applyCreate(prior, op)
	case operation.KindUpdate:
		return applyUpdate(prior, op)
	case operation.KindRecover:
		return applyRecover(prior, op)
	case operation.KindDeactivate:
		return applyDeactivate(prior, op)
	default:
		return nil, false
	}
}

func applyCreate(prior *DidState, op *operation.AnchoredOperation) (*DidState, bool) {
	if prior != nil {
		return nil, false
	}
	cf := op.Create
	if cf == nil {
		return nil, false
	}

	doc := &document.Document{}
	var nextUpdate *string
	// A structurally valid but semantically empty patch list still
	// advances the update commitment (spec.md §4.4, §9) — otherwise a
	// malformed delta could permanently lock update progress.
	if cf.Delta != nil {
		nextUpdate = to.StringPtr(cf.Delta.UpdateCommitment)
		if applied, err := composer.Apply(doc, cf.Delta.Patches); err == nil {
			doc = applied
		} else {
			logger.Debug("create patches failed to compose, document stays empty", "code", codes.DocumentPatchInvalid, "did_suffix", op.DidSuffix, "error", err)
		}
	} else {
		logger.Debug("create has no delta", "code", codes.DeltaInvalid, "did_suffix", op.DidSuffix)
	}

	return &DidState{
		Document:                       doc,
		NextRecoveryCommitment:         cf.SuffixData.RecoveryCommitment,
		NextUpdateCommitment:           nextUpdate,
		LastOperationTransactionNumber: op.AnchorKey.TransactionNumber,
		IsDeactivated:                  false,
	}, true
}

func applyUpdate(prior *DidState, op *operation.AnchoredOperation) (*DidState, bool) {
	if prior == nil {
		return nil, false
	}
	if prior.IsDeactivated {
		logger.Debug("update against deactivated did", "code", codes.AlreadyDeactivated, "did_suffix", op.DidSuffix)
		return nil, false
	}
	if prior.NextUpdateCommitment == nil {
		return nil, false
	}
	uf := op.Update
	if uf == nil {
		return nil, false
	}

	if !canon.VerifyReveal(uf.SignedData.UpdateKey, *prior.NextUpdateCommitment) {
		logger.Debug("update reveal does not match commitment", "code", codes.CommitmentMismatch, "did_suffix", op.DidSuffix)
		return nil, false
	}
	if _, err := jws.Verify(uf.SignedDataJWS, uf.SignedData.UpdateKey); err != nil {
		logger.Debug("update signature verification failed", "code", codes.SignatureVerificationFailed, "did_suffix", op.DidSuffix, "error", err)
		return nil, false
	}
	if uf.Delta == nil {
		logger.Debug("update has no delta", "code", codes.DeltaInvalid, "did_suffix", op.DidSuffix)
		return nil, false // delta_hash binding already checked at parse time
	}

	next := &DidState{
		Document:                       prior.Document,
		NextRecoveryCommitment:         prior.NextRecoveryCommitment,
		NextUpdateCommitment:           to.StringPtr(uf.Delta.UpdateCommitment),
		LastOperationTransactionNumber: op.AnchorKey.TransactionNumber,
		IsDeactivated:                  false,
	}

	// A structurally valid but semantically empty patch list still
	// advances the update commitment (spec.md §4.5, §9) — otherwise a
	// malformed delta could permanently lock update progress.
	if applied, err := composer.Apply(prior.Document, uf.Delta.Patches); err == nil {
		next.Document = applied
	} else {
		logger.Debug("update patches failed to compose, document unchanged", "code", codes.DocumentPatchInvalid, "did_suffix", op.DidSuffix, "error", err)
	}

	return next, true
}

func applyRecover(prior *DidState, op *operation.AnchoredOperation) (*DidState, bool) {
	if prior == nil {
		return nil, false
	}
	if prior.IsDeactivated {
		logger.Debug("recover against deactivated did", "code", codes.AlreadyDeactivated, "did_suffix", op.DidSuffix)
		return nil, false
	}
	rf := op.Recover
	if rf == nil {
		return nil, false
	}

	if !canon.VerifyReveal(rf.SignedData.RecoveryKey, prior.NextRecoveryCommitment) {
		logger.Debug("recover reveal does not match commitment", "code", codes.CommitmentMismatch, "did_suffix", op.DidSuffix)
		return nil, false
	}
	if _, err := jws.Verify(rf.SignedDataJWS, rf.SignedData.RecoveryKey); err != nil {
		logger.Debug("recover signature verification failed", "code", codes.SignatureVerificationFailed, "did_suffix", op.DidSuffix, "error", err)
		return nil, false
	}
	if rf.Delta == nil {
		logger.Debug("recover has no delta", "code", codes.DeltaInvalid, "did_suffix", op.DidSuffix)
		return nil, false
	}

	doc := &document.Document{}
	// A structurally valid but semantically empty patch list still
	// advances the update commitment (spec.md §4.4, §9) — otherwise a
	// malformed delta could permanently lock update progress.
	nextUpdate := to.StringPtr(rf.Delta.UpdateCommitment)
	if applied, err := composer.Apply(doc, rf.Delta.Patches); err == nil {
		doc = applied
	} else {
		logger.Debug("recover patches failed to compose, document stays empty", "code", codes.DocumentPatchInvalid, "did_suffix", op.DidSuffix, "error", err)
	}

	return &DidState{
		Document:                       doc,
		NextRecoveryCommitment:         rf.SignedData.RecoveryCommitment,
		NextUpdateCommitment:           nextUpdate,
		LastOperationTransactionNumber: op.AnchorKey.TransactionNumber,
		IsDeactivated:                  false,
	}, true
}

func applyDeactivate(prior *DidState, op *operation.AnchoredOperation) (*DidState, bool) {
	if prior == nil {
		return nil, false
	}
	if prior.IsDeactivated {
		logger.Debug("deactivate against already-deactivated did", "code", codes.AlreadyDeactivated, "did_suffix", op.DidSuffix)
		return nil, false
	}
	df := op.Deactivate
	if df == nil {
		return nil, false
	}

	if !canon.VerifyReveal(df.SignedData.RecoveryKey, prior.NextRecoveryCommitment) {
		logger.Debug("deactivate reveal does not match commitment", "code", codes.CommitmentMismatch, "did_suffix", op.DidSuffix)
		return nil, false
	}
	if _, err := jws.Verify(df.SignedDataJWS, df.SignedData.RecoveryKey); err != nil {
		logger.Debug("deactivate signature verification failed", "code", codes.SignatureVerificationFailed, "did_suffix", op.DidSuffix, "error", err)
		return nil, false
	}
	if df.SignedData.DidSuffix != op.DidSuffix {
		return nil, false
	}

	return &DidState{
		Document:                       &document.Document{},
		NextRecoveryCommitment:         "",
		NextUpdateCommitment:           nil,
		LastOperationTransactionNumber: op.AnchorKey.TransactionNumber,
		IsDeactivated:                  true,
	}, true
}

// ErrUnsupportedKind is returned by callers that want to report on an
// operation whose Kind value this processor doesn't recognize — Apply
// itself never returns an error, only (nil, false), per spec.md §4.5.
var ErrUnsupportedKind = fmt.Errorf("unsupported operation kind")
