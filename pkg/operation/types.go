// Package operation holds the anchored-operation data model of spec.md §3
// and the per-kind structural parsers of §4.2. Wire shapes are grounded on
// trustbloc-sidetree-core-go/request.go (found under other_examples/ in
// the retrieval pack — reference material, not a teacher, used here only
// for its field shapes per "enrich from the rest of the pack"). Control
// flow ("parse, validate structure, compute unique suffix") is grounded
// on the teacher's pkg/did/create.go build-then-hash sequence, run in
// reverse.
package operation

import (
	"github.com/didresolve/sidetree-resolver/pkg/document"
	"github.com/didresolve/sidetree-resolver/pkg/jwk"
)

// DidSuffix is the opaque, content-addressed identifier of a DID.
type DidSuffix = string

// Kind tags which of the four operation types an AnchoredOperation is.
type Kind string

const (
	KindCreate     Kind = "create"
	KindUpdate     Kind = "update"
	KindRecover    Kind = "recover"
	KindDeactivate Kind = "deactivate"
)

// AnchorKey is the triple (transaction_time, transaction_number,
// operation_index) spec.md §3 defines as the total order over operations,
// and the sole tiebreaker for otherwise indistinguishable ones.
type AnchorKey struct {
	TransactionTime   uint64
	TransactionNumber uint64
	OperationIndex    uint32
}

// Less implements the lexicographic order spec.md §3 requires.
func (k AnchorKey) Less(other AnchorKey) bool {
	if k.TransactionTime != other.TransactionTime {
		return k.TransactionTime < other.TransactionTime
	}
	if k.TransactionNumber != other.TransactionNumber {
		return k.TransactionNumber < other.TransactionNumber
	}
	return k.OperationIndex < other.OperationIndex
}

// SuffixData is the Create operation's commitment to its initial state,
// spec.md §3: {delta_hash, recovery_commitment}. The DID suffix equals
// canonicalize_then_hash_then_encode(SuffixData).
type SuffixData struct {
	DeltaHash          string `json:"delta_hash"`
	RecoveryCommitment string `json:"recovery_commitment"`
}

// Delta carries a patch list and the next update commitment, bound to an
// operation by the invariant multihash(delta) == declared delta_hash.
type Delta struct {
	Patches          []document.Patch `json:"patches"`
	UpdateCommitment string            `json:"update_commitment"`
}

// UpdateSignedData is the payload of an Update operation's signed_data
// JWS: the revealed update key plus the delta hash it authorizes.
type UpdateSignedData struct {
	UpdateKey *jwk.JWK `json:"update_key"`
	DeltaHash string   `json:"delta_hash"`
}

// RecoverSignedData is the payload of a Recover operation's signed_data
// JWS: the revealed recovery key, the next recovery commitment, and the
// delta hash it authorizes.
type RecoverSignedData struct {
	RecoveryKey        *jwk.JWK `json:"recovery_key"`
	RecoveryCommitment string   `json:"recovery_commitment"`
	DeltaHash          string   `json:"delta_hash"`
}

// DeactivateSignedData is the payload of a Deactivate operation's
// signed_data JWS: the revealed recovery key and the DID suffix it binds
// to (so a deactivation for one DID cannot be replayed against another).
type DeactivateSignedData struct {
	DidSuffix   string   `json:"did_suffix"`
	RecoveryKey *jwk.JWK `json:"recovery_key"`
}

// CreateFields holds the Create-specific parsed content of an operation.
type CreateFields struct {
	SuffixData SuffixData
	Delta      *Delta // nil if the delta was structurally invalid
}

// UpdateFields holds the Update-specific parsed content of an operation.
type UpdateFields struct {
	SignedDataJWS string
	SignedData    UpdateSignedData
	Delta         *Delta
}

// RecoverFields holds the Recover-specific parsed content of an operation.
type RecoverFields struct {
	SignedDataJWS string
	SignedData    RecoverSignedData
	Delta         *Delta
}

// DeactivateFields holds the Deactivate-specific parsed content of an
// operation. Deactivate carries no delta.
type DeactivateFields struct {
	SignedDataJWS string
	SignedData    DeactivateSignedData
}

// AnchoredOperation is a fully parsed, structurally valid operation with
// every derived field — including DidSuffix — precomputed, per spec.md
// §4.2. Exactly one of Create/Update/Recover/Deactivate is non-nil,
// matching Kind. It is immutable once stored (spec.md §3).
type AnchoredOperation struct {
	Kind           Kind
	DidSuffix      DidSuffix
	AnchorKey      AnchorKey
	OperationBytes []byte

	Create     *CreateFields
	Update     *UpdateFields
	Recover    *RecoverFields
	Deactivate *DeactivateFields
}
