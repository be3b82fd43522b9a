// Package testutil builds signed, well-formed operations for tests
// across this module, the same role the teacher's table-driven _test.go
// files build fixtures inline for — collected here because every package
// from pkg/processor up needs the same "build a Create, then an Update
// that reveals its commitment" shape. Random filler values come from
// github.com/brianvoe/gofakeit/v6, present in the teacher's go.mod but
// never imported by the teacher's own tests; this module is its first
// real user.
package testutil

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/didresolve/sidetree-resolver/pkg/canon"
	"github.com/didresolve/sidetree-resolver/pkg/document"
	"github.com/didresolve/sidetree-resolver/pkg/jwk"
	"github.com/didresolve/sidetree-resolver/pkg/jws"
	"github.com/didresolve/sidetree-resolver/pkg/operation"
)

// KeyPair bundles a generated private key with its public JWK, for test
// fixtures that need to both sign and reveal with the same key.
type KeyPair struct {
	Private any
	Public  *jwk.JWK
}

// NewECKeyPair generates a P-256 key pair and its public JWK.
func NewECKeyPair(id string) (*KeyPair, error) {
	priv, err := jwk.GenerateECKey()
	if err != nil {
		return nil, fmt.Errorf("generate EC key: %w", err)
	}
	pub := jwk.ECPublicKeyToJWK(&priv.PublicKey, id)
	return &KeyPair{Private: priv, Public: pub}, nil
}

// NewEd25519KeyPair generates an Ed25519 key pair and its public JWK.
func NewEd25519KeyPair(id string) (*KeyPair, error) {
	priv, err := jwk.GenerateEd25519Key()
	if err != nil {
		return nil, fmt.Errorf("generate Ed25519 key: %w", err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	pubJWK := jwk.Ed25519PublicKeyToJWK(pub, id)
	return &KeyPair{Private: priv, Public: pubJWK}, nil
}

// RandomServiceEndpoint returns a service endpoint with a fake URL,
// useful for tests that only care that a patch carries well-formed
// filler, not specific values.
func RandomServiceEndpoint() document.ServiceEndpoint {
	return document.ServiceEndpoint{
		ID:              gofakeit.UUID(),
		Type:            "LinkedDomains",
		ServiceEndpoint: gofakeit.URL(),
	}
}

// RandomHandle returns a fake human-readable handle, for tests that
// attach an identifying label to a fixture without it mattering.
func RandomHandle() string {
	return gofakeit.Username()
}

// CreateOpts configures BuildCreate.
type CreateOpts struct {
	RecoveryCommitment string
	UpdateCommitment   string
	Patches            []document.Patch
	AnchorKey          operation.AnchorKey
}

// BuildCreate constructs a well-formed Create operation's wire bytes and
// its parsed AnchoredOperation, mirroring how an operator builds one per
// spec.md §4.2: delta first, then suffix_data's delta_hash binds to it.
func BuildCreate(opts CreateOpts) (*operation.AnchoredOperation, []byte, error) {
	delta := operation.Delta{
		Patches:          opts.Patches,
		UpdateCommitment: opts.UpdateCommitment,
	}
	deltaHash, err := canon.CanonicalizeHashEncode(delta)
	if err != nil {
		return nil, nil, fmt.Errorf("hash delta: %w", err)
	}

	suffixData := operation.SuffixData{
		DeltaHash:          deltaHash,
		RecoveryCommitment: opts.RecoveryCommitment,
	}

	envelope := map[string]any{
		"type":        string(operation.KindCreate),
		"suffix_data": suffixData,
		"delta":       delta,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal create envelope: %w", err)
	}

	op, err := operation.ParseCreate(raw, opts.AnchorKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parse built create: %w", err)
	}
	return op, raw, nil
}

// UpdateOpts configures BuildUpdate.
type UpdateOpts struct {
	DidSuffix        string
	UpdateKey        *KeyPair
	DeltaPatches     []document.Patch
	UpdateCommitment string
	AnchorKey        operation.AnchorKey
}

// BuildUpdate constructs a well-formed, signed Update operation, revealing
// UpdateKey.Public — the caller is responsible for having committed to its
// hash in a prior operation.
func BuildUpdate(opts UpdateOpts) (*operation.AnchoredOperation, []byte, error) {
	delta := operation.Delta{
		Patches:          opts.DeltaPatches,
		UpdateCommitment: opts.UpdateCommitment,
	}
	deltaHash, err := canon.CanonicalizeHashEncode(delta)
	if err != nil {
		return nil, nil, fmt.Errorf("hash delta: %w", err)
	}

	signedData := operation.UpdateSignedData{
		UpdateKey: opts.UpdateKey.Public,
		DeltaHash: deltaHash,
	}
	payload, err := json.Marshal(signedData)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal signed data: %w", err)
	}
	compact, err := jws.Sign(opts.UpdateKey.Private, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("sign update: %w", err)
	}

	envelope := map[string]any{
		"type":        string(operation.KindUpdate),
		"did_suffix":  opts.DidSuffix,
		"signed_data": compact,
		"delta":       delta,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal update envelope: %w", err)
	}

	op, err := operation.ParseUpdate(raw, opts.AnchorKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parse built update: %w", err)
	}
	return op, raw, nil
}

// RecoverOpts configures BuildRecover.
type RecoverOpts struct {
	DidSuffix           string
	RecoveryKey         *KeyPair
	NewRecoveryCommitment string
	DeltaPatches        []document.Patch
	UpdateCommitment    string
	AnchorKey           operation.AnchorKey
}

// BuildRecover constructs a well-formed, signed Recover operation,
// revealing RecoveryKey.Public.
func BuildRecover(opts RecoverOpts) (*operation.AnchoredOperation, []byte, error) {
	delta := operation.Delta{
		Patches:          opts.DeltaPatches,
		UpdateCommitment: opts.UpdateCommitment,
	}
	deltaHash, err := canon.CanonicalizeHashEncode(delta)
	if err != nil {
		return nil, nil, fmt.Errorf("hash delta: %w", err)
	}

	signedData := operation.RecoverSignedData{
		RecoveryKey:        opts.RecoveryKey.Public,
		RecoveryCommitment: opts.NewRecoveryCommitment,
		DeltaHash:          deltaHash,
	}
	payload, err := json.Marshal(signedData)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal signed data: %w", err)
	}
	compact, err := jws.Sign(opts.RecoveryKey.Private, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("sign recover: %w", err)
	}

	envelope := map[string]any{
		"type":        string(operation.KindRecover),
		"did_suffix":  opts.DidSuffix,
		"signed_data": compact,
		"delta":       delta,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal recover envelope: %w", err)
	}

	op, err := operation.ParseRecover(raw, opts.AnchorKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parse built recover: %w", err)
	}
	return op, raw, nil
}

// DeactivateOpts configures BuildDeactivate.
type DeactivateOpts struct {
	DidSuffix   string
	RecoveryKey *KeyPair
	AnchorKey   operation.AnchorKey
}

// BuildDeactivate constructs a well-formed, signed Deactivate operation,
// revealing RecoveryKey.Public.
func BuildDeactivate(opts DeactivateOpts) (*operation.AnchoredOperation, []byte, error) {
	signedData := operation.DeactivateSignedData{
		DidSuffix:   opts.DidSuffix,
		RecoveryKey: opts.RecoveryKey.Public,
	}
	payload, err := json.Marshal(signedData)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal signed data: %w", err)
	}
	compact, err := jws.Sign(opts.RecoveryKey.Private, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("sign deactivate: %w", err)
	}

	envelope := map[string]any{
		"type":        string(operation.KindDeactivate),
		"did_suffix":  opts.DidSuffix,
		"signed_data": compact,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal deactivate envelope: %w", err)
	}

	op, err := operation.ParseDeactivate(raw, opts.AnchorKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parse built deactivate: %w", err)
	}
	return op, raw, nil
}
