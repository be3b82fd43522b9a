package operation

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/didresolve/sidetree-resolver/pkg/canon"
	"github.com/didresolve/sidetree-resolver/pkg/codes"
	"github.com/didresolve/sidetree-resolver/pkg/jws"
)

// rawEnvelope is used only to read "type" before dispatching, and to
// enforce the exact top-level key set spec.md §4.2 requires per kind.
type rawEnvelope map[string]json.RawMessage

func decodeEnvelope(raw []byte) (rawEnvelope, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, codes.New(codes.OperationNotJSON, err)
	}
	return env, nil
}

// requireExactKeys rejects an envelope that has any key outside allowed,
// or is missing any key in allowed — spec.md §4.2's "top-level keys
// exactly {...}" rule for every operation kind.
func requireExactKeys(env rawEnvelope, allowed ...string) error {
	want := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		want[k] = true
	}
	for k := range env {
		if !want[k] {
			return codes.New(codes.OperationHasUnknownProperty, fmt.Errorf("unexpected property %q", k))
		}
	}
	for _, k := range allowed {
		if _, ok := env[k]; !ok {
			return codes.New(codes.OperationMissingProperty, fmt.Errorf("missing property %q", k))
		}
	}
	return nil
}

func unmarshalField[T any](env rawEnvelope, field string, code codes.Code) (T, error) {
	var v T
	raw, ok := env[field]
	if !ok {
		return v, codes.New(codes.OperationMissingProperty, fmt.Errorf("missing property %q", field))
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, codes.New(code, fmt.Errorf("decoding %q: %w", field, err))
	}
	return v, nil
}

func readType(env rawEnvelope) (string, error) {
	raw, ok := env["type"]
	if !ok {
		return "", codes.New(codes.OperationMissingProperty, fmt.Errorf("missing property %q", "type"))
	}
	var t string
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", codes.New(codes.OperationNotJSON, err)
	}
	return t, nil
}

func checkType(env rawEnvelope, want string) error {
	got, err := readType(env)
	if err != nil {
		return err
	}
	if got != want {
		return codes.New(codes.OperationTypeMismatch, fmt.Errorf("expected type %q, got %q", want, got))
	}
	return nil
}

// parseDelta decodes and validates a delta's hash binding. A nil result
// with a nil error never happens; a non-nil error means the delta is
// structurally invalid and callers (per spec.md §4.5) must still accept
// the operation with Delta == nil rather than reject it outright — only
// Create/Update/Recover's own top-level shape failures cause the whole
// operation to be dropped at parse time.
func parseDelta(raw json.RawMessage, declaredHash string) (*Delta, error) {
	var delta Delta
	if err := json.Unmarshal(raw, &delta); err != nil {
		return nil, fmt.Errorf("delta not JSON: %w", err)
	}
	got, err := canon.CanonicalizeHashEncode(delta)
	if err != nil {
		return nil, fmt.Errorf("hash delta: %w", err)
	}
	if got != declaredHash {
		return nil, fmt.Errorf("delta hash mismatch: declared %q, computed %q", declaredHash, got)
	}
	return &delta, nil
}

// ParseCreate parses a Create operation per spec.md §4.2: top-level keys
// exactly {type, suffix_data, delta}; suffix_data has {delta_hash,
// recovery_commitment}; delta_hash == multihash(canonicalize(delta)).
// did_unique_suffix is the canonicalize_then_hash_then_encode of
// suffix_data.
func ParseCreate(raw []byte, anchorKey AnchorKey) (*AnchoredOperation, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if err := requireExactKeys(env, "type", "suffix_data", "delta"); err != nil {
		return nil, err
	}
	if err := checkType(env, string(KindCreate)); err != nil {
		return nil, err
	}

	suffixData, err := unmarshalField[SuffixData](env, "suffix_data", codes.CreateSuffixDataInvalid)
	if err != nil {
		return nil, err
	}
	if suffixData.DeltaHash == "" || suffixData.RecoveryCommitment == "" {
		return nil, codes.New(codes.CreateSuffixDataInvalid, fmt.Errorf("suffix_data missing delta_hash or recovery_commitment"))
	}

	didSuffix, err := canon.CanonicalizeHashEncode(suffixData)
	if err != nil {
		return nil, codes.New(codes.CreateSuffixDataInvalid, err)
	}

	// A structurally invalid delta does not drop the Create — spec.md
	// §4.5 has the processor build an empty document from an invalid
	// delta rather than rejecting the operation outright.
	var delta *Delta
	if d, derr := parseDelta(env["delta"], suffixData.DeltaHash); derr == nil {
		delta = d
	} else {
		slog.Default().Debug("create delta invalid, proceeding with empty document", "code", codes.CreateDeltaHashMismatch, "did_suffix", didSuffix, "error", derr)
	}

	return &AnchoredOperation{
		Kind:           KindCreate,
		DidSuffix:      didSuffix,
		AnchorKey:      anchorKey,
		OperationBytes: raw,
		Create: &CreateFields{
			SuffixData: suffixData,
			Delta:      delta,
		},
	}, nil
}

// ParseUpdate parses an Update operation per spec.md §4.2: top-level keys
// exactly {type, did_suffix, signed_data, delta}; signed_data is a
// compact JWS whose payload is {update_key, delta_hash}. The JWS is
// verified here against its own embedded update_key — a self-contained
// structural check spec.md §7 requires at ingestion, before the
// operation ever reaches the store. Whether update_key is the key the
// DID's prior state actually committed to is a separate check that
// needs resolve-time state (spec.md §4.5) and happens in pkg/processor.
func ParseUpdate(raw []byte, anchorKey AnchorKey) (*AnchoredOperation, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if err := requireExactKeys(env, "type", "did_suffix", "signed_data", "delta"); err != nil {
		return nil, err
	}
	if err := checkType(env, string(KindUpdate)); err != nil {
		return nil, err
	}

	didSuffix, err := unmarshalField[string](env, "did_suffix", codes.OperationDidSuffixInvalid)
	if err != nil {
		return nil, err
	}
	jwsCompact, err := unmarshalField[string](env, "signed_data", codes.UpdateSignedDataInvalid)
	if err != nil {
		return nil, err
	}

	signedData, err := decodeUpdateSignedData(jwsCompact)
	if err != nil {
		return nil, codes.New(codes.UpdateSignedDataInvalid, err)
	}
	if _, err := jws.Verify(jwsCompact, signedData.UpdateKey); err != nil {
		return nil, codes.New(codes.SignatureVerificationFailed, err)
	}

	var delta *Delta
	if d, derr := parseDelta(env["delta"], signedData.DeltaHash); derr == nil {
		delta = d
	} else {
		slog.Default().Debug("update delta invalid, the processor will reject this update", "code", codes.UpdateDeltaHashMismatch, "did_suffix", didSuffix, "error", derr)
	}

	return &AnchoredOperation{
		Kind:           KindUpdate,
		DidSuffix:      didSuffix,
		AnchorKey:      anchorKey,
		OperationBytes: raw,
		Update: &UpdateFields{
			SignedDataJWS: jwsCompact,
			SignedData:    signedData,
			Delta:         delta,
		},
	}, nil
}

// ParseRecover parses a Recover operation per spec.md §4.2: top-level
// keys exactly {type, did_suffix, signed_data, delta}; signed_data's
// payload is {recovery_key, recovery_commitment, delta_hash}.
func ParseRecover(raw []byte, anchorKey AnchorKey) (*AnchoredOperation, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if err := requireExactKeys(env, "type", "did_suffix", "signed_data", "delta"); err != nil {
		return nil, err
	}
	if err := checkType(env, string(KindRecover)); err != nil {
		return nil, err
	}

	didSuffix, err := unmarshalField[string](env, "did_suffix", codes.OperationDidSuffixInvalid)
	if err != nil {
		return nil, err
	}
	jwsCompact, err := unmarshalField[string](env, "signed_data", codes.RecoverSignedDataInvalid)
	if err != nil {
		return nil, err
	}

	signedData, err := decodeRecoverSignedData(jwsCompact)
	if err != nil {
		return nil, codes.New(codes.RecoverSignedDataInvalid, err)
	}
	if _, err := jws.Verify(jwsCompact, signedData.RecoveryKey); err != nil {
		return nil, codes.New(codes.SignatureVerificationFailed, err)
	}

	var delta *Delta
	if d, derr := parseDelta(env["delta"], signedData.DeltaHash); derr == nil {
		delta = d
	} else {
		slog.Default().Debug("recover delta invalid, the processor will reject this recover", "code", codes.RecoverDeltaHashMismatch, "did_suffix", didSuffix, "error", derr)
	}

	return &AnchoredOperation{
		Kind:           KindRecover,
		DidSuffix:      didSuffix,
		AnchorKey:      anchorKey,
		OperationBytes: raw,
		Recover: &RecoverFields{
			SignedDataJWS: jwsCompact,
			SignedData:    signedData,
			Delta:         delta,
		},
	}, nil
}

// ParseDeactivate parses a Deactivate operation per spec.md §4.2:
// top-level keys exactly {type, did_suffix, signed_data}; signed_data's
// payload is {did_suffix, recovery_key}.
func ParseDeactivate(raw []byte, anchorKey AnchorKey) (*AnchoredOperation, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if err := requireExactKeys(env, "type", "did_suffix", "signed_data"); err != nil {
		return nil, err
	}
	if err := checkType(env, string(KindDeactivate)); err != nil {
		return nil, err
	}

	didSuffix, err := unmarshalField[string](env, "did_suffix", codes.OperationDidSuffixInvalid)
	if err != nil {
		return nil, err
	}
	jwsCompact, err := unmarshalField[string](env, "signed_data", codes.DeactivateSignedDataInvalid)
	if err != nil {
		return nil, err
	}

	signedData, err := decodeDeactivateSignedData(jwsCompact)
	if err != nil {
		return nil, codes.New(codes.DeactivateSignedDataInvalid, err)
	}
	if _, err := jws.Verify(jwsCompact, signedData.RecoveryKey); err != nil {
		return nil, codes.New(codes.SignatureVerificationFailed, err)
	}
	if signedData.DidSuffix != didSuffix {
		return nil, codes.New(codes.DeactivateSuffixMismatch, fmt.Errorf("signed payload did_suffix %q does not match operation did_suffix %q", signedData.DidSuffix, didSuffix))
	}

	return &AnchoredOperation{
		Kind:           KindDeactivate,
		DidSuffix:      didSuffix,
		AnchorKey:      anchorKey,
		OperationBytes: raw,
		Deactivate: &DeactivateFields{
			SignedDataJWS: jwsCompact,
			SignedData:    signedData,
		},
	}, nil
}

// ParseOperation reads "type" from raw and dispatches to the matching
// per-kind parser, the convenience entry point an ingester calls without
// knowing the kind ahead of time.
func ParseOperation(raw []byte, anchorKey AnchorKey) (*AnchoredOperation, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	kind, err := readType(env)
	if err != nil {
		return nil, err
	}
	switch Kind(kind) {
	case KindCreate:
		return ParseCreate(raw, anchorKey)
	case KindUpdate:
		return ParseUpdate(raw, anchorKey)
	case KindRecover:
		return ParseRecover(raw, anchorKey)
	case KindDeactivate:
		return ParseDeactivate(raw, anchorKey)
	default:
		return nil, codes.New(codes.OperationTypeMismatch, fmt.Errorf("unknown operation type %q", kind))
	}
}
