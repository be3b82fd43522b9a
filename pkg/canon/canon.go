// Package canon implements the canonicalization and self-describing
// multihash primitives spec.md §4.1 requires: deterministic JSON with
// sorted keys and no insignificant whitespace, and a self-describing hash
// (algorithm code || length || digest) over that canonical form.
//
// Canonicalization is built on encoding/json alone: Go's json.Marshal over
// a value normalized through map[string]any/[]any already sorts object
// keys and emits no insignificant whitespace, which is the entirety of
// what §4.1 asks for. No canonicalization library appears anywhere in the
// retrieval pack this module was grounded on, so this one concern is
// carried on the standard library.
package canon

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/multiformats/go-multihash"
)

// Canonicalize round-trips v through a generic JSON value so that object
// keys are normalized to map[string]any, then marshals it. json.Marshal
// sorts map keys and writes no insignificant whitespace, so the result is
// deterministic regardless of the original struct field order or the
// order keys were set in a map literal.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonicalize: normalize: %w", err)
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: re-marshal: %w", err)
	}
	return out, nil
}

// Multihash computes the self-describing SHA2-256 multihash of data:
// algorithm code, followed by digest length, followed by the digest
// itself, per spec.md §4.1 and the GLOSSARY's "Multihash" entry.
func Multihash(data []byte) ([]byte, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return nil, fmt.Errorf("multihash: %w", err)
	}
	return mh, nil
}

// EncodeBase64URL base64url-encodes without padding, the encoding used for
// every commitment/reveal string in this module.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL decodes a base64url string without padding.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// CanonicalizeHashEncode implements
// canonicalize_then_hash_then_encode(value) → string from spec.md §4.1:
// canonicalize, multihash, then base64url. This is how every commitment
// string in this module is produced, and reveals are compared against it
// by value equality.
func CanonicalizeHashEncode(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	mh, err := Multihash(canonical)
	if err != nil {
		return "", err
	}
	return EncodeBase64URL(mh), nil
}

// VerifyReveal reports whether revealValue hashes, via
// CanonicalizeHashEncode, to expectedCommitment. Kept from the teacher's
// commitment.go VerifyReveal shape; the caller passes whatever value was
// committed to (a JWK, for spec.md's commit-reveal scheme).
func VerifyReveal(revealed any, expectedCommitment string) bool {
	got, err := CanonicalizeHashEncode(revealed)
	if err != nil {
		return false
	}
	return got == expectedCommitment
}
