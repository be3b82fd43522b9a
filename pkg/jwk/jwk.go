// Package jwk provides the key material types and conversions used to
// build and verify the commitments and signatures spec.md §3 describes.
// Adapted from the teacher's pkg/keys/jwk.go: same JWK shape and the same
// conversion style, with two corrections. First, the teacher's
// GenerateSecp256k1Key actually returned a P-256 key (elliptic.P256()) —
// this is kept as GenerateECKey, honestly named for what it does, rather
// than shipping a function whose name promises a curve it doesn't use.
// Second, Ed25519 support is completed: update.go in the teacher called
// GenerateEd25519Key/Ed25519PrivateKeyToJWK/JWKToEd25519PrivateKey, none of
// which were ever defined anywhere in the teacher snapshot.
package jwk

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/didresolve/sidetree-resolver/pkg/canon"
)

// JWK is a minimal JSON Web Key, carrying only the fields the two key
// families this module supports need.
type JWK struct {
	ID  string `json:"id,omitempty" validate:"omitempty"`
	Kty string `json:"kty" validate:"required,oneof=EC OKP"`
	Crv string `json:"crv" validate:"required"`
	X   string `json:"x" validate:"required"`
	Y   string `json:"y,omitempty"`
	D   string `json:"d,omitempty"` // private scalar; omitted for public JWKs
}

// Public returns a copy of jwk with the private scalar stripped, the shape
// that gets embedded in signed_data payloads and compared against
// commitments (§3's "revealed key material").
func (j *JWK) Public() *JWK {
	pub := *j
	pub.D = ""
	return &pub
}

// GenerateECKey generates a P-256 key pair, matching what the teacher's
// GenerateSecp256k1Key actually did despite its name.
func GenerateECKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// ECPrivateKeyToJWK converts an ECDSA private key to a JWK.
func ECPrivateKeyToJWK(key *ecdsa.PrivateKey, keyID string) *JWK {
	return &JWK{
		ID:  keyID,
		Kty: "EC",
		Crv: "P-256",
		X:   canon.EncodeBase64URL(key.PublicKey.X.Bytes()),
		Y:   canon.EncodeBase64URL(key.PublicKey.Y.Bytes()),
		D:   canon.EncodeBase64URL(key.D.Bytes()),
	}
}

// ECPublicKeyToJWK converts an ECDSA public key to a JWK.
func ECPublicKeyToJWK(key *ecdsa.PublicKey, keyID string) *JWK {
	return &JWK{
		ID:  keyID,
		Kty: "EC",
		Crv: "P-256",
		X:   canon.EncodeBase64URL(key.X.Bytes()),
		Y:   canon.EncodeBase64URL(key.Y.Bytes()),
	}
}

// JWKToECPrivateKey converts a JWK back to an ECDSA private key.
func JWKToECPrivateKey(j *JWK) (*ecdsa.PrivateKey, error) {
	if j.D == "" {
		return nil, fmt.Errorf("jwk does not contain private key (d)")
	}
	xBytes, err := canon.DecodeBase64URL(j.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	yBytes, err := canon.DecodeBase64URL(j.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	dBytes, err := canon.DecodeBase64URL(j.D)
	if err != nil {
		return nil, fmt.Errorf("decode d: %w", err)
	}
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xBytes),
			Y:     new(big.Int).SetBytes(yBytes),
		},
		D: new(big.Int).SetBytes(dBytes),
	}, nil
}

// JWKToECPublicKey converts a JWK to an ECDSA public key.
func JWKToECPublicKey(j *JWK) (*ecdsa.PublicKey, error) {
	xBytes, err := canon.DecodeBase64URL(j.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	yBytes, err := canon.DecodeBase64URL(j.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

// GenerateEd25519Key generates an Ed25519 key pair.
func GenerateEd25519Key() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, err
}

// Ed25519PrivateKeyToJWK converts an Ed25519 private key to an OKP JWK.
func Ed25519PrivateKeyToJWK(key ed25519.PrivateKey, keyID string) *JWK {
	pub := key.Public().(ed25519.PublicKey)
	return &JWK{
		ID:  keyID,
		Kty: "OKP",
		Crv: "Ed25519",
		X:   canon.EncodeBase64URL(pub),
		D:   canon.EncodeBase64URL(key.Seed()),
	}
}

// Ed25519PublicKeyToJWK converts an Ed25519 public key to an OKP JWK.
func Ed25519PublicKeyToJWK(key ed25519.PublicKey, keyID string) *JWK {
	return &JWK{ID: keyID, Kty: "OKP", Crv: "Ed25519", X: canon.EncodeBase64URL(key)}
}

// JWKToEd25519PrivateKey converts an OKP JWK back to an Ed25519 private key.
func JWKToEd25519PrivateKey(j *JWK) (ed25519.PrivateKey, error) {
	if j.D == "" {
		return nil, fmt.Errorf("jwk does not contain private key (d)")
	}
	seed, err := canon.DecodeBase64URL(j.D)
	if err != nil {
		return nil, fmt.Errorf("decode d: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("unexpected ed25519 seed length %d", len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// JWKToEd25519PublicKey converts an OKP JWK to an Ed25519 public key.
func JWKToEd25519PublicKey(j *JWK) (ed25519.PublicKey, error) {
	x, err := canon.DecodeBase64URL(j.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	if len(x) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("unexpected ed25519 public key length %d", len(x))
	}
	return ed25519.PublicKey(x), nil
}

// Marshal marshals a JWK to JSON, matching the teacher's MarshalJWK.
func Marshal(j *JWK) ([]byte, error) {
	return json.Marshal(j)
}

// Unmarshal unmarshals a JWK from JSON.
func Unmarshal(data []byte) (*JWK, error) {
	var j JWK
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}
