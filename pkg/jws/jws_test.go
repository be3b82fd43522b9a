package jws

import (
	"encoding/json"
	"testing"

	"github.com/didresolve/sidetree-resolver/pkg/jwk"
)

func TestSignVerifyES256(t *testing.T) {
	priv, err := jwk.GenerateECKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub := jwk.ECPrivateKeyToJWK(priv, "key-1").Public()

	payload := []byte(`{"hello":"world"}`)
	compact, err := Sign(priv, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := Verify(compact, pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("verified payload = %q, want %q", got, payload)
	}
}

func TestSignVerifyEdDSA(t *testing.T) {
	priv, err := jwk.GenerateEd25519Key()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub := jwk.Ed25519PrivateKeyToJWK(priv, "key-1").Public()

	payload := []byte(`{"hello":"ed25519"}`)
	compact, err := Sign(priv, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := Verify(compact, pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("verified payload = %q, want %q", got, payload)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, _ := jwk.GenerateECKey()
	other, _ := jwk.GenerateECKey()
	otherPub := jwk.ECPrivateKeyToJWK(other, "other").Public()

	compact, err := Sign(priv, []byte("payload"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(compact, otherPub); err == nil {
		t.Error("expected verification to fail against the wrong key")
	}
}

func TestUnverifiedPayloadReadsBeforeVerifying(t *testing.T) {
	priv, _ := jwk.GenerateECKey()
	pub := jwk.ECPrivateKeyToJWK(priv, "key-1").Public()

	type signedPayload struct {
		UpdateKey *jwk.JWK `json:"update_key"`
	}
	payload, _ := json.Marshal(signedPayload{UpdateKey: pub})
	compact, err := Sign(priv, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	raw, err := UnverifiedPayload(compact)
	if err != nil {
		t.Fatalf("unverified payload: %v", err)
	}
	var decoded signedPayload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.UpdateKey == nil || decoded.UpdateKey.X != pub.X {
		t.Error("UnverifiedPayload did not return the signed payload")
	}
}
