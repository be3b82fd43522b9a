package operation

import (
	"encoding/json"
	"fmt"

	"github.com/didresolve/sidetree-resolver/pkg/jws"
)

// decodeUpdateSignedData reads the unverified payload of an Update
// operation's signed_data JWS to learn its shape, including the
// update_key the caller must then verify the JWS's own signature
// against — this function only reads the payload, it does not verify.
func decodeUpdateSignedData(compact string) (UpdateSignedData, error) {
	var out UpdateSignedData
	payload, err := jws.UnverifiedPayload(compact)
	if err != nil {
		return out, fmt.Errorf("reading signed_data payload: %w", err)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("signed_data payload not JSON: %w", err)
	}
	if out.UpdateKey == nil || out.DeltaHash == "" {
		return out, fmt.Errorf("signed_data payload missing update_key or delta_hash")
	}
	return out, nil
}

func decodeRecoverSignedData(compact string) (RecoverSignedData, error) {
	var out RecoverSignedData
	payload, err := jws.UnverifiedPayload(compact)
	if err != nil {
		return out, fmt.Errorf("reading signed_data payload: %w", err)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("signed_data payload not JSON: %w", err)
	}
	if out.RecoveryKey == nil || out.RecoveryCommitment == "" || out.DeltaHash == "" {
		return out, fmt.Errorf("signed_data payload missing recovery_key, recovery_commitment or delta_hash")
	}
	return out, nil
}

func decodeDeactivateSignedData(compact string) (DeactivateSignedData, error) {
	var out DeactivateSignedData
	payload, err := jws.UnverifiedPayload(compact)
	if err != nil {
		return out, fmt.Errorf("reading signed_data payload: %w", err)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("signed_data payload not JSON: %w", err)
	}
	if out.RecoveryKey == nil || out.DidSuffix == "" {
		return out, fmt.Errorf("signed_data payload missing recovery_key or did_suffix")
	}
	return out, nil
}
