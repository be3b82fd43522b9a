// Package codes defines the fixed, machine-readable error code enumeration
// that spec.md §6 requires: every rejection a parser or map file reader
// produces carries one of these rather than a free-form message.
package codes

// Code identifies a specific structural or semantic rejection reason.
// Codes are part of the public surface; text messages are not.
type Code string

const (
	// MapFile rejections (§4.3).
	MapFileDecompressionFailure                       Code = "MapFileDecompressionFailure"
	MapFileNotJSON                                    Code = "MapFileNotJSON"
	MapFileHasUnknownProperty                         Code = "MapFileHasUnknownProperty"
	MapFileChunksMissing                              Code = "MapFileChunksMissing"
	MapFileChunksNotArray                             Code = "MapFileChunksNotArray"
	MapFileChunksPropertyDoesNotHaveExactlyOneElement Code = "MapFileChunksPropertyDoesNotHaveExactlyOneElement"
	MapFileChunkEntryWrongShape                       Code = "MapFileChunkEntryWrongShape"
	MapFileOperationsHasUnknownProperty               Code = "MapFileOperationsHasUnknownProperty"
	MapFileUpdateOperationsNotArray                   Code = "MapFileUpdateOperationsNotArray"
	MapFileMultipleOperationsForTheSameDid            Code = "MapFileMultipleOperationsForTheSameDid"
	MapFileUpdateOperationWrongShape                  Code = "MapFileUpdateOperationWrongShape"

	// Operation parser rejections (§4.2).
	OperationNotJSON            Code = "OperationNotJSON"
	OperationHasUnknownProperty Code = "OperationHasUnknownProperty"
	OperationMissingProperty    Code = "OperationMissingProperty"
	OperationTypeMismatch       Code = "OperationTypeMismatch"
	OperationDidSuffixInvalid   Code = "OperationDidSuffixInvalid"
	CreateSuffixDataInvalid     Code = "CreateSuffixDataInvalid"
	CreateDeltaHashMismatch     Code = "CreateDeltaHashMismatch"
	UpdateSignedDataInvalid     Code = "UpdateSignedDataInvalid"
	UpdateDeltaHashMismatch     Code = "UpdateDeltaHashMismatch"
	RecoverSignedDataInvalid    Code = "RecoverSignedDataInvalid"
	RecoverDeltaHashMismatch    Code = "RecoverDeltaHashMismatch"
	DeactivateSignedDataInvalid Code = "DeactivateSignedDataInvalid"
	DeactivateSuffixMismatch    Code = "DeactivateSuffixMismatch"
	SignatureVerificationFailed Code = "SignatureVerificationFailed"

	// Semantic / resolve-time rejections (§4.5). Apply itself never
	// returns an error (only (nil, false)), so these never reach a
	// caller as a *CodedError — pkg/processor logs with the matching
	// code via slog before rejecting.
	CommitmentMismatch   Code = "CommitmentMismatch"
	DeltaInvalid         Code = "DeltaInvalid"
	DocumentPatchInvalid Code = "DocumentPatchInvalid"
	AlreadyDeactivated   Code = "AlreadyDeactivated"
)

// CodedError wraps an underlying cause with a stable Code. Parse/ingest
// errors (stratum 1 of spec.md §7) are always returned as a *CodedError;
// callers needing the code use errors.As.
type CodedError struct {
	Code Code
	Err  error
}

func (e *CodedError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }

// New constructs a CodedError, matching the teacher's fmt.Errorf("...: %w", err)
// wrapping idiom but with a typed, machine-readable code attached.
func New(code Code, err error) *CodedError {
	return &CodedError{Code: code, Err: err}
}
