// Package mapfile implements the batch container of spec.md §4.3 and the
// wire format of §6: deflate-compressed canonical JSON,
// {chunks: [{chunk_file_uri}], operations?: {update: [{did_suffix,
// signed_data}]}}. No direct teacher or pack analogue for a compressed
// batch container exists anywhere in the retrieval pack; this package is
// built directly from spec.md's field list and error table, using
// compress/flate (stdlib — no deflate-family library appears anywhere in
// the pack) and encoding/json.
package mapfile

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"fmt"
	"io"

	"github.com/didresolve/sidetree-resolver/pkg/codes"
)

// ChunkEntry is one element of the chunks array — exactly one property,
// the chunk file's URI.
type ChunkEntry struct {
	ChunkFileURI string `json:"chunk_file_uri"`
}

// UpdateOperationRef is one entry of the operations.update array — the
// update-operation skeleton the map file carries, before the delta (held
// in the chunk file) is joined in by the ingester.
type UpdateOperationRef struct {
	DidSuffix  string `json:"did_suffix"`
	SignedData string `json:"signed_data"`
}

// MapFile is the decompressed, structurally validated batch container.
type MapFile struct {
	ChunkFileURI string
	Updates      []UpdateOperationRef // nil when the source had no "operations" property
}

// Parse decompresses and validates compressed per spec.md §4.3, rejecting
// with a distinct code for each listed violation.
func Parse(compressed []byte) (*MapFile, error) {
	raw, err := inflate(compressed)
	if err != nil {
		return nil, codes.New(codes.MapFileDecompressionFailure, err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, codes.New(codes.MapFileNotJSON, err)
	}
	for k := range top {
		if k != "chunks" && k != "operations" {
			return nil, codes.New(codes.MapFileHasUnknownProperty, fmt.Errorf("unexpected property %q", k))
		}
	}

	chunkURI, err := parseChunks(top)
	if err != nil {
		return nil, err
	}

	updates, err := parseOperations(top)
	if err != nil {
		return nil, err
	}

	return &MapFile{ChunkFileURI: chunkURI, Updates: updates}, nil
}

func parseChunks(top map[string]json.RawMessage) (string, error) {
	chunksRaw, ok := top["chunks"]
	if !ok {
		return "", codes.New(codes.MapFileChunksMissing, fmt.Errorf("missing property %q", "chunks"))
	}

	var chunks []map[string]json.RawMessage
	if err := json.Unmarshal(chunksRaw, &chunks); err != nil {
		return "", codes.New(codes.MapFileChunksNotArray, err)
	}
	if len(chunks) != 1 {
		return "", codes.New(codes.MapFileChunksPropertyDoesNotHaveExactlyOneElement, fmt.Errorf("chunks has %d elements, want 1", len(chunks)))
	}

	entry := chunks[0]
	if len(entry) != 1 {
		return "", codes.New(codes.MapFileChunkEntryWrongShape, fmt.Errorf("chunk entry has %d properties, want 1", len(entry)))
	}
	uriRaw, ok := entry["chunk_file_uri"]
	if !ok {
		return "", codes.New(codes.MapFileChunkEntryWrongShape, fmt.Errorf("chunk entry missing chunk_file_uri"))
	}
	var uri string
	if err := json.Unmarshal(uriRaw, &uri); err != nil {
		return "", codes.New(codes.MapFileChunkEntryWrongShape, err)
	}
	return uri, nil
}

func parseOperations(top map[string]json.RawMessage) ([]UpdateOperationRef, error) {
	opsRaw, ok := top["operations"]
	if !ok {
		return nil, nil
	}

	var ops map[string]json.RawMessage
	if err := json.Unmarshal(opsRaw, &ops); err != nil {
		return nil, codes.New(codes.MapFileOperationsHasUnknownProperty, err)
	}
	for k := range ops {
		if k != "update" {
			return nil, codes.New(codes.MapFileOperationsHasUnknownProperty, fmt.Errorf("unexpected property %q", k))
		}
	}
	updateRaw, ok := ops["update"]
	if !ok {
		return nil, codes.New(codes.MapFileOperationsHasUnknownProperty, fmt.Errorf("missing property %q", "update"))
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(updateRaw, &entries); err != nil {
		return nil, codes.New(codes.MapFileUpdateOperationsNotArray, err)
	}

	seen := make(map[string]bool, len(entries))
	updates := make([]UpdateOperationRef, 0, len(entries))
	for _, entry := range entries {
		if len(entry) != 2 {
			return nil, codes.New(codes.MapFileUpdateOperationWrongShape, fmt.Errorf("update entry has %d properties, want 2", len(entry)))
		}
		didRaw, ok := entry["did_suffix"]
		if !ok {
			return nil, codes.New(codes.MapFileUpdateOperationWrongShape, fmt.Errorf("update entry missing did_suffix"))
		}
		sigRaw, ok := entry["signed_data"]
		if !ok {
			return nil, codes.New(codes.MapFileUpdateOperationWrongShape, fmt.Errorf("update entry missing signed_data"))
		}
		var ref UpdateOperationRef
		if err := json.Unmarshal(didRaw, &ref.DidSuffix); err != nil {
			return nil, codes.New(codes.MapFileUpdateOperationWrongShape, err)
		}
		if err := json.Unmarshal(sigRaw, &ref.SignedData); err != nil {
			return nil, codes.New(codes.MapFileUpdateOperationWrongShape, err)
		}
		if seen[ref.DidSuffix] {
			return nil, codes.New(codes.MapFileMultipleOperationsForTheSameDid, fmt.Errorf("duplicate did_suffix %q", ref.DidSuffix))
		}
		seen[ref.DidSuffix] = true
		updates = append(updates, ref)
	}
	return updates, nil
}

// Build produces the same shape Parse accepts, compressed with the same
// deflate-family codec, and omits "operations" when there are no
// updates — the documented asymmetry of spec.md §4.3.
func Build(m *MapFile) ([]byte, error) {
	doc := map[string]any{
		"chunks": []map[string]string{{"chunk_file_uri": m.ChunkFileURI}},
	}
	if len(m.Updates) > 0 {
		doc["operations"] = map[string]any{"update": m.Updates}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("build map file: %w", err)
	}
	return deflate(raw)
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
