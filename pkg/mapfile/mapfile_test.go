package mapfile

import (
	"bytes"
	"compress/flate"
	"errors"
	"testing"

	"github.com/didresolve/sidetree-resolver/pkg/codes"
)

func TestBuildParseRoundTrip(t *testing.T) {
	m := &MapFile{
		ChunkFileURI: "cid:chunk-1",
		Updates: []UpdateOperationRef{
			{DidSuffix: "did-1", SignedData: "sig-1"},
			{DidSuffix: "did-2", SignedData: "sig-2"},
		},
	}

	compressed, err := Build(m)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := Parse(compressed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ChunkFileURI != m.ChunkFileURI {
		t.Errorf("chunk file uri = %q, want %q", got.ChunkFileURI, m.ChunkFileURI)
	}
	if len(got.Updates) != 2 || got.Updates[0].DidSuffix != "did-1" || got.Updates[1].DidSuffix != "did-2" {
		t.Errorf("updates = %+v, want 2 entries matching input", got.Updates)
	}
}

func TestBuildOmitsOperationsWhenEmpty(t *testing.T) {
	m := &MapFile{ChunkFileURI: "cid:chunk-1"}
	compressed, err := Build(m)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got, err := Parse(compressed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Updates != nil {
		t.Errorf("expected nil Updates when none were given, got %+v", got.Updates)
	}
}

func TestParseRejectsUndecompressableInput(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xff, 0xff})
	assertCode(t, err, codes.MapFileDecompressionFailure)
}

func TestParseRejectsNonJSON(t *testing.T) {
	_, err := Parse(deflateBytes(t, []byte("not json")))
	assertCode(t, err, codes.MapFileNotJSON)
}

func TestParseRejectsUnknownTopLevelProperty(t *testing.T) {
	_, err := Parse(deflateBytes(t, []byte(`{"chunks":[{"chunk_file_uri":"c"}],"bogus":1}`)))
	assertCode(t, err, codes.MapFileHasUnknownProperty)
}

func TestParseRejectsMissingChunks(t *testing.T) {
	_, err := Parse(deflateBytes(t, []byte(`{}`)))
	assertCode(t, err, codes.MapFileChunksMissing)
}

func TestParseRejectsChunksNotSingleton(t *testing.T) {
	_, err := Parse(deflateBytes(t, []byte(`{"chunks":[{"chunk_file_uri":"a"},{"chunk_file_uri":"b"}]}`)))
	assertCode(t, err, codes.MapFileChunksPropertyDoesNotHaveExactlyOneElement)
}

func TestParseRejectsDuplicateDidInUpdates(t *testing.T) {
	raw := []byte(`{"chunks":[{"chunk_file_uri":"c"}],"operations":{"update":[
		{"did_suffix":"same","signed_data":"a"},
		{"did_suffix":"same","signed_data":"b"}
	]}}`)
	_, err := Parse(deflateBytes(t, raw))
	assertCode(t, err, codes.MapFileMultipleOperationsForTheSameDid)
}

func TestParseRejectsUpdateEntryWrongShape(t *testing.T) {
	raw := []byte(`{"chunks":[{"chunk_file_uri":"c"}],"operations":{"update":[{"did_suffix":"only-one-field"}]}}`)
	_, err := Parse(deflateBytes(t, raw))
	assertCode(t, err, codes.MapFileUpdateOperationWrongShape)
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	var coded *codes.CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("expected a *codes.CodedError, got %T: %v", err, err)
	}
	if coded.Code != want {
		t.Errorf("code = %s, want %s", coded.Code, want)
	}
}

func deflateBytes(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if _, err := w.Write(raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}
