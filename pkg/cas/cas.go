// Package cas defines the content-addressable storage boundary spec.md §6
// names as external: write(content) -> cid, read(cid) -> content. The
// resolver only ever consumes what comes back from Read; it never
// constructs a CID. Grounded on the teacher's pkg/char/client.go RPC
// client shape (an interface wrapping the CHAR node's RPC surface), with
// an in-memory fixture replacing the bitcoin-cli/JSON-RPC transport since
// no CAS library appears anywhere in the retrieval pack.
package cas

import (
	"fmt"
	"sync"

	"github.com/didresolve/sidetree-resolver/pkg/canon"
)

// CAS is the content-addressable store contract: content-addressed by a
// multihash-derived CID, immutable once written.
type CAS interface {
	Write(content []byte) (cid string, err error)
	Read(cid string) ([]byte, error)
}

// ErrNotFound is returned by Read when no content exists under cid.
var ErrNotFound = fmt.Errorf("cas: not found")

// MemCAS is an in-memory CAS fixture for tests and the demo CLI, never
// meant for production anchoring — a real deployment points Resolver at
// IPFS or an equivalent network CAS instead.
type MemCAS struct {
	mu      sync.RWMutex
	content map[string][]byte
}

// NewMemCAS returns an empty MemCAS.
func NewMemCAS() *MemCAS {
	return &MemCAS{content: make(map[string][]byte)}
}

// Write stores content under the base64url encoding of its
// canon.Multihash: the multihash-then-base64url scheme that
// canon.CanonicalizeHashEncode uses for commitments, minus the
// canonicalization step (content is raw bytes, not a JSON value) — reused
// here so a single hashing discipline spans both commitments and CAS
// addressing.
func (m *MemCAS) Write(content []byte) (string, error) {
	cid, err := canon.Multihash(content)
	if err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	encoded := canon.EncodeBase64URL(cid)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[encoded] = append([]byte(nil), content...)
	return encoded, nil
}

// Read returns the content previously written under cid.
func (m *MemCAS) Read(cid string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.content[cid]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), content...), nil
}
