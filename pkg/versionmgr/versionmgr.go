// Package versionmgr defines the version manager external interface of
// spec.md §6: get_operation_processor(transaction_time) → Processor. This
// is the pluggable-per-height extension point spec.md's Non-goals
// explicitly keep in scope ("multi-version protocol migration logic
// beyond a pluggable per-height processor"). Grounded on
// trustbloc-sidetree-core-go/protocol.go's Client/ClientProvider shape
// (other_examples/ — reference only), mapped onto this module's actual
// Processor contract.
package versionmgr

import (
	"github.com/didresolve/sidetree-resolver/pkg/operation"
	"github.com/didresolve/sidetree-resolver/pkg/processor"
)

// Processor is what a resolver needs per operation: the ability to apply
// it to a prior state. A real multi-version deployment would have one
// Processor per protocol epoch, each potentially implementing §4.5's
// rules slightly differently; this module ships exactly one.
type Processor interface {
	Apply(prior *processor.DidState, op *operation.AnchoredOperation) (*processor.DidState, bool)
}

// VersionManager resolves the Processor in effect at a given ledger
// transaction time. The resolver looks the processor up per operation,
// not once per DID, per spec.md §6's explicit requirement; it memoizes
// the results per transaction time, so ForTransactionTime itself runs
// once per distinct transaction time while a cached entry is live.
type VersionManager interface {
	ForTransactionTime(transactionTime uint64) (Processor, error)
}

// defaultProcessor adapts the package-level processor.Apply function to
// the Processor interface. It is an empty struct rather than a func type
// so that Processor values holding it can be compared with ==.
type defaultProcessor struct{}

func (defaultProcessor) Apply(prior *processor.DidState, op *operation.AnchoredOperation) (*processor.DidState, bool) {
	return processor.Apply(prior, op)
}

// DefaultProcessor is the sole processor this module ships, wrapping
// processor.Apply.
var DefaultProcessor Processor = defaultProcessor{}

// Static is the trivial VersionManager spec.md §1 allows when treating
// the version manager as "a pure function": it returns the same
// Processor for every transaction time.
type Static struct {
	Proc Processor
}

// NewStatic returns a Static version manager wrapping DefaultProcessor.
func NewStatic() *Static {
	return &Static{Proc: DefaultProcessor}
}

func (s *Static) ForTransactionTime(uint64) (Processor, error) {
	return s.Proc, nil
}
