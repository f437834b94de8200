// Package events defines the canonical event log of the shielded pool.
// The log is the only externally observable record of tree contents:
// off-chain wallets replay it to rebuild the commitment trees and detect
// incoming notes, so field order and emission order are part of the
// protocol surface.
package events

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shieldpool/shieldpool/types"
)

// Event is implemented by every canonical event.
type Event interface {
	Name() string
}

// CommitmentBatch announces the leaves a transact call inserted, in
// submission order, with their ciphertexts.
type CommitmentBatch struct {
	TreeNumber    uint32                       `json:"treeNumber"`
	StartPosition uint64                       `json:"startPosition"`
	Hashes        []*types.BigInt              `json:"hashes"`
	Ciphertexts   []types.CommitmentCiphertext `json:"ciphertexts"`
}

func (CommitmentBatch) Name() string { return "CommitmentBatch" }

// Shield announces deposited commitments with their post-fee preimages.
type Shield struct {
	TreeNumber    uint32                       `json:"treeNumber"`
	StartPosition uint64                       `json:"startPosition"`
	Preimages     []types.CommitmentPreimage   `json:"preimages"`
	Ciphertexts   []types.CommitmentCiphertext `json:"ciphertexts"`
}

func (Shield) Name() string { return "Shield" }

// Unshield announces a withdrawal, already split into base and fee.
type Unshield struct {
	To    common.Address  `json:"to"`
	Token types.TokenData `json:"token"`
	Base  *types.BigInt   `json:"base"`
	Fee   *types.BigInt   `json:"fee"`
}

func (Unshield) Name() string { return "Unshield" }

// Nullifiers announces the nullifiers one transaction consumed.
type Nullifiers struct {
	TreeNumber uint32          `json:"treeNumber"`
	Values     []*types.BigInt `json:"nullifiers"`
}

func (Nullifiers) Name() string { return "Nullifiers" }

// VerifyingKeyChanged announces a verification key replacement for a
// circuit shape. Proofs submitted afterwards verify against the new key.
type VerifyingKeyChanged struct {
	NullifierCount  int `json:"nullifierCount"`
	CommitmentCount int `json:"commitmentCount"`
}

func (VerifyingKeyChanged) Name() string { return "VerifyingKeyChanged" }

// Sink receives the canonical events in emission order.
type Sink interface {
	Publish(Event)
}

// Entry is a recorded event with its position in the log.
type Entry struct {
	Seq   uint64 `json:"seq"`
	Event string `json:"event"`
	Data  Event  `json:"data"`
}

// MemorySink records events in order. It serves tests and the /events
// indexer endpoint.
type MemorySink struct {
	mtx     sync.RWMutex
	entries []Entry
}

// NewMemorySink returns an empty recording sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(e Event) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.entries = append(s.entries, Entry{
		Seq:   uint64(len(s.entries)),
		Event: e.Name(),
		Data:  e,
	})
}

// Since returns all recorded entries with Seq >= from.
func (s *MemorySink) Since(from uint64) []Entry {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if from > uint64(len(s.entries)) {
		return nil
	}
	out := make([]Entry, len(s.entries[from:]))
	copy(out, s.entries[from:])
	return out
}

// Len returns the number of recorded entries.
func (s *MemorySink) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.entries)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Publish(Event) {}
