// Package verifier holds the versioned Groth16 verification keys, indexed
// by circuit shape (nullifier count, commitment count), and checks
// transaction proofs against them. Keys are mutable by governance;
// replacing a key changes what "valid proof" means for that shape from
// that moment on, never retroactively.
package verifier

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
	"go.vocdoni.io/dvote/log"

	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/governance"
	"github.com/shieldpool/shieldpool/types"
)

var (
	// ErrKeyNotSet is returned when no key is registered for a shape.
	ErrKeyNotSet = errors.New("no verifying key for circuit shape")
	// ErrMalformedKey is returned for structurally invalid keys.
	ErrMalformedKey = errors.New("malformed verifying key")
	// ErrMalformedProof is returned for structurally invalid proofs.
	ErrMalformedProof = errors.New("malformed proof")
	// ErrUnauthorized is returned when the caller may not set keys.
	ErrUnauthorized = errors.New("caller not authorized to set verifying keys")
)

var keysPrefix = []byte("k/")

type shape struct {
	nullifiers  int
	commitments int
}

func (s shape) key() []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint32(k[0:4], uint32(s.nullifiers))
	binary.BigEndian.PutUint32(k[4:8], uint32(s.commitments))
	return k
}

// Verifier is the proof-verification component.
type Verifier struct {
	db   db.Database
	auth governance.Auth
	sink events.Sink

	mtx  sync.RWMutex
	keys map[shape]*VerifyingKey
}

// New creates a Verifier, loading any persisted keys ("k/" prefix).
func New(database db.Database, auth governance.Auth, sink events.Sink) (*Verifier, error) {
	if sink == nil {
		sink = events.NopSink{}
	}
	v := &Verifier{
		db:   database,
		auth: auth,
		sink: sink,
		keys: make(map[shape]*VerifyingKey),
	}
	reader := prefixeddb.NewPrefixedReader(database, keysPrefix)
	var loadErr error
	err := reader.Iterate(nil, func(k, value []byte) bool {
		if len(k) != 8 {
			loadErr = fmt.Errorf("corrupt verifying key entry %x", k)
			return false
		}
		sh := shape{
			nullifiers:  int(binary.BigEndian.Uint32(k[0:4])),
			commitments: int(binary.BigEndian.Uint32(k[4:8])),
		}
		vk := &VerifyingKey{}
		if loadErr = vk.Unmarshal(value); loadErr != nil {
			return false
		}
		v.keys[sh] = vk
		return true
	})
	if err != nil {
		return nil, err
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return v, nil
}

// SetVerificationKey registers (or replaces) the key for a circuit shape.
// Governance-gated.
func (v *Verifier) SetVerificationKey(caller common.Address, nullifierCount, commitmentCount int, vk *VerifyingKey) error {
	if !v.auth.Authorized(caller, governance.ActionSetVerifyingKey) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	if nullifierCount < 1 || commitmentCount < 1 {
		return fmt.Errorf("%w: shape (%d,%d)", ErrMalformedKey, nullifierCount, commitmentCount)
	}
	if err := vk.Validate(); err != nil {
		return err
	}
	sh := shape{nullifiers: nullifierCount, commitments: commitmentCount}
	wTx := prefixeddb.NewPrefixedWriteTx(v.db.WriteTx(), keysPrefix)
	defer wTx.Discard()
	if err := wTx.Set(sh.key(), vk.Marshal()); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	v.mtx.Lock()
	v.keys[sh] = vk
	v.mtx.Unlock()
	log.Infow("verifying key set", "nullifiers", nullifierCount,
		"commitments", commitmentCount, "by", caller.Hex())
	v.sink.Publish(events.VerifyingKeyChanged{
		NullifierCount:  nullifierCount,
		CommitmentCount: commitmentCount,
	})
	return nil
}

// GetVerificationKey returns the registered key for a shape, or ErrKeyNotSet.
func (v *Verifier) GetVerificationKey(nullifierCount, commitmentCount int) (*VerifyingKey, error) {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	vk, ok := v.keys[shape{nullifiers: nullifierCount, commitments: commitmentCount}]
	if !ok {
		return nil, fmt.Errorf("%w (%d,%d)", ErrKeyNotSet, nullifierCount, commitmentCount)
	}
	return vk, nil
}

// Verify checks a transaction's proof against the key registered for its
// (nullifier count, commitment count) shape. It returns (false, nil) when
// the pairing equation does not hold, and an error for structural failures
// or a missing key.
func (v *Verifier) Verify(tx *types.Transaction) (bool, error) {
	vk, err := v.GetVerificationKey(len(tx.Nullifiers), len(tx.Commitments))
	if err != nil {
		return false, err
	}
	hash, err := PublicInputsHash(tx)
	if err != nil {
		return false, err
	}
	a, err := g1FromPoint(tx.Proof.A)
	if err != nil {
		return false, err
	}
	b, err := g2FromPoint(tx.Proof.B)
	if err != nil {
		return false, err
	}
	c, err := g1FromPoint(tx.Proof.C)
	if err != nil {
		return false, err
	}

	// vk_x = IC[0] + hash * IC[1]
	var vkx bn254.G1Affine
	vkx.ScalarMultiplication(&vk.IC[1], hash)
	vkx.Add(&vkx, &vk.IC[0])

	// e(-A, B) * e(alpha, beta) * e(vk_x, gamma) * e(C, delta) == 1
	var negA bn254.G1Affine
	negA.Neg(&a)
	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{negA, vk.Alpha, vkx, c},
		[]bn254.G2Affine{b, vk.Beta, vk.Gamma, vk.Delta},
	)
	if err != nil {
		return false, fmt.Errorf("pairing check: %w", err)
	}
	return ok, nil
}
