// Package verifiertest provides a real Groth16 prover for tests: a
// minimal BN254 circuit whose single public input is the transaction's
// public-inputs hash. Proofs and keys produced here go through the exact
// pairing path production uses, so tests never need a verification bypass.
package verifiertest

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/verifier"
)

// bindingCircuit binds its sole public input to a private witness. The
// constraint content is irrelevant to the verifier tests; only the public
// input arity matters.
type bindingCircuit struct {
	Hash   frontend.Variable `gnark:",public"`
	Secret frontend.Variable
}

func (c *bindingCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Hash, c.Secret)
	return nil
}

// Prover holds a compiled circuit with its proving and verifying keys.
type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

var (
	sharedOnce sync.Once
	shared     *Prover
	sharedErr  error
)

// Shared returns a process-wide Prover; the trusted setup runs once.
func Shared() (*Prover, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = New()
	})
	return shared, sharedErr
}

// New compiles the binding circuit and runs a fresh trusted setup.
func New() (*Prover, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &bindingCircuit{})
	if err != nil {
		return nil, fmt.Errorf("cannot compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("cannot run setup: %w", err)
	}
	return &Prover{ccs: ccs, pk: pk, vk: vk}, nil
}

// VerifyingKey exports the setup's verifying key in registry form.
func (p *Prover) VerifyingKey() (*verifier.VerifyingKey, error) {
	return verifier.KeyFromGnark(p.vk)
}

// Prove generates a proof whose public input is the given hash.
func (p *Prover) Prove(hash *big.Int) (types.SnarkProof, error) {
	witness, err := frontend.NewWitness(&bindingCircuit{Hash: hash, Secret: hash}, ecc.BN254.ScalarField())
	if err != nil {
		return types.SnarkProof{}, fmt.Errorf("cannot build witness: %w", err)
	}
	proof, err := groth16.Prove(p.ccs, p.pk, witness)
	if err != nil {
		return types.SnarkProof{}, fmt.Errorf("cannot prove: %w", err)
	}
	return verifier.ProofFromGnark(proof)
}

// ProveTransaction recomputes the transaction's public-inputs hash and
// fills in a valid proof for it.
func (p *Prover) ProveTransaction(tx *types.Transaction) error {
	hash, err := verifier.PublicInputsHash(tx)
	if err != nil {
		return err
	}
	proof, err := p.Prove(hash)
	if err != nil {
		return err
	}
	tx.Proof = proof
	return nil
}
