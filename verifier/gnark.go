package verifier

import (
	"fmt"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"

	"github.com/shieldpool/shieldpool/types"
)

// KeyFromGnark converts a gnark BN254 Groth16 verifying key into the
// registry representation. This is the interchange format governance uses
// to upload keys produced by a gnark trusted setup.
func KeyFromGnark(vk groth16.VerifyingKey) (*VerifyingKey, error) {
	bvk, ok := vk.(*groth16bn254.VerifyingKey)
	if !ok {
		return nil, fmt.Errorf("%w: not a BN254 key", ErrMalformedKey)
	}
	out := &VerifyingKey{
		Alpha: bvk.G1.Alpha,
		Beta:  bvk.G2.Beta,
		Gamma: bvk.G2.Gamma,
		Delta: bvk.G2.Delta,
		IC:    append([]bn254.G1Affine{}, bvk.G1.K...),
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// ProofFromGnark exports a gnark BN254 Groth16 proof into the external
// decimal-coordinate representation carried by transactions.
func ProofFromGnark(proof groth16.Proof) (types.SnarkProof, error) {
	bp, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return types.SnarkProof{}, fmt.Errorf("%w: not a BN254 proof", ErrMalformedProof)
	}
	return types.SnarkProof{
		A: pointToG1(bp.Ar),
		B: pointToG2(bp.Bs),
		C: pointToG1(bp.Krs),
	}, nil
}
