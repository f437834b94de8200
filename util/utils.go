package util

import (
	"crypto/rand"
	"math/big"

	"github.com/shieldpool/shieldpool/types"
)

// RandomFieldElement returns a uniformly random element of the BN254
// scalar field. Useful for note public keys and nullifiers in tests.
func RandomFieldElement() *big.Int {
	v, err := rand.Int(rand.Reader, types.SnarkScalarModulus)
	if err != nil {
		panic(err)
	}
	return v
}

// BigToFF returns the finite field representation of the provided big.Int,
// reduced with the Euclidean modulus of the BN254 scalar field.
func BigToFF(iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(types.SnarkScalarModulus); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, types.SnarkScalarModulus)
}

// InField reports whether v is a canonical BN254 scalar field element,
// that is 0 <= v < SnarkScalarModulus.
func InField(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(types.SnarkScalarModulus) < 0
}
