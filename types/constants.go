package types

import "math/big"

const (
	// DefaultTreeDepth is the depth of a commitment tree. A tree holds
	// 2^DefaultTreeDepth leaves before rolling over to the next one.
	DefaultTreeDepth = 16
	// BasisPoints is the fee denominator: 10000 BP = 100%.
	BasisPoints = 10000
	// CiphertextWords is the number of 32-byte words in a commitment
	// ciphertext. The core never interprets them.
	CiphertextWords = 4
)

// SnarkScalarModulus is the BN254 scalar field modulus. Every field-valued
// component of a commitment preimage must be strictly below it.
var SnarkScalarModulus, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// MaxNoteValue is the largest value representable in a note: 2^120 - 1.
var MaxNoteValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 120), big.NewInt(1))
