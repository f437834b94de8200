package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// UnshieldType selects how a transaction leaves the shielded pool.
type UnshieldType uint8

const (
	// UnshieldNone means the transaction stays fully shielded.
	UnshieldNone UnshieldType = iota
	// UnshieldNormal withdraws to the address encoded in the unshield
	// preimage's note public key.
	UnshieldNormal
	// UnshieldRedirect allows the encoded address, when it is also the
	// caller, to redirect the withdrawal to another destination.
	UnshieldRedirect
)

// Valid reports whether u is a known unshield type.
func (u UnshieldType) Valid() bool {
	return u <= UnshieldRedirect
}

// CommitmentPreimage is the opening of a commitment: the note public key,
// the token carried and the value. Commitment = Poseidon(npk, tokenField,
// value).
type CommitmentPreimage struct {
	NPK   *BigInt   `json:"npk"`
	Token TokenData `json:"token"`
	Value *BigInt   `json:"value"`
}

// CommitmentCiphertext is the encrypted note payload attached to an
// inserted commitment. The core stores and emits it untouched; only
// off-chain wallets can decrypt it.
type CommitmentCiphertext struct {
	Ciphertext    [CiphertextWords]HexBytes `json:"ciphertext"`
	EphemeralKeys [2]HexBytes               `json:"ephemeralKeys"`
	Memo          HexBytes                  `json:"memo,omitempty"`
}

// BoundParams is the transaction metadata cryptographically bound into the
// proof's public inputs. Changing any field invalidates the proof.
type BoundParams struct {
	TreeNumber    uint32                 `json:"treeNumber"`
	MinGasPrice   *BigInt                `json:"minGasPrice"`
	UnshieldType  UnshieldType           `json:"unshield"`
	ChainID       *BigInt                `json:"chainID"`
	AdaptContract common.Address         `json:"adaptContract"`
	AdaptParams   HexBytes               `json:"adaptParams"`
	Ciphertexts   []CommitmentCiphertext `json:"commitmentCiphertext"`
}

// G1Point is an affine BN254 G1 point in decimal coordinates.
type G1Point struct {
	X *BigInt `json:"x"`
	Y *BigInt `json:"y"`
}

// G2Point is an affine BN254 G2 point. Coordinate order is [imaginary,
// real], matching the conventional external representation of Groth16
// proof material.
type G2Point struct {
	X [2]*BigInt `json:"x"`
	Y [2]*BigInt `json:"y"`
}

// SnarkProof is a Groth16 proof over BN254.
type SnarkProof struct {
	A G1Point `json:"a"`
	B G2Point `json:"b"`
	C G1Point `json:"c"`
}

// Transaction is the atomic unit submitted to the transaction processor:
// a private spend of up to len(Nullifiers) notes producing len(Commitments)
// new notes, optionally unshielding the last one.
type Transaction struct {
	Proof            SnarkProof         `json:"proof"`
	MerkleRoot       *BigInt            `json:"merkleRoot"`
	Nullifiers       []*BigInt          `json:"nullifiers"`
	Commitments      []*BigInt          `json:"commitments"`
	BoundParams      BoundParams        `json:"boundParams"`
	UnshieldPreimage CommitmentPreimage `json:"unshieldPreimage"`
	OverrideOutput   common.Address     `json:"overrideOutput"`
}
