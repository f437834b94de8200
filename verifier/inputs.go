package verifier

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/util"
)

// Shapes with at most this many nullifiers and commitments use the flat
// public-inputs layout; larger shapes sub-hash the arrays first. The split
// mirrors the distinct circuit layouts for small and large shapes.
const (
	smallShapeNullifiers  = 2
	smallShapeCommitments = 3
)

var (
	uint256T, _ = abi.NewType("uint256", "", nil)
	uint8T, _   = abi.NewType("uint8", "", nil)
	addressT, _ = abi.NewType("address", "", nil)
	bytes32T, _ = abi.NewType("bytes32", "", nil)

	boundParamsArgs = abi.Arguments{
		{Type: uint256T}, // treeNumber
		{Type: uint256T}, // minGasPrice
		{Type: uint8T},   // unshieldType
		{Type: uint256T}, // chainID
		{Type: addressT}, // adaptContract
		{Type: bytes32T}, // adaptParams
		{Type: bytes32T}, // ciphertext digest
	}
)

// ciphertextDigest folds the ciphertext list into one 32-byte word:
// keccak over each ciphertext's words, ephemeral keys and memo hash,
// concatenated in list order.
func ciphertextDigest(cts []types.CommitmentCiphertext) [32]byte {
	buf := make([]byte, 0, len(cts)*(types.CiphertextWords+3)*32)
	for _, ct := range cts {
		for _, w := range ct.Ciphertext {
			buf = append(buf, padWord(w)...)
		}
		for _, k := range ct.EphemeralKeys {
			buf = append(buf, padWord(k)...)
		}
		buf = append(buf, ethcrypto.Keccak256(ct.Memo)...)
	}
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(buf))
	return out
}

// padWord left-pads b into a 32-byte word. Longer inputs are hashed down.
func padWord(b []byte) []byte {
	if len(b) > 32 {
		return ethcrypto.Keccak256(b)
	}
	w := make([]byte, 32)
	copy(w[32-len(b):], b)
	return w
}

// BoundParamsHash computes the field element that binds a transaction's
// metadata into its proof: keccak256 of the canonical ABI encoding of the
// bound params, reduced into the scalar field.
func BoundParamsHash(bp types.BoundParams) (*big.Int, error) {
	minGasPrice := big.NewInt(0)
	if bp.MinGasPrice != nil {
		minGasPrice = bp.MinGasPrice.MathBigInt()
	}
	chainID := big.NewInt(0)
	if bp.ChainID != nil {
		chainID = bp.ChainID.MathBigInt()
	}
	var adaptParams [32]byte
	copy(adaptParams[:], padWord(bp.AdaptParams))
	packed, err := boundParamsArgs.Pack(
		new(big.Int).SetUint64(uint64(bp.TreeNumber)),
		minGasPrice,
		uint8(bp.UnshieldType),
		chainID,
		bp.AdaptContract,
		adaptParams,
		ciphertextDigest(bp.Ciphertexts),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot encode bound params: %w", err)
	}
	return util.BigToFF(new(big.Int).SetBytes(ethcrypto.Keccak256(packed))), nil
}

// PublicInputsHash recomputes the single public input the proof was
// generated against. The preimage layout is shape-specific and must match
// the off-chain circuit's public-input ordering exactly:
//
//	small shapes: keccak(root || boundParamsHash || nullifiers... || commitments...)
//	large shapes: keccak(root || boundParamsHash || keccak(nullifiers...) || keccak(commitments...))
//
// reduced into the scalar field either way.
func PublicInputsHash(tx *types.Transaction) (*big.Int, error) {
	if tx.MerkleRoot == nil {
		return nil, fmt.Errorf("%w: missing merkle root", ErrMalformedProof)
	}
	bph, err := BoundParamsHash(tx.BoundParams)
	if err != nil {
		return nil, err
	}
	nullifiers, err := packScalars(tx.Nullifiers)
	if err != nil {
		return nil, fmt.Errorf("nullifiers: %w", err)
	}
	commitments, err := packScalars(tx.Commitments)
	if err != nil {
		return nil, fmt.Errorf("commitments: %w", err)
	}
	buf := make([]byte, 0, 4*32)
	buf = append(buf, bigWord(tx.MerkleRoot.MathBigInt())...)
	buf = append(buf, bigWord(bph)...)
	if len(tx.Nullifiers) <= smallShapeNullifiers && len(tx.Commitments) <= smallShapeCommitments {
		buf = append(buf, nullifiers...)
		buf = append(buf, commitments...)
	} else {
		buf = append(buf, ethcrypto.Keccak256(nullifiers)...)
		buf = append(buf, ethcrypto.Keccak256(commitments)...)
	}
	return util.BigToFF(new(big.Int).SetBytes(ethcrypto.Keccak256(buf))), nil
}

func packScalars(vals []*types.BigInt) ([]byte, error) {
	buf := make([]byte, 0, len(vals)*32)
	for i, v := range vals {
		if v == nil || !util.InField(v.MathBigInt()) {
			return nil, fmt.Errorf("element %d out of scalar field range", i)
		}
		buf = append(buf, bigWord(v.MathBigInt())...)
	}
	return buf, nil
}

func bigWord(v *big.Int) []byte {
	w := make([]byte, 32)
	v.FillBytes(w)
	return w
}
