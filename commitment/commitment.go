// Package commitment implements the deterministic arithmetic hash that maps
// a note opening (note public key, token identity, value) to the field
// element stored in the commitment tree. The hash must match the one used
// by the off-chain proving circuit bit for bit, so Poseidon over BN254 is
// not a replaceable choice.
package commitment

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/shieldpool/shieldpool/crypto/hash/poseidon"
	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/util"
)

// ErrOutOfField is returned when a preimage component is not a canonical
// scalar field element.
var ErrOutOfField = fmt.Errorf("value out of scalar field range")

var (
	addressT, _ = abi.NewType("address", "", nil)
	uint256T, _ = abi.NewType("uint256", "", nil)

	nftFieldArgs = abi.Arguments{{Type: addressT}, {Type: uint256T}}
)

// TokenField derives the single field element that identifies a token
// inside a commitment: fungible tokens use their address directly,
// non-fungible ones hash (address, subID) and reduce into the field.
func TokenField(token types.TokenData) (*big.Int, error) {
	switch token.TokenType {
	case types.Fungible:
		return new(big.Int).SetBytes(token.TokenAddress.Bytes()), nil
	case types.NonFungibleUnique, types.NonFungibleSemiFungible:
		subID := big.NewInt(0)
		if token.TokenSubID != nil {
			subID = token.TokenSubID.MathBigInt()
		}
		packed, err := nftFieldArgs.Pack(token.TokenAddress, subID)
		if err != nil {
			return nil, fmt.Errorf("cannot encode token identity: %w", err)
		}
		return util.BigToFF(new(big.Int).SetBytes(ethcrypto.Keccak256(packed))), nil
	}
	return nil, fmt.Errorf("unsupported token type %d", token.TokenType)
}

// Hash computes Poseidon(npk, tokenField, value). All three inputs must be
// canonical field elements and value must not exceed the note value limit.
func Hash(npk, tokenField, value *big.Int) (*big.Int, error) {
	for _, v := range []*big.Int{npk, tokenField, value} {
		if !util.InField(v) {
			return nil, ErrOutOfField
		}
	}
	if value.Cmp(types.MaxNoteValue) > 0 {
		return nil, fmt.Errorf("%w: value above 2^120-1", ErrOutOfField)
	}
	return poseidon.MultiPoseidon(npk, tokenField, value)
}

// HashPreimage computes the commitment of a full preimage.
func HashPreimage(p types.CommitmentPreimage) (*big.Int, error) {
	if p.NPK == nil || p.Value == nil {
		return nil, fmt.Errorf("%w: nil preimage component", ErrOutOfField)
	}
	tokenField, err := TokenField(p.Token)
	if err != nil {
		return nil, err
	}
	return Hash(p.NPK.MathBigInt(), tokenField, p.Value.MathBigInt())
}
