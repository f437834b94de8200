package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// TokenType discriminates how a token's identity is folded into the
// commitment hash.
type TokenType uint8

const (
	// Fungible tokens are identified by their address alone.
	Fungible TokenType = iota
	// NonFungibleUnique tokens carry a unique sub-identifier per item.
	NonFungibleUnique
	// NonFungibleSemiFungible tokens carry a sub-identifier shared by a
	// class of items.
	NonFungibleSemiFungible
)

func (t TokenType) String() string {
	switch t {
	case Fungible:
		return "fungible"
	case NonFungibleUnique:
		return "nft"
	case NonFungibleSemiFungible:
		return "semi-fungible"
	}
	return "unknown"
}

// Valid reports whether t is one of the supported token types.
func (t TokenType) Valid() bool {
	return t <= NonFungibleSemiFungible
}

// TokenData identifies the asset a note carries.
type TokenData struct {
	TokenType    TokenType      `json:"tokenType"`
	TokenAddress common.Address `json:"tokenAddress"`
	TokenSubID   *BigInt        `json:"tokenSubID,omitempty"`
}
