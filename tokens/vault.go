// Package tokens is the token-transfer collaborator boundary. The real
// asset ledger lives outside the core; the processor only needs to pull
// value from callers, push value to recipients and query balances.
package tokens

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shieldpool/shieldpool/types"
)

// ErrInsufficientBalance is returned when a pull exceeds the holder's balance.
var ErrInsufficientBalance = errors.New("insufficient token balance")

// Vault moves token value between the pool and external holders. A
// transfer of a NonFungibleUnique token moves the single item named by the
// token's sub-identifier; value is then always 1.
type Vault interface {
	// PullFrom withdraws value from holder into the pool.
	PullFrom(holder common.Address, token types.TokenData, value *big.Int) error
	// PushTo deposits value from the pool to recipient.
	PushTo(recipient common.Address, token types.TokenData, value *big.Int) error
	// BalanceOf returns holder's balance of the given token.
	BalanceOf(holder common.Address, token types.TokenData) (*big.Int, error)
}

// tokenKey folds the token identity into a map key.
func tokenKey(token types.TokenData) string {
	sub := ""
	if token.TokenSubID != nil {
		sub = token.TokenSubID.String()
	}
	return fmt.Sprintf("%d/%s/%s", token.TokenType, token.TokenAddress.Hex(), sub)
}

// MemoryVault is an in-process Vault used by tests and the demo service.
type MemoryVault struct {
	mtx      sync.Mutex
	balances map[common.Address]map[string]*big.Int
}

// NewMemoryVault returns an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{balances: make(map[common.Address]map[string]*big.Int)}
}

// Mint credits a holder, for test setup.
func (v *MemoryVault) Mint(holder common.Address, token types.TokenData, value *big.Int) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.credit(holder, token, value)
}

func (v *MemoryVault) credit(holder common.Address, token types.TokenData, value *big.Int) {
	if v.balances[holder] == nil {
		v.balances[holder] = make(map[string]*big.Int)
	}
	k := tokenKey(token)
	if v.balances[holder][k] == nil {
		v.balances[holder][k] = big.NewInt(0)
	}
	v.balances[holder][k].Add(v.balances[holder][k], value)
}

func (v *MemoryVault) PullFrom(holder common.Address, token types.TokenData, value *big.Int) error {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	k := tokenKey(token)
	balance := v.balances[holder][k]
	if balance == nil || balance.Cmp(value) < 0 {
		return fmt.Errorf("%w: holder %s token %s", ErrInsufficientBalance, holder.Hex(), k)
	}
	balance.Sub(balance, value)
	return nil
}

func (v *MemoryVault) PushTo(recipient common.Address, token types.TokenData, value *big.Int) error {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.credit(recipient, token, value)
	return nil
}

func (v *MemoryVault) BalanceOf(holder common.Address, token types.TokenData) (*big.Int, error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	balance := v.balances[holder][tokenKey(token)]
	if balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}
