package processor

import (
	"math/big"

	"github.com/shieldpool/shieldpool/types"
)

var basisPoints = big.NewInt(types.BasisPoints)

// FeeInclusive splits an amount that already contains the fee:
//
//	base = amount − amount·feeBP/10000
//	fee  = amount − base
//
// Integer division truncates; base + fee == amount always holds.
func FeeInclusive(amount *big.Int, feeBP uint64) (base, fee *big.Int) {
	cut := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBP))
	cut.Div(cut, basisPoints)
	base = new(big.Int).Sub(amount, cut)
	fee = new(big.Int).Sub(amount, base)
	return base, fee
}

// FeeExclusive computes the fee to add on top of an amount:
//
//	base = amount
//	fee  = 10000·base/(10000 − feeBP) − base
//
// Integer division truncates. The order of operations is part of the wire
// format: off-chain fee estimation must reproduce it bit for bit.
func FeeExclusive(amount *big.Int, feeBP uint64) (base, fee *big.Int) {
	base = new(big.Int).Set(amount)
	gross := new(big.Int).Mul(basisPoints, base)
	gross.Div(gross, new(big.Int).Sub(basisPoints, new(big.Int).SetUint64(feeBP)))
	fee = gross.Sub(gross, base)
	return base, fee
}
