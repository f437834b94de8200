package util

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/shieldpool/shieldpool/types"
)

func TestBigToFF(t *testing.T) {
	c := qt.New(t)
	mod := types.SnarkScalarModulus

	c.Assert(BigToFF(big.NewInt(42)).Cmp(big.NewInt(42)), qt.Equals, 0)
	c.Assert(BigToFF(new(big.Int).Set(mod)).Sign(), qt.Equals, 0)

	over := new(big.Int).Add(mod, big.NewInt(5))
	c.Assert(BigToFF(over).Cmp(big.NewInt(5)), qt.Equals, 0)
}

func TestInField(t *testing.T) {
	c := qt.New(t)
	c.Assert(InField(big.NewInt(0)), qt.IsTrue)
	c.Assert(InField(new(big.Int).Sub(types.SnarkScalarModulus, big.NewInt(1))), qt.IsTrue)
	c.Assert(InField(types.SnarkScalarModulus), qt.IsFalse)
	c.Assert(InField(big.NewInt(-1)), qt.IsFalse)
	c.Assert(InField(nil), qt.IsFalse)
}

func TestRandomFieldElement(t *testing.T) {
	c := qt.New(t)
	for i := 0; i < 32; i++ {
		c.Assert(InField(RandomFieldElement()), qt.IsTrue)
	}
}
