package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number. It is used for all field elements and note values that
// cross the API or event-log boundary.
type BigInt big.Int

// MarshalJSON returns the JSON representation of the BigInt.
func (i *BigInt) MarshalJSON() ([]byte, error) {
	if i == nil {
		return []byte("null"), nil
	}
	return []byte(`"` + (*big.Int)(i).String() + `"`), nil
}

// UnmarshalJSON sets the BigInt from its JSON representation. It accepts
// both a quoted decimal string and a bare JSON number.
func (i *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if _, ok := (*big.Int)(i).SetString(s, 10); !ok {
		return fmt.Errorf("cannot parse %q as a base 10 integer", s)
	}
	return nil
}

// MarshalCBOR encodes the BigInt as its big-endian byte representation.
func (i *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal((*big.Int)(i).Bytes())
}

// UnmarshalCBOR decodes the BigInt from its big-endian byte representation.
func (i *BigInt) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	(*big.Int)(i).SetBytes(b)
	return nil
}

// MathBigInt converts b to a native big.Int.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

// String returns the decimal representation.
func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// NewBigInt wraps a native big.Int. The value is referenced, not copied.
func NewBigInt(v *big.Int) *BigInt {
	return (*BigInt)(v)
}

// BigIntFromUint64 returns a BigInt holding v.
func BigIntFromUint64(v uint64) *BigInt {
	return (*BigInt)(new(big.Int).SetUint64(v))
}

// Equal reports whether i and j hold the same value. A nil BigInt equals
// only another nil BigInt.
func (i *BigInt) Equal(j *BigInt) bool {
	if i == nil || j == nil {
		return i == j
	}
	return (*big.Int)(i).Cmp((*big.Int)(j)) == 0
}
