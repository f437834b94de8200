package verifier

import (
	"encoding/binary"
	"fmt"
	"math/big"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"

	"github.com/shieldpool/shieldpool/types"
)

const (
	g1Size = bn254.SizeOfG1AffineUncompressed
	g2Size = bn254.SizeOfG2AffineUncompressed
)

// VerifyingKey is the Groth16 verification key for one circuit shape.
// IC carries exactly two basis points because every circuit exposes a
// single public input: the public-inputs hash.
type VerifyingKey struct {
	Alpha bn254.G1Affine
	Beta  bn254.G2Affine
	Gamma bn254.G2Affine
	Delta bn254.G2Affine
	IC    []bn254.G1Affine
}

// Validate checks point membership and the IC arity.
func (vk *VerifyingKey) Validate() error {
	if len(vk.IC) != 2 {
		return fmt.Errorf("%w: want 2 IC points, got %d", ErrMalformedKey, len(vk.IC))
	}
	for _, p := range append([]bn254.G1Affine{vk.Alpha}, vk.IC...) {
		if !p.IsOnCurve() {
			return fmt.Errorf("%w: G1 point off curve", ErrMalformedKey)
		}
	}
	for _, p := range []bn254.G2Affine{vk.Beta, vk.Gamma, vk.Delta} {
		if !p.IsOnCurve() || !p.IsInSubGroup() {
			return fmt.Errorf("%w: G2 point invalid", ErrMalformedKey)
		}
	}
	return nil
}

// Marshal encodes the key as fixed-size uncompressed points.
func (vk *VerifyingKey) Marshal() []byte {
	buf := make([]byte, 0, g1Size+3*g2Size+4+len(vk.IC)*g1Size)
	a := vk.Alpha.RawBytes()
	buf = append(buf, a[:]...)
	for _, p := range []bn254.G2Affine{vk.Beta, vk.Gamma, vk.Delta} {
		b := p.RawBytes()
		buf = append(buf, b[:]...)
	}
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(vk.IC)))
	buf = append(buf, n[:]...)
	for _, p := range vk.IC {
		b := p.RawBytes()
		buf = append(buf, b[:]...)
	}
	return buf
}

// Unmarshal decodes a key encoded by Marshal.
func (vk *VerifyingKey) Unmarshal(buf []byte) error {
	need := g1Size + 3*g2Size + 4
	if len(buf) < need {
		return fmt.Errorf("%w: truncated key", ErrMalformedKey)
	}
	if _, err := vk.Alpha.SetBytes(buf[:g1Size]); err != nil {
		return fmt.Errorf("%w: alpha: %v", ErrMalformedKey, err)
	}
	off := g1Size
	for _, p := range []*bn254.G2Affine{&vk.Beta, &vk.Gamma, &vk.Delta} {
		if _, err := p.SetBytes(buf[off : off+g2Size]); err != nil {
			return fmt.Errorf("%w: G2 point: %v", ErrMalformedKey, err)
		}
		off += g2Size
	}
	n := int(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	if len(buf) != need+n*g1Size {
		return fmt.Errorf("%w: bad IC length", ErrMalformedKey)
	}
	vk.IC = make([]bn254.G1Affine, n)
	for i := 0; i < n; i++ {
		if _, err := vk.IC[i].SetBytes(buf[off : off+g1Size]); err != nil {
			return fmt.Errorf("%w: IC[%d]: %v", ErrMalformedKey, i, err)
		}
		off += g1Size
	}
	return nil
}

// canonicalBase rejects coordinates outside [0, p): fp.Element.SetBigInt
// would silently reduce them, so a point would have more than one
// accepted encoding.
func canonicalBase(v *big.Int) error {
	if v.Sign() < 0 || v.Cmp(fp.Modulus()) >= 0 {
		return fmt.Errorf("%w: non-canonical base field coordinate", ErrMalformedProof)
	}
	return nil
}

// g1FromPoint converts external decimal coordinates into an affine point,
// checking curve membership. The zero point encodes infinity.
func g1FromPoint(p types.G1Point) (bn254.G1Affine, error) {
	var a bn254.G1Affine
	if p.X == nil || p.Y == nil {
		return a, fmt.Errorf("%w: nil G1 coordinate", ErrMalformedProof)
	}
	for _, c := range []*types.BigInt{p.X, p.Y} {
		if err := canonicalBase(c.MathBigInt()); err != nil {
			return a, err
		}
	}
	a.X.SetBigInt(p.X.MathBigInt())
	a.Y.SetBigInt(p.Y.MathBigInt())
	if !a.IsOnCurve() {
		return a, fmt.Errorf("%w: G1 point off curve", ErrMalformedProof)
	}
	return a, nil
}

// g2FromPoint converts external decimal coordinates ([imaginary, real]
// per coordinate) into an affine point, checking curve and subgroup
// membership.
func g2FromPoint(p types.G2Point) (bn254.G2Affine, error) {
	var a bn254.G2Affine
	for _, c := range []*types.BigInt{p.X[0], p.X[1], p.Y[0], p.Y[1]} {
		if c == nil {
			return a, fmt.Errorf("%w: nil G2 coordinate", ErrMalformedProof)
		}
		if err := canonicalBase(c.MathBigInt()); err != nil {
			return a, err
		}
	}
	a.X.A1.SetBigInt(p.X[0].MathBigInt())
	a.X.A0.SetBigInt(p.X[1].MathBigInt())
	a.Y.A1.SetBigInt(p.Y[0].MathBigInt())
	a.Y.A0.SetBigInt(p.Y[1].MathBigInt())
	if !a.IsOnCurve() || !a.IsInSubGroup() {
		return a, fmt.Errorf("%w: G2 point invalid", ErrMalformedProof)
	}
	return a, nil
}

// pointToG1 exports an affine point as decimal coordinates.
func pointToG1(a bn254.G1Affine) types.G1Point {
	return types.G1Point{
		X: types.NewBigInt(a.X.BigInt(new(big.Int))),
		Y: types.NewBigInt(a.Y.BigInt(new(big.Int))),
	}
}

// pointToG2 exports an affine point as decimal [imaginary, real] coordinates.
func pointToG2(a bn254.G2Affine) types.G2Point {
	return types.G2Point{
		X: [2]*types.BigInt{
			types.NewBigInt(a.X.A1.BigInt(new(big.Int))),
			types.NewBigInt(a.X.A0.BigInt(new(big.Int))),
		},
		Y: [2]*types.BigInt{
			types.NewBigInt(a.Y.A1.BigInt(new(big.Int))),
			types.NewBigInt(a.Y.A0.BigInt(new(big.Int))),
		},
	}
}
