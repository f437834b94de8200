package verifier_test

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/governance"
	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/util"
	"github.com/shieldpool/shieldpool/verifier"
	"github.com/shieldpool/shieldpool/verifier/verifiertest"
)

var admin = common.HexToAddress("0x000000000000000000000000000000000000ad01")

func testTx(nullifiers, commitments int) *types.Transaction {
	tx := &types.Transaction{
		MerkleRoot:  types.NewBigInt(util.RandomFieldElement()),
		BoundParams: types.BoundParams{ChainID: types.BigIntFromUint64(1)},
	}
	for i := 0; i < nullifiers; i++ {
		tx.Nullifiers = append(tx.Nullifiers, types.NewBigInt(util.RandomFieldElement()))
	}
	for i := 0; i < commitments; i++ {
		tx.Commitments = append(tx.Commitments, types.NewBigInt(util.RandomFieldElement()))
	}
	return tx
}

func TestSetVerificationKey(t *testing.T) {
	c := qt.New(t)
	prover, err := verifiertest.Shared()
	c.Assert(err, qt.IsNil)
	vk, err := prover.VerifyingKey()
	c.Assert(err, qt.IsNil)

	sink := events.NewMemorySink()
	v, err := verifier.New(metadb.NewTest(t), governance.StaticAuth{Admin: admin}, sink)
	c.Assert(err, qt.IsNil)

	_, err = v.GetVerificationKey(1, 2)
	c.Assert(err, qt.ErrorIs, verifier.ErrKeyNotSet)

	stranger := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	c.Assert(v.SetVerificationKey(stranger, 1, 2, vk), qt.ErrorIs, verifier.ErrUnauthorized)

	c.Assert(v.SetVerificationKey(admin, 0, 2, vk), qt.ErrorIs, verifier.ErrMalformedKey)
	c.Assert(v.SetVerificationKey(admin, 1, 2, vk), qt.IsNil)

	got, err := v.GetVerificationKey(1, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.Equal(got.Marshal(), vk.Marshal()), qt.IsTrue)

	// key replacement is announced
	c.Assert(sink.Len(), qt.Equals, 1)
	c.Assert(sink.Since(0)[0].Event, qt.Equals, "VerifyingKeyChanged")
}

func TestKeyPersistence(t *testing.T) {
	c := qt.New(t)
	prover, err := verifiertest.Shared()
	c.Assert(err, qt.IsNil)
	vk, err := prover.VerifyingKey()
	c.Assert(err, qt.IsNil)

	database := metadb.NewTest(t)
	auth := governance.StaticAuth{Admin: admin}
	v, err := verifier.New(database, auth, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(v.SetVerificationKey(admin, 2, 3, vk), qt.IsNil)

	reopened, err := verifier.New(database, auth, nil)
	c.Assert(err, qt.IsNil)
	got, err := reopened.GetVerificationKey(2, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.Equal(got.Marshal(), vk.Marshal()), qt.IsTrue)
}

func TestKeyMarshalRoundTrip(t *testing.T) {
	c := qt.New(t)
	prover, err := verifiertest.Shared()
	c.Assert(err, qt.IsNil)
	vk, err := prover.VerifyingKey()
	c.Assert(err, qt.IsNil)

	encoded := vk.Marshal()
	decoded := &verifier.VerifyingKey{}
	c.Assert(decoded.Unmarshal(encoded), qt.IsNil)
	c.Assert(bytes.Equal(decoded.Marshal(), encoded), qt.IsTrue)
	c.Assert(decoded.Validate(), qt.IsNil)

	c.Assert(decoded.Unmarshal(encoded[:40]), qt.ErrorIs, verifier.ErrMalformedKey)
	c.Assert(decoded.Unmarshal(append(encoded, 0)), qt.ErrorIs, verifier.ErrMalformedKey)
}

func TestVerify(t *testing.T) {
	c := qt.New(t)
	prover, err := verifiertest.Shared()
	c.Assert(err, qt.IsNil)
	vk, err := prover.VerifyingKey()
	c.Assert(err, qt.IsNil)

	v, err := verifier.New(metadb.NewTest(t), governance.StaticAuth{Admin: admin}, nil)
	c.Assert(err, qt.IsNil)

	tx := testTx(2, 3)

	// no key registered for the shape yet
	_, err = v.Verify(tx)
	c.Assert(err, qt.ErrorIs, verifier.ErrKeyNotSet)

	c.Assert(v.SetVerificationKey(admin, 2, 3, vk), qt.IsNil)
	c.Assert(prover.ProveTransaction(tx), qt.IsNil)

	ok, err := v.Verify(tx)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// changing any public value after proving must fail verification
	tx.Nullifiers[0] = types.NewBigInt(util.RandomFieldElement())
	ok, err = v.Verify(tx)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestVerifyMalformedProof(t *testing.T) {
	c := qt.New(t)
	prover, err := verifiertest.Shared()
	c.Assert(err, qt.IsNil)
	vk, err := prover.VerifyingKey()
	c.Assert(err, qt.IsNil)

	v, err := verifier.New(metadb.NewTest(t), governance.StaticAuth{Admin: admin}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(v.SetVerificationKey(admin, 1, 1, vk), qt.IsNil)

	tx := testTx(1, 1)
	_, err = v.Verify(tx) // zeroed proof has nil coordinates
	c.Assert(err, qt.ErrorIs, verifier.ErrMalformedProof)

	c.Assert(prover.ProveTransaction(tx), qt.IsNil)
	tx.Proof.A.X = types.BigIntFromUint64(12345) // off curve
	_, err = v.Verify(tx)
	c.Assert(err, qt.ErrorIs, verifier.ErrMalformedProof)

	// a coordinate shifted by the base field modulus reduces to a valid
	// point, but the encoding is non-canonical and must be rejected
	c.Assert(prover.ProveTransaction(tx), qt.IsNil)
	shifted := new(big.Int).Add(tx.Proof.A.X.MathBigInt(), fp.Modulus())
	tx.Proof.A.X = types.NewBigInt(shifted)
	_, err = v.Verify(tx)
	c.Assert(err, qt.ErrorIs, verifier.ErrMalformedProof)

	c.Assert(prover.ProveTransaction(tx), qt.IsNil)
	tx.Proof.B.Y[0] = types.NewBigInt(new(big.Int).Neg(tx.Proof.B.Y[0].MathBigInt()))
	_, err = v.Verify(tx)
	c.Assert(err, qt.ErrorIs, verifier.ErrMalformedProof)
}
