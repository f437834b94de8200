package processor_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/shieldpool/shieldpool/commitment"
	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/merkletree"
	"github.com/shieldpool/shieldpool/nullifiers"
	"github.com/shieldpool/shieldpool/processor"
	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/util"
)

// unshieldTx builds a provable transaction whose final commitment opens to
// an unshield of value for the holder encoded in npk.
func (e *env) unshieldTx(c *qt.C, value uint64, npk *big.Int, unshieldType types.UnshieldType) types.Transaction {
	pre := types.CommitmentPreimage{
		NPK:   types.NewBigInt(npk),
		Token: testToken,
		Value: types.BigIntFromUint64(value),
	}
	hash, err := commitment.HashPreimage(pre)
	c.Assert(err, qt.IsNil)

	tx := types.Transaction{
		MerkleRoot: types.NewBigInt(e.tree.Root()),
		Nullifiers: []*types.BigInt{types.NewBigInt(util.RandomFieldElement())},
		Commitments: []*types.BigInt{
			types.NewBigInt(util.RandomFieldElement()),
			types.NewBigInt(hash),
		},
		BoundParams: types.BoundParams{
			TreeNumber:   e.tree.TreeNumber(),
			UnshieldType: unshieldType,
			ChainID:      types.BigIntFromUint64(1),
			Ciphertexts:  make([]types.CommitmentCiphertext, 1),
		},
		UnshieldPreimage: pre,
	}
	c.Assert(e.prover.ProveTransaction(&tx), qt.IsNil)
	return tx
}

func TestTransact(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)
	call := processor.Call{Caller: alice}

	tx := e.shieldedTx(c, 1, 1)
	rootBefore := e.tree.Root()
	c.Assert(e.proc.Transact(call, []types.Transaction{tx}), qt.IsNil)

	spent, err := e.nulls.IsSpent(0, tx.Nullifiers[0].MathBigInt())
	c.Assert(err, qt.IsNil)
	c.Assert(spent, qt.IsTrue)
	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(1))
	c.Assert(e.tree.Root().Cmp(rootBefore), qt.Not(qt.Equals), 0)

	// the new root joins the history immediately
	historical, err := e.tree.IsRootHistorical(0, e.tree.Root())
	c.Assert(err, qt.IsNil)
	c.Assert(historical, qt.IsTrue)

	entries := e.sink.Since(0)
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].Event, qt.Equals, "CommitmentBatch")
	batch := entries[0].Data.(events.CommitmentBatch)
	c.Assert(batch.Hashes, qt.HasLen, 1)
	c.Assert(batch.Hashes[0].Equal(tx.Commitments[0]), qt.IsTrue)
	c.Assert(batch.Ciphertexts, qt.HasLen, 1)
	c.Assert(entries[1].Event, qt.Equals, "Nullifiers")
}

func TestTransactEmptyBatch(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)
	c.Assert(e.proc.Transact(processor.Call{Caller: alice}, nil), qt.IsNil)
	c.Assert(e.sink.Len(), qt.Equals, 0)
}

func TestTransactMultiple(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)

	// both transactions prove against the same pre-batch root
	tx1 := e.shieldedTx(c, 1, 1)
	tx2 := e.shieldedTx(c, 2, 3)
	c.Assert(e.proc.Transact(processor.Call{Caller: alice}, []types.Transaction{tx1, tx2}), qt.IsNil)

	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(4))
	entries := e.sink.Since(0)
	c.Assert(entries, qt.HasLen, 3)
	batch := entries[0].Data.(events.CommitmentBatch)
	c.Assert(batch.Hashes, qt.HasLen, 4)
	c.Assert(batch.Ciphertexts, qt.HasLen, 4)
	c.Assert(entries[1].Event, qt.Equals, "Nullifiers")
	c.Assert(entries[2].Event, qt.Equals, "Nullifiers")
}

func TestTransactRejections(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)
	call := processor.Call{Caller: alice}

	// adapt-bound transaction submitted by the wrong caller
	tx := e.shieldedTx(c, 1, 1)
	tx.BoundParams.AdaptContract = carol
	err := e.proc.Transact(call, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, processor.ErrAdaptMismatch)

	tx = e.shieldedTx(c, 1, 1)
	tx.BoundParams.UnshieldType = types.UnshieldType(9)
	c.Assert(e.proc.Transact(call, []types.Transaction{tx}), qt.IsNotNil)

	tx = e.shieldedTx(c, 1, 1)
	tx.BoundParams.Ciphertexts = nil
	err = e.proc.Transact(call, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, processor.ErrCiphertextCount)

	tx = e.shieldedTx(c, 1, 1)
	tx.MerkleRoot = nil
	c.Assert(e.proc.Transact(call, []types.Transaction{tx}), qt.IsNotNil)

	tx = e.shieldedTx(c, 1, 1)
	tx.MerkleRoot = types.NewBigInt(util.RandomFieldElement())
	err = e.proc.Transact(call, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, processor.ErrInvalidMerkleRoot)

	// tampering with a commitment after proving invalidates the proof
	tx = e.shieldedTx(c, 1, 1)
	tx.Commitments[0] = types.NewBigInt(util.RandomFieldElement())
	err = e.proc.Transact(call, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, processor.ErrProofInvalid)

	// none of the rejected transactions left a trace
	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(0))
	c.Assert(e.sink.Len(), qt.Equals, 0)
}

func TestTransactDoubleSpend(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)
	call := processor.Call{Caller: alice}

	tx := e.shieldedTx(c, 1, 1)
	c.Assert(e.proc.Transact(call, []types.Transaction{tx}), qt.IsNil)

	// the root named by the transaction is still historical and the proof
	// still verifies; only the consumed nullifier stops the replay
	err := e.proc.Transact(call, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, nullifiers.ErrDoubleSpend)
	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(1))
}

func TestTransactAtomicity(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)

	good := e.shieldedTx(c, 1, 1)
	bad := e.shieldedTx(c, 1, 1)
	bad.Commitments[0] = types.NewBigInt(util.RandomFieldElement())

	err := e.proc.Transact(processor.Call{Caller: alice}, []types.Transaction{good, bad})
	c.Assert(err, qt.ErrorIs, processor.ErrProofInvalid)

	// the valid transaction rolled back with the batch
	spent, err := e.nulls.IsSpent(0, good.Nullifiers[0].MathBigInt())
	c.Assert(err, qt.IsNil)
	c.Assert(spent, qt.IsFalse)
	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(0))
	c.Assert(e.sink.Len(), qt.Equals, 0)
}

func TestUnshield(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 25)

	npk := new(big.Int).SetBytes(bob.Bytes())
	tx := e.unshieldTx(c, 10000, npk, types.UnshieldNormal)
	c.Assert(e.proc.Transact(processor.Call{Caller: alice}, []types.Transaction{tx}), qt.IsNil)

	c.Assert(e.balance(c, bob), qt.Equals, int64(9975))
	c.Assert(e.balance(c, feeCollector), qt.Equals, int64(25))

	// the unshield commitment is not inserted
	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(1))

	entries := e.sink.Since(0)
	c.Assert(entries, qt.HasLen, 3)
	c.Assert(entries[0].Event, qt.Equals, "CommitmentBatch")
	c.Assert(entries[1].Event, qt.Equals, "Nullifiers")
	c.Assert(entries[2].Event, qt.Equals, "Unshield")
	unshield := entries[2].Data.(events.Unshield)
	c.Assert(unshield.To, qt.Equals, bob)
	c.Assert(unshield.Base.String(), qt.Equals, "9975")
	c.Assert(unshield.Fee.String(), qt.Equals, "25")
}

func TestUnshieldBindingMismatch(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)

	npk := new(big.Int).SetBytes(bob.Bytes())
	tx := e.unshieldTx(c, 10000, npk, types.UnshieldNormal)
	tx.UnshieldPreimage.Value = types.BigIntFromUint64(20000)
	c.Assert(e.prover.ProveTransaction(&tx), qt.IsNil)

	err := e.proc.Transact(processor.Call{Caller: alice}, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, processor.ErrUnshieldBinding)
	c.Assert(e.balance(c, bob), qt.Equals, int64(0))
}

func TestUnshieldOverrideOutput(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)
	npk := new(big.Int).SetBytes(bob.Bytes())

	// only the encoded holder may redirect
	tx := e.unshieldTx(c, 10000, npk, types.UnshieldRedirect)
	tx.OverrideOutput = carol
	err := e.proc.Transact(processor.Call{Caller: alice}, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, processor.ErrOverrideOutput)

	// and only on a transaction built for redirection
	tx = e.unshieldTx(c, 10000, npk, types.UnshieldNormal)
	tx.OverrideOutput = carol
	err = e.proc.Transact(processor.Call{Caller: bob}, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, processor.ErrOverrideOutput)
	c.Assert(e.balance(c, carol), qt.Equals, int64(0))

	tx = e.unshieldTx(c, 10000, npk, types.UnshieldRedirect)
	tx.OverrideOutput = carol
	c.Assert(e.proc.Transact(processor.Call{Caller: bob}, []types.Transaction{tx}), qt.IsNil)
	c.Assert(e.balance(c, carol), qt.Equals, int64(10000))
	c.Assert(e.balance(c, bob), qt.Equals, int64(0))
}

func TestTransactAbortReversesUnshield(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 25)
	npk := new(big.Int).SetBytes(bob.Bytes())

	good := e.unshieldTx(c, 10000, npk, types.UnshieldNormal)
	bad := e.shieldedTx(c, 1, 1)
	bad.Commitments[0] = types.NewBigInt(util.RandomFieldElement())

	err := e.proc.Transact(processor.Call{Caller: alice}, []types.Transaction{good, bad})
	c.Assert(err, qt.ErrorIs, processor.ErrProofInvalid)

	// the unshield transfers issued for the first transaction came back
	c.Assert(e.balance(c, bob), qt.Equals, int64(0))
	c.Assert(e.balance(c, feeCollector), qt.Equals, int64(0))
	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(0))
}

func TestTransactRollover(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 2, 0, 0) // capacity 4

	e.vault.Mint(alice, testToken, big.NewInt(300))
	preimages, cts := shieldRequest(100, 100, 100)
	c.Assert(e.proc.Shield(processor.Call{Caller: alice}, preimages, cts), qt.IsNil)
	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(3))

	// two commitments do not fit in the last slot of tree 0: the whole
	// batch lands in tree 1 at position 0
	tx := e.shieldedTx(c, 1, 2)
	c.Assert(e.proc.Transact(processor.Call{Caller: alice}, []types.Transaction{tx}), qt.IsNil)

	c.Assert(e.tree.TreeNumber(), qt.Equals, uint32(1))
	c.Assert(e.tree.NextLeafIndex(), qt.Equals, uint64(2))

	entries := e.sink.Since(1) // skip the Shield event
	batch := entries[0].Data.(events.CommitmentBatch)
	c.Assert(batch.TreeNumber, qt.Equals, uint32(1))
	c.Assert(batch.StartPosition, qt.Equals, uint64(0))
}

// TestEventReplayDeterminism rebuilds a tree from the emitted event log
// alone and checks it converges on the authoritative root, which is what
// off-chain wallets rely on.
func TestEventReplayDeterminism(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)
	call := processor.Call{Caller: alice}

	e.vault.Mint(alice, testToken, big.NewInt(500))
	preimages, cts := shieldRequest(200, 300)
	c.Assert(e.proc.Shield(call, preimages, cts), qt.IsNil)
	c.Assert(e.proc.Transact(call, []types.Transaction{e.shieldedTx(c, 1, 2)}), qt.IsNil)
	c.Assert(e.proc.Transact(call, []types.Transaction{e.shieldedTx(c, 2, 3)}), qt.IsNil)

	replica, err := merkletree.New(merkletree.Config{Database: metadb.NewTest(t), Depth: 8})
	c.Assert(err, qt.IsNil)
	for _, entry := range e.sink.Since(0) {
		var leaves []*big.Int
		switch ev := entry.Data.(type) {
		case events.Shield:
			for _, pre := range ev.Preimages {
				leaf, err := commitment.HashPreimage(pre)
				c.Assert(err, qt.IsNil)
				leaves = append(leaves, leaf)
			}
		case events.CommitmentBatch:
			for _, h := range ev.Hashes {
				leaves = append(leaves, h.MathBigInt())
			}
		default:
			continue
		}
		_, _, err := replica.Insert(leaves)
		c.Assert(err, qt.IsNil)
	}
	c.Assert(replica.Root().Cmp(e.tree.Root()), qt.Equals, 0)
	c.Assert(replica.NextLeafIndex(), qt.Equals, e.tree.NextLeafIndex())
}

func TestTransactAdaptBound(t *testing.T) {
	c := qt.New(t)
	e := newEnv(t, 8, 0, 0)
	adapt := common.HexToAddress("0x00000000000000000000000000000000000ada01")

	tx := e.shieldedTx(c, 1, 1)
	tx.BoundParams.AdaptContract = adapt
	c.Assert(e.prover.ProveTransaction(&tx), qt.IsNil)

	// accepted only when submitted by the bound adapt contract
	err := e.proc.Transact(processor.Call{Caller: alice}, []types.Transaction{tx})
	c.Assert(err, qt.ErrorIs, processor.ErrAdaptMismatch)
	c.Assert(e.proc.Transact(processor.Call{Caller: adapt}, []types.Transaction{tx}), qt.IsNil)
}
