package processor

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/shieldpool/shieldpool/commitment"
	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/types"
)

// Transact processes a batch of private transactions atomically. Each
// transaction is validated in submission order: adapt binding, ciphertext
// arity, merkle root history, nullifier consumption, proof verification
// and unshield resolution. Commitments accumulate across the batch and
// are inserted with a single tree call at the end; any failure aborts the
// whole batch with no state change and reverses any token transfer already
// issued for an earlier unshield.
func (p *Processor) Transact(call Call, txs []types.Transaction) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()
	if len(txs) == 0 {
		return nil
	}

	wTx := p.db.WriteTx()
	defer wTx.Discard()
	journal := &transferJournal{vault: p.vault}
	abort := func(err error) error {
		journal.reverse()
		return err
	}

	var (
		leaves      []*big.Int
		ciphertexts []types.CommitmentCiphertext
		staged      []events.Event
	)
	for i := range txs {
		tx := &txs[i]
		bp := &tx.BoundParams

		// 1. adapt binding: a transaction pre-authorized for an external
		// adapt contract may only enter through that contract
		if bp.AdaptContract != (common.Address{}) && bp.AdaptContract != call.Caller {
			return abort(fmt.Errorf("%w: transaction %d bound to %s, submitted by %s",
				ErrAdaptMismatch, i, bp.AdaptContract.Hex(), call.Caller.Hex()))
		}

		// 2. structural checks
		if !bp.UnshieldType.Valid() {
			return abort(fmt.Errorf("transaction %d: unknown unshield type %d", i, bp.UnshieldType))
		}
		wantCiphertexts := len(tx.Commitments)
		if bp.UnshieldType != types.UnshieldNone {
			wantCiphertexts--
		}
		if wantCiphertexts < 0 || len(bp.Ciphertexts) != wantCiphertexts {
			return abort(fmt.Errorf("%w: transaction %d has %d ciphertexts, want %d",
				ErrCiphertextCount, i, len(bp.Ciphertexts), wantCiphertexts))
		}
		if tx.MerkleRoot == nil {
			return abort(fmt.Errorf("transaction %d: missing merkle root", i))
		}

		// 3. root must have been a head root of the named tree
		historical, err := p.tree.IsRootHistorical(bp.TreeNumber, tx.MerkleRoot.MathBigInt())
		if err != nil {
			return abort(err)
		}
		if !historical {
			return abort(fmt.Errorf("%w: transaction %d, tree %d, root %s",
				ErrInvalidMerkleRoot, i, bp.TreeNumber, tx.MerkleRoot))
		}

		// 4. consume nullifiers (staged; committed with the batch)
		for _, n := range tx.Nullifiers {
			if err := p.nullifiers.MarkSpent(wTx, bp.TreeNumber, n.MathBigInt()); err != nil {
				return abort(fmt.Errorf("transaction %d: %w", i, err))
			}
		}

		// 5. proof verification
		ok, err := p.verifier.Verify(tx)
		if err != nil {
			return abort(fmt.Errorf("transaction %d: %w", i, err))
		}
		if !ok {
			return abort(fmt.Errorf("%w: transaction %d", ErrProofInvalid, i))
		}

		// 6. unshield resolution and token transfers; validation of this
		// transaction is complete, so external calls are safe to issue now
		if bp.UnshieldType != types.UnshieldNone {
			unshieldEvent, err := p.resolveUnshield(call, i, tx, journal)
			if err != nil {
				return abort(err)
			}
			leaves = appendScalars(leaves, tx.Commitments[:len(tx.Commitments)-1])
			staged = append(staged, events.Nullifiers{TreeNumber: bp.TreeNumber, Values: tx.Nullifiers}, unshieldEvent)
		} else {
			leaves = appendScalars(leaves, tx.Commitments)
			staged = append(staged, events.Nullifiers{TreeNumber: bp.TreeNumber, Values: tx.Nullifiers})
		}
		ciphertexts = append(ciphertexts, bp.Ciphertexts...)
	}

	// single tree insertion for the whole batch
	ins, err := p.tree.InsertLeaves(wTx, leaves)
	if err != nil {
		return abort(err)
	}
	if err := wTx.Commit(); err != nil {
		return abort(fmt.Errorf("cannot commit batch: %w", err))
	}
	p.tree.Apply(ins)

	if len(leaves) > 0 {
		p.sink.Publish(events.CommitmentBatch{
			TreeNumber:    ins.TreeNumber,
			StartPosition: ins.StartPosition,
			Hashes:        wrapScalars(leaves),
			Ciphertexts:   ciphertexts,
		})
	}
	for _, ev := range staged {
		p.sink.Publish(ev)
	}
	log.Infow("transact batch committed", "transactions", len(txs),
		"leaves", len(leaves), "tree", ins.TreeNumber, "start", ins.StartPosition)
	return nil
}

// resolveUnshield binds the unshield preimage to the transaction's final
// commitment, resolves the destination and issues the split transfers.
// The final commitment is not inserted into the tree.
func (p *Processor) resolveUnshield(call Call, idx int, tx *types.Transaction, journal *transferJournal) (events.Unshield, error) {
	pre := tx.UnshieldPreimage
	hash, err := commitment.HashPreimage(pre)
	if err != nil {
		return events.Unshield{}, fmt.Errorf("transaction %d unshield preimage: %w", idx, err)
	}
	last := tx.Commitments[len(tx.Commitments)-1]
	if last == nil || hash.Cmp(last.MathBigInt()) != 0 {
		return events.Unshield{}, fmt.Errorf("%w: transaction %d, preimage hash %s, commitment %s",
			ErrUnshieldBinding, idx, hash, last)
	}

	// default destination is the address encoded in the note public key
	encoded := npkAddress(pre.NPK.MathBigInt())
	destination := encoded
	if tx.OverrideOutput != (common.Address{}) {
		// redirecting is allowed only to the encoded address itself, and
		// only when the transaction was built for redirection
		if call.Caller != encoded || tx.BoundParams.UnshieldType != types.UnshieldRedirect {
			return events.Unshield{}, fmt.Errorf("%w: transaction %d, caller %s, encoded %s, type %d",
				ErrOverrideOutput, idx, call.Caller.Hex(), encoded.Hex(), tx.BoundParams.UnshieldType)
		}
		destination = tx.OverrideOutput
	}

	base, fee := FeeInclusive(pre.Value.MathBigInt(), p.unshieldFeeBP)
	if base.Sign() > 0 {
		if err := journal.pushTo(destination, pre.Token, base); err != nil {
			return events.Unshield{}, fmt.Errorf("transaction %d unshield transfer: %w", idx, err)
		}
	}
	if fee.Sign() > 0 {
		if err := journal.pushTo(p.feeCollector, pre.Token, fee); err != nil {
			return events.Unshield{}, fmt.Errorf("transaction %d unshield fee transfer: %w", idx, err)
		}
	}
	return events.Unshield{
		To:    destination,
		Token: pre.Token,
		Base:  types.NewBigInt(base),
		Fee:   types.NewBigInt(fee),
	}, nil
}

// npkAddress extracts the destination address encoded in a note public
// key: the low 20 bytes of its 32-byte representation.
func npkAddress(npk *big.Int) common.Address {
	word := make([]byte, 32)
	npk.FillBytes(word)
	return common.BytesToAddress(word[12:])
}

func appendScalars(dst []*big.Int, src []*types.BigInt) []*big.Int {
	for _, v := range src {
		if v == nil {
			dst = append(dst, big.NewInt(0))
			continue
		}
		dst = append(dst, v.MathBigInt())
	}
	return dst
}

func wrapScalars(src []*big.Int) []*types.BigInt {
	out := make([]*types.BigInt, len(src))
	for i, v := range src {
		out[i] = types.NewBigInt(v)
	}
	return out
}
