package processor

import (
	"fmt"
	"math/big"

	"go.vocdoni.io/dvote/log"

	"github.com/shieldpool/shieldpool/commitment"
	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/util"
)

// Shield deposits value into the pool. Deposits are self-authenticating
// (the caller transfers real value in), so no proof is verified. Each
// request pulls the full value from the caller, pays the inclusive fee to
// the fee collector and inserts a commitment over the post-fee value. All
// commitments of the call are inserted with one tree call, announced by a
// single Shield event carrying the post-fee preimages. Any per-item
// failure aborts the whole call.
func (p *Processor) Shield(call Call, preimages []types.CommitmentPreimage, ciphertexts []types.CommitmentCiphertext) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()
	if len(preimages) != len(ciphertexts) {
		return fmt.Errorf("%w: %d preimages, %d ciphertexts",
			ErrLengthMismatch, len(preimages), len(ciphertexts))
	}
	if len(preimages) == 0 {
		return nil
	}

	wTx := p.db.WriteTx()
	defer wTx.Discard()
	journal := &transferJournal{vault: p.vault}
	abort := func(err error) error {
		journal.reverse()
		return err
	}

	leaves := make([]*big.Int, 0, len(preimages))
	postFee := make([]types.CommitmentPreimage, 0, len(preimages))
	for i, pre := range preimages {
		if pre.Value == nil || pre.Value.MathBigInt().Sign() == 0 {
			// callers wanting "entire balance" must resolve the concrete
			// amount first by querying the token
			return abort(fmt.Errorf("%w: request %d", ErrZeroValue, i))
		}
		value := pre.Value.MathBigInt()
		if value.Cmp(types.MaxNoteValue) > 0 {
			return abort(fmt.Errorf("%w: request %d value above 2^120-1", ErrOutOfRange, i))
		}
		if pre.NPK == nil || !util.InField(pre.NPK.MathBigInt()) {
			return abort(fmt.Errorf("%w: request %d note public key", ErrOutOfRange, i))
		}
		if !pre.Token.TokenType.Valid() {
			return abort(fmt.Errorf("request %d: unsupported token type %d", i, pre.Token.TokenType))
		}
		blocked, err := p.blocklist.IsBlocked(pre.Token.TokenAddress)
		if err != nil {
			return abort(err)
		}
		if blocked {
			return abort(fmt.Errorf("%w: request %d token %s",
				ErrTokenBlocked, i, pre.Token.TokenAddress.Hex()))
		}
		tokenField, err := commitment.TokenField(pre.Token)
		if err != nil {
			return abort(fmt.Errorf("request %d: %w", i, err))
		}

		if err := journal.pullFrom(call.Caller, pre.Token, value); err != nil {
			return abort(fmt.Errorf("request %d: %w", i, err))
		}
		base, fee := FeeInclusive(value, p.shieldFeeBP)
		if fee.Sign() > 0 {
			if err := journal.pushTo(p.feeCollector, pre.Token, fee); err != nil {
				return abort(fmt.Errorf("request %d fee transfer: %w", i, err))
			}
		}

		leaf, err := commitment.Hash(pre.NPK.MathBigInt(), tokenField, base)
		if err != nil {
			return abort(fmt.Errorf("request %d: %w", i, err))
		}
		leaves = append(leaves, leaf)
		postFee = append(postFee, types.CommitmentPreimage{
			NPK:   pre.NPK,
			Token: pre.Token,
			Value: types.NewBigInt(base),
		})
	}

	ins, err := p.tree.InsertLeaves(wTx, leaves)
	if err != nil {
		return abort(err)
	}
	if err := wTx.Commit(); err != nil {
		return abort(fmt.Errorf("cannot commit shield batch: %w", err))
	}
	p.tree.Apply(ins)

	p.sink.Publish(events.Shield{
		TreeNumber:    ins.TreeNumber,
		StartPosition: ins.StartPosition,
		Preimages:     postFee,
		Ciphertexts:   ciphertexts,
	})
	log.Infow("shield committed", "requests", len(preimages),
		"tree", ins.TreeNumber, "start", ins.StartPosition)
	return nil
}
