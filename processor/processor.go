// Package processor orchestrates the shielded pool: shield (deposit),
// transact (private spend) and unshield (withdraw). It drives the tree
// manager, nullifier set, verifier and blocklist in a fixed order and
// emits the canonical event log. Every call is atomic: state mutations
// are staged in a single database transaction and committed only when the
// whole batch validates.
package processor

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/log"

	"github.com/shieldpool/shieldpool/blocklist"
	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/governance"
	"github.com/shieldpool/shieldpool/merkletree"
	"github.com/shieldpool/shieldpool/nullifiers"
	"github.com/shieldpool/shieldpool/tokens"
	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/verifier"
)

var (
	// ErrReentrancy is returned when a state-mutating entry point is
	// invoked while another one is in progress.
	ErrReentrancy = errors.New("reentrant call rejected")
	// ErrAdaptMismatch is returned when a transaction bound to an adapt
	// contract is submitted by a different caller.
	ErrAdaptMismatch = errors.New("adapt contract mismatch")
	// ErrInvalidMerkleRoot is returned when a merkle root was never a
	// head root of the named tree.
	ErrInvalidMerkleRoot = errors.New("unknown merkle root")
	// ErrCiphertextCount is returned when the ciphertext list does not
	// match the commitment count for the transaction's unshield type.
	ErrCiphertextCount = errors.New("ciphertext count mismatch")
	// ErrProofInvalid is returned when the pairing check fails.
	ErrProofInvalid = errors.New("proof verification failed")
	// ErrUnshieldBinding is returned when the unshield preimage does not
	// hash to the transaction's final commitment.
	ErrUnshieldBinding = errors.New("unshield preimage does not match final commitment")
	// ErrOverrideOutput is returned on misuse of the override destination.
	ErrOverrideOutput = errors.New("override output not permitted")
	// ErrZeroValue is returned when a shield request carries no value.
	ErrZeroValue = errors.New("shield of zero value")
	// ErrTokenBlocked is returned when shielding a blocklisted token.
	ErrTokenBlocked = errors.New("token is blocklisted")
	// ErrLengthMismatch is returned when preimage and ciphertext lists differ.
	ErrLengthMismatch = errors.New("preimage and ciphertext count mismatch")
	// ErrOutOfRange is returned for out-of-field or over-limit values.
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnauthorized is returned for non-governance fee changes.
	ErrUnauthorized = errors.New("caller not authorized")
)

// Call identifies the immediate caller of an entry point. It stands in
// for the host environment's message sender.
type Call struct {
	Caller common.Address
}

// Config wires a Processor. All fields except Sink are required.
type Config struct {
	Database     db.Database
	Tree         *merkletree.Manager
	Nullifiers   *nullifiers.Set
	Verifier     *verifier.Verifier
	Blocklist    *blocklist.Blocklist
	Vault        tokens.Vault
	Auth         governance.Auth
	Sink         events.Sink
	FeeCollector common.Address
	// Fees in basis points out of 10000, both inclusive-mode.
	ShieldFeeBP   uint64
	UnshieldFeeBP uint64
}

// Processor is the transaction-processing engine.
type Processor struct {
	db           db.Database
	tree         *merkletree.Manager
	nullifiers   *nullifiers.Set
	verifier     *verifier.Verifier
	blocklist    *blocklist.Blocklist
	vault        tokens.Vault
	auth         governance.Auth
	sink         events.Sink
	feeCollector common.Address

	// mtx serializes the state-mutating entry points; the fee fields are
	// read and written under it. busy is armed while a call is in flight
	// so a token callback re-entering on the same goroutine fails fast
	// instead of deadlocking on mtx.
	mtx           sync.Mutex
	busy          atomic.Bool
	shieldFeeBP   uint64
	unshieldFeeBP uint64
}

// New creates a Processor.
func New(cfg Config) (*Processor, error) {
	if cfg.Database == nil || cfg.Tree == nil || cfg.Nullifiers == nil ||
		cfg.Verifier == nil || cfg.Blocklist == nil || cfg.Vault == nil || cfg.Auth == nil {
		return nil, fmt.Errorf("missing processor component")
	}
	if cfg.FeeCollector == (common.Address{}) {
		return nil, fmt.Errorf("missing fee collector address")
	}
	if cfg.ShieldFeeBP >= types.BasisPoints || cfg.UnshieldFeeBP >= types.BasisPoints {
		return nil, fmt.Errorf("fee must be below %d basis points", types.BasisPoints)
	}
	sink := cfg.Sink
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Processor{
		db:            cfg.Database,
		tree:          cfg.Tree,
		nullifiers:    cfg.Nullifiers,
		verifier:      cfg.Verifier,
		blocklist:     cfg.Blocklist,
		vault:         cfg.Vault,
		auth:          cfg.Auth,
		sink:          sink,
		feeCollector:  cfg.FeeCollector,
		shieldFeeBP:   cfg.ShieldFeeBP,
		unshieldFeeBP: cfg.UnshieldFeeBP,
	}, nil
}

// SetFees replaces the fee rates. Governance-gated.
func (p *Processor) SetFees(call Call, shieldFeeBP, unshieldFeeBP uint64) error {
	if !p.auth.Authorized(call.Caller, governance.ActionSetFees) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, call.Caller)
	}
	if shieldFeeBP >= types.BasisPoints || unshieldFeeBP >= types.BasisPoints {
		return fmt.Errorf("fee must be below %d basis points", types.BasisPoints)
	}
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()
	p.shieldFeeBP = shieldFeeBP
	p.unshieldFeeBP = unshieldFeeBP
	log.Infow("fees updated", "shieldBP", shieldFeeBP, "unshieldBP", unshieldFeeBP)
	return nil
}

// Fees returns the current (shield, unshield) fee rates in basis points.
func (p *Processor) Fees() (shieldFeeBP, unshieldFeeBP uint64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.shieldFeeBP, p.unshieldFeeBP
}

// enter guards a state-mutating entry point. The busy check must happen
// before taking mtx: a re-entrant callback runs on the goroutine that
// already holds the lock. A concurrent caller that observes the flag is
// rejected the same way rather than queued.
func (p *Processor) enter() error {
	if p.busy.Load() {
		return ErrReentrancy
	}
	p.mtx.Lock()
	p.busy.Store(true)
	return nil
}

func (p *Processor) exit() {
	p.busy.Store(false)
	p.mtx.Unlock()
}

// transferJournal records executed token transfers so an aborted batch can
// undo them. Reversal is best effort: a collaborator that refuses the
// opposite transfer only gets logged, state-side atomicity is unaffected.
type transferJournal struct {
	vault   tokens.Vault
	entries []journalEntry
}

type journalEntry struct {
	pulled bool
	party  common.Address
	token  types.TokenData
	value  *big.Int
}

func (j *transferJournal) pullFrom(holder common.Address, token types.TokenData, value *big.Int) error {
	if err := j.vault.PullFrom(holder, token, value); err != nil {
		return err
	}
	j.entries = append(j.entries, journalEntry{pulled: true, party: holder, token: token, value: value})
	return nil
}

func (j *transferJournal) pushTo(recipient common.Address, token types.TokenData, value *big.Int) error {
	if err := j.vault.PushTo(recipient, token, value); err != nil {
		return err
	}
	j.entries = append(j.entries, journalEntry{party: recipient, token: token, value: value})
	return nil
}

func (j *transferJournal) reverse() {
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		var err error
		if e.pulled {
			err = j.vault.PushTo(e.party, e.token, e.value)
		} else {
			err = j.vault.PullFrom(e.party, e.token, e.value)
		}
		if err != nil {
			log.Errorw(err, "cannot reverse token transfer on aborted batch")
		}
	}
	j.entries = nil
}
