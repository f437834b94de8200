// Package blocklist keeps the set of token addresses that may not enter
// the shielded pool. Membership is governance-gated and persistent.
package blocklist

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
	"go.vocdoni.io/dvote/log"

	"github.com/shieldpool/shieldpool/governance"
)

// ErrUnauthorized is returned when the caller may not edit the blocklist.
var ErrUnauthorized = errors.New("caller not authorized to edit blocklist")

var blocklistPrefix = []byte("b/")

// Blocklist is the persistent token blocklist.
type Blocklist struct {
	db   db.Database
	auth governance.Auth
}

// New creates a Blocklist over the shared database ("b/" prefix).
func New(database db.Database, auth governance.Auth) *Blocklist {
	return &Blocklist{db: database, auth: auth}
}

// Add blocks a token address.
func (b *Blocklist) Add(caller, token common.Address) error {
	if !b.auth.Authorized(caller, governance.ActionEditBlocklist) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(b.db.WriteTx(), blocklistPrefix)
	defer wTx.Discard()
	if err := wTx.Set(token.Bytes(), []byte{1}); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	log.Infow("token blocklisted", "token", token.Hex(), "by", caller.Hex())
	return nil
}

// Remove unblocks a token address.
func (b *Blocklist) Remove(caller, token common.Address) error {
	if !b.auth.Authorized(caller, governance.ActionEditBlocklist) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(b.db.WriteTx(), blocklistPrefix)
	defer wTx.Discard()
	if err := wTx.Delete(token.Bytes()); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	log.Infow("token unblocked", "token", token.Hex(), "by", caller.Hex())
	return nil
}

// IsBlocked reports whether a token address is blocklisted.
func (b *Blocklist) IsBlocked(token common.Address) (bool, error) {
	reader := prefixeddb.NewPrefixedReader(b.db, blocklistPrefix)
	if _, err := reader.Get(token.Bytes()); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
