// Package nullifiers tracks spent-note nullifiers per tree. The set is
// append-only on purpose: a nullifier encodes the permanent fact that a
// note has been spent, so no removal operation exists.
package nullifiers

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/shieldpool/shieldpool/util"
)

var (
	// ErrDoubleSpend is returned when a nullifier is already marked spent.
	ErrDoubleSpend = errors.New("nullifier already spent")
	// ErrOutOfField is returned when a nullifier is not a canonical field element.
	ErrOutOfField = errors.New("nullifier out of scalar field range")
)

var nullifiersPrefix = []byte("n/")

// Set is the persistent per-tree spent-nullifier set.
type Set struct {
	db db.Database
}

// New creates a Set over the shared database. All keys live under the
// "n/" prefix.
func New(database db.Database) *Set {
	return &Set{db: database}
}

func key(treeNumber uint32, nullifier *big.Int) []byte {
	k := make([]byte, 4, 4+32)
	binary.BigEndian.PutUint32(k, treeNumber)
	return append(k, arbo.BigIntToBytes(32, nullifier)...)
}

// MarkSpent marks a nullifier spent inside the caller's transaction. It
// fails with ErrDoubleSpend if the nullifier is already marked, either
// committed or staged earlier in the same transaction.
func (s *Set) MarkSpent(wTx db.WriteTx, treeNumber uint32, nullifier *big.Int) error {
	if !util.InField(nullifier) {
		return ErrOutOfField
	}
	nTx := prefixeddb.NewPrefixedWriteTx(wTx, nullifiersPrefix)
	k := key(treeNumber, nullifier)
	if _, err := nTx.Get(k); err == nil {
		return fmt.Errorf("%w: tree %d nullifier %s", ErrDoubleSpend, treeNumber, nullifier)
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	return nTx.Set(k, []byte{1})
}

// IsSpent reports whether a nullifier has been committed as spent.
func (s *Set) IsSpent(treeNumber uint32, nullifier *big.Int) (bool, error) {
	if !util.InField(nullifier) {
		return false, ErrOutOfField
	}
	reader := prefixeddb.NewPrefixedReader(s.db, nullifiersPrefix)
	if _, err := reader.Get(key(treeNumber, nullifier)); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
