package events

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/shieldpool/shieldpool/types"
)

func TestMemorySinkOrdering(t *testing.T) {
	c := qt.New(t)
	s := NewMemorySink()
	c.Assert(s.Len(), qt.Equals, 0)

	s.Publish(CommitmentBatch{TreeNumber: 0, StartPosition: 0})
	s.Publish(Nullifiers{TreeNumber: 0, Values: []*types.BigInt{types.BigIntFromUint64(7)}})
	s.Publish(VerifyingKeyChanged{NullifierCount: 1, CommitmentCount: 2})
	c.Assert(s.Len(), qt.Equals, 3)

	entries := s.Since(0)
	c.Assert(entries, qt.HasLen, 3)
	c.Assert(entries[0].Seq, qt.Equals, uint64(0))
	c.Assert(entries[0].Event, qt.Equals, "CommitmentBatch")
	c.Assert(entries[1].Event, qt.Equals, "Nullifiers")
	c.Assert(entries[2].Event, qt.Equals, "VerifyingKeyChanged")
}

func TestMemorySinkSince(t *testing.T) {
	c := qt.New(t)
	s := NewMemorySink()
	for i := 0; i < 5; i++ {
		s.Publish(Shield{TreeNumber: 0, StartPosition: uint64(i)})
	}

	entries := s.Since(3)
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].Seq, qt.Equals, uint64(3))

	c.Assert(s.Since(5), qt.HasLen, 0)
	c.Assert(s.Since(100), qt.HasLen, 0)
}
