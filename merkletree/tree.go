// Package merkletree implements the commitment tree manager: an incremental
// binary Poseidon Merkle accumulator over sequentially numbered trees of
// fixed depth. A per-level frontier cache makes a batch insertion of N
// leaves cost O(depth + N), and every root ever produced is retained
// permanently so proofs generated against superseded roots keep verifying.
package merkletree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
	"go.vocdoni.io/dvote/log"

	"github.com/shieldpool/shieldpool/crypto/hash/poseidon"
	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/util"
)

var (
	// ErrLeafOutOfField is returned when a leaf is not a canonical field element.
	ErrLeafOutOfField = errors.New("leaf out of scalar field range")
	// ErrBatchTooLarge is returned when a batch exceeds a whole tree's capacity.
	ErrBatchTooLarge = errors.New("batch larger than tree capacity")
)

var (
	treePrefix = []byte("t/")
	rootPrefix = []byte("tr/")

	stateKey = []byte("s")
)

// zeroLeafSeed feeds the canonical zero value for empty leaves. Level i+1
// zeros are HashPair(zero[i], zero[i]).
const zeroLeafSeed = "shieldpool.empty.leaf"

// Config configures a Manager. Depth defaults to types.DefaultTreeDepth.
type Config struct {
	Database db.Database
	Depth    int
}

// treeState is the mutable head of the accumulator. It is copied on every
// insertion so that a failed batch never corrupts the committed head.
type treeState struct {
	number        uint32
	nextLeafIndex uint64
	frontier      []*big.Int
	root          *big.Int
}

func (s *treeState) clone() *treeState {
	return &treeState{
		number:        s.number,
		nextLeafIndex: s.nextLeafIndex,
		frontier:      append([]*big.Int{}, s.frontier...),
		root:          s.root,
	}
}

// Insertion is the staged result of InsertLeaves. The database writes are
// part of the caller's WriteTx; the in-memory head only moves once the
// caller commits the transaction and calls Apply.
type Insertion struct {
	TreeNumber    uint32
	StartPosition uint64
	Leaves        []*big.Int

	next *treeState
}

// Manager owns the commitment trees. All persistent state lives under the
// "t/" and "tr/" prefixes of the shared database. The committed head is
// guarded by mtx so status readers can run concurrently with an insertion.
type Manager struct {
	db       db.Database
	depth    int
	capacity uint64
	zeros    []*big.Int

	mtx     sync.RWMutex
	current *treeState
}

// New opens (or initializes) the tree manager on the given database.
func New(cfg Config) (*Manager, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("missing database")
	}
	depth := cfg.Depth
	if depth == 0 {
		depth = types.DefaultTreeDepth
	}
	if depth < 1 || depth > 32 {
		return nil, fmt.Errorf("unsupported tree depth %d", depth)
	}
	m := &Manager{
		db:       cfg.Database,
		depth:    depth,
		capacity: 1 << uint(depth),
	}
	var err error
	if m.zeros, err = zeroValues(depth); err != nil {
		return nil, err
	}
	if m.current, err = m.loadState(); err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			return nil, err
		}
		// first run: persist tree zero and mark its empty root historical
		m.current = m.emptyTree(0)
		wTx := m.db.WriteTx()
		defer wTx.Discard()
		if err := m.putState(wTx, m.current); err != nil {
			return nil, err
		}
		if err := m.putRoot(wTx, 0, m.current.root); err != nil {
			return nil, err
		}
		if err := wTx.Commit(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// zeroValues derives the canonical per-level empty values.
func zeroValues(depth int) ([]*big.Int, error) {
	zeros := make([]*big.Int, depth+1)
	zeros[0] = util.BigToFF(new(big.Int).SetBytes(ethcrypto.Keccak256([]byte(zeroLeafSeed))))
	for i := 0; i < depth; i++ {
		h, err := poseidon.HashPair(zeros[i], zeros[i])
		if err != nil {
			return nil, err
		}
		zeros[i+1] = h
	}
	return zeros, nil
}

func (m *Manager) emptyTree(number uint32) *treeState {
	frontier := make([]*big.Int, m.depth)
	copy(frontier, m.zeros[:m.depth])
	return &treeState{
		number:   number,
		frontier: frontier,
		root:     m.zeros[m.depth],
	}
}

// TreeNumber returns the current tree number.
func (m *Manager) TreeNumber() uint32 {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.current.number
}

// NextLeafIndex returns the position the next inserted leaf will take.
func (m *Manager) NextLeafIndex() uint64 {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.current.nextLeafIndex
}

// Root returns the current head root.
func (m *Manager) Root() *big.Int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return new(big.Int).Set(m.current.root)
}

// Depth returns the fixed tree depth.
func (m *Manager) Depth() int { return m.depth }

// InsertLeaves stages the insertion of the given leaf hashes into the
// caller's transaction and returns where they will land. If the batch does
// not fit in the current tree, the whole batch moves to a fresh tree
// numbered one higher, starting at position zero; a batch is never split
// across trees. Inserting zero leaves is a no-op.
func (m *Manager) InsertLeaves(wTx db.WriteTx, leaves []*big.Int) (*Insertion, error) {
	for i, l := range leaves {
		if !util.InField(l) {
			return nil, fmt.Errorf("%w: leaf %d", ErrLeafOutOfField, i)
		}
	}
	if uint64(len(leaves)) > m.capacity {
		return nil, fmt.Errorf("%w: %d leaves, capacity %d", ErrBatchTooLarge, len(leaves), m.capacity)
	}
	m.mtx.RLock()
	st := m.current.clone()
	m.mtx.RUnlock()
	if len(leaves) == 0 {
		return &Insertion{TreeNumber: st.number, StartPosition: st.nextLeafIndex, next: st}, nil
	}
	tTx := prefixeddb.NewPrefixedWriteTx(wTx, treePrefix)
	if st.nextLeafIndex+uint64(len(leaves)) > m.capacity {
		st = m.emptyTree(st.number + 1)
		log.Infow("commitment tree rollover", "tree", st.number, "batch", len(leaves))
		if err := m.putRoot(wTx, st.number, st.root); err != nil {
			return nil, err
		}
	}
	start := st.nextLeafIndex

	nodes := append([]*big.Int{}, leaves...)
	index := start
	for level := 0; level < m.depth; level++ {
		if index%2 == 1 {
			nodes = append([]*big.Int{st.frontier[level]}, nodes...)
			index--
		}
		// The frontier tracks the rightmost node with an even index at
		// each level, so a later batch can pair against it. Once the
		// leading prepend has run, list positions share the parity of
		// their absolute indices.
		if len(nodes)%2 == 1 {
			st.frontier[level] = nodes[len(nodes)-1]
			nodes = append(nodes, m.zeros[level])
		} else {
			st.frontier[level] = nodes[len(nodes)-2]
		}
		parents := make([]*big.Int, len(nodes)/2)
		for i := range parents {
			h, err := poseidon.HashPair(nodes[2*i], nodes[2*i+1])
			if err != nil {
				return nil, err
			}
			parents[i] = h
		}
		nodes = parents
		index >>= 1
	}
	st.root = nodes[0]
	st.nextLeafIndex = start + uint64(len(leaves))

	if err := m.putStateTx(tTx, st); err != nil {
		return nil, err
	}
	if err := m.putRoot(wTx, st.number, st.root); err != nil {
		return nil, err
	}
	return &Insertion{
		TreeNumber:    st.number,
		StartPosition: start,
		Leaves:        leaves,
		next:          st,
	}, nil
}

// Apply moves the in-memory head to the state staged by a committed
// insertion. It must be called exactly once per committed InsertLeaves.
func (m *Manager) Apply(ins *Insertion) {
	m.mtx.Lock()
	m.current = ins.next
	m.mtx.Unlock()
}

// Insert is the single-transaction form of InsertLeaves, used when the
// caller has no batch to stage around it.
func (m *Manager) Insert(leaves []*big.Int) (treeNumber uint32, startPosition uint64, err error) {
	wTx := m.db.WriteTx()
	defer wTx.Discard()
	ins, err := m.InsertLeaves(wTx, leaves)
	if err != nil {
		return 0, 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, 0, err
	}
	m.Apply(ins)
	return ins.TreeNumber, ins.StartPosition, nil
}

// IsRootHistorical reports whether root was ever the head root of the
// given tree. Roots staged in an uncommitted batch do not count.
func (m *Manager) IsRootHistorical(treeNumber uint32, root *big.Int) (bool, error) {
	reader := prefixeddb.NewPrefixedReader(m.db, rootPrefix)
	_, err := reader.Get(rootKey(treeNumber, root))
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func rootKey(treeNumber uint32, root *big.Int) []byte {
	key := make([]byte, 4, 4+32)
	binary.BigEndian.PutUint32(key, treeNumber)
	return append(key, arbo.BigIntToBytes(32, root)...)
}

func (m *Manager) putRoot(wTx db.WriteTx, treeNumber uint32, root *big.Int) error {
	rTx := prefixeddb.NewPrefixedWriteTx(wTx, rootPrefix)
	return rTx.Set(rootKey(treeNumber, root), []byte{1})
}

// putStateTx serializes the head state: tree number, next index, root and
// the frontier, one 32-byte word per level.
func (m *Manager) putStateTx(tTx db.WriteTx, st *treeState) error {
	buf := make([]byte, 12, 12+32*(m.depth+1))
	binary.BigEndian.PutUint32(buf[0:4], st.number)
	binary.BigEndian.PutUint64(buf[4:12], st.nextLeafIndex)
	buf = append(buf, arbo.BigIntToBytes(32, st.root)...)
	for _, f := range st.frontier {
		buf = append(buf, arbo.BigIntToBytes(32, f)...)
	}
	return tTx.Set(stateKey, buf)
}

func (m *Manager) putState(wTx db.WriteTx, st *treeState) error {
	return m.putStateTx(prefixeddb.NewPrefixedWriteTx(wTx, treePrefix), st)
}

func (m *Manager) loadState() (*treeState, error) {
	reader := prefixeddb.NewPrefixedReader(m.db, treePrefix)
	buf, err := reader.Get(stateKey)
	if err != nil {
		return nil, err
	}
	want := 12 + 32*(m.depth+1)
	if len(buf) != want {
		return nil, fmt.Errorf("corrupt tree state: %d bytes, want %d", len(buf), want)
	}
	st := &treeState{
		number:        binary.BigEndian.Uint32(buf[0:4]),
		nextLeafIndex: binary.BigEndian.Uint64(buf[4:12]),
		root:          arbo.BytesToBigInt(buf[12:44]),
		frontier:      make([]*big.Int, m.depth),
	}
	for i := 0; i < m.depth; i++ {
		off := 44 + 32*i
		st.frontier[i] = arbo.BytesToBigInt(buf[off : off+32])
	}
	return st, nil
}
