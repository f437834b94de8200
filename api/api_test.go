package api_test

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/shieldpool/shieldpool/api"
	"github.com/shieldpool/shieldpool/api/client"
	"github.com/shieldpool/shieldpool/blocklist"
	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/governance"
	"github.com/shieldpool/shieldpool/merkletree"
	"github.com/shieldpool/shieldpool/nullifiers"
	"github.com/shieldpool/shieldpool/processor"
	"github.com/shieldpool/shieldpool/tokens"
	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/util"
	"github.com/shieldpool/shieldpool/verifier"
	"github.com/shieldpool/shieldpool/verifier/verifiertest"
)

var (
	admin        = common.HexToAddress("0x000000000000000000000000000000000000ad01")
	alice        = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	feeCollector = common.HexToAddress("0x000000000000000000000000000000000000fee5")

	testToken = types.TokenData{
		TokenType:    types.Fungible,
		TokenAddress: common.HexToAddress("0x00112233445566778899aabbccddeeff00112233"),
	}
)

type testServer struct {
	tree   *merkletree.Manager
	vault  *tokens.MemoryVault
	prover *verifiertest.Prover
	client *client.HTTPclient
}

func newTestServer(t *testing.T) *testServer {
	c := qt.New(t)
	database := metadb.NewTest(t)
	auth := governance.StaticAuth{Admin: admin}
	sink := events.NewMemorySink()

	tree, err := merkletree.New(merkletree.Config{Database: database, Depth: 8})
	c.Assert(err, qt.IsNil)
	nulls := nullifiers.New(database)
	verif, err := verifier.New(database, auth, sink)
	c.Assert(err, qt.IsNil)
	vault := tokens.NewMemoryVault()

	proc, err := processor.New(processor.Config{
		Database:     database,
		Tree:         tree,
		Nullifiers:   nulls,
		Verifier:     verif,
		Blocklist:    blocklist.New(database, auth),
		Vault:        vault,
		Auth:         auth,
		Sink:         sink,
		FeeCollector: feeCollector,
	})
	c.Assert(err, qt.IsNil)

	a, err := api.New(&api.APIConfig{
		Host:       "127.0.0.1",
		Port:       0,
		Processor:  proc,
		Tree:       tree,
		Nullifiers: nulls,
		Verifier:   verif,
		Events:     sink,
	})
	c.Assert(err, qt.IsNil)

	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)

	cli, err := client.New(srv.URL)
	c.Assert(err, qt.IsNil)

	prover, err := verifiertest.Shared()
	c.Assert(err, qt.IsNil)
	return &testServer{tree: tree, vault: vault, prover: prover, client: cli}
}

func (ts *testServer) registerKey(c *qt.C, nullifierCount, commitmentCount int) {
	vk, err := ts.prover.VerifyingKey()
	c.Assert(err, qt.IsNil)
	ts.client.SetGovernanceCaller(admin)
	c.Assert(ts.client.SetVerificationKey(&api.SetKeyRequest{
		NullifierCount:  nullifierCount,
		CommitmentCount: commitmentCount,
		Key:             vk.Marshal(),
	}), qt.IsNil)
}

func TestAPITreeStatus(t *testing.T) {
	c := qt.New(t)
	ts := newTestServer(t)

	status, err := ts.client.TreeStatus()
	c.Assert(err, qt.IsNil)
	c.Assert(status.TreeNumber, qt.Equals, uint32(0))
	c.Assert(status.NextLeafIndex, qt.Equals, uint64(0))
	c.Assert(status.Root.MathBigInt().Cmp(ts.tree.Root()), qt.Equals, 0)

	rs, err := ts.client.RootStatus("0", status.Root.String())
	c.Assert(err, qt.IsNil)
	c.Assert(rs.Historical, qt.IsTrue)

	_, err = ts.client.RootStatus("0", "not-a-number")
	c.Assert(err, qt.IsNotNil)
}

func TestAPIShield(t *testing.T) {
	c := qt.New(t)
	ts := newTestServer(t)
	ts.vault.Mint(alice, testToken, big.NewInt(1000))

	req := &api.ShieldRequest{
		Caller: alice,
		Preimages: []types.CommitmentPreimage{{
			NPK:   types.NewBigInt(util.RandomFieldElement()),
			Token: testToken,
			Value: types.BigIntFromUint64(1000),
		}},
		Ciphertexts: make([]types.CommitmentCiphertext, 1),
	}
	c.Assert(ts.client.Shield(req), qt.IsNil)

	status, err := ts.client.TreeStatus()
	c.Assert(err, qt.IsNil)
	c.Assert(status.NextLeafIndex, qt.Equals, uint64(1))

	entries, err := ts.client.Events(0)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Event, qt.Equals, "Shield")

	// mismatched arities are rejected
	req.Ciphertexts = nil
	c.Assert(ts.client.Shield(req), qt.IsNotNil)
}

func TestAPITransact(t *testing.T) {
	c := qt.New(t)
	ts := newTestServer(t)
	ts.registerKey(c, 1, 1)

	tx := types.Transaction{
		MerkleRoot:  types.NewBigInt(ts.tree.Root()),
		Nullifiers:  []*types.BigInt{types.NewBigInt(util.RandomFieldElement())},
		Commitments: []*types.BigInt{types.NewBigInt(util.RandomFieldElement())},
		BoundParams: types.BoundParams{
			ChainID:     types.BigIntFromUint64(1),
			Ciphertexts: make([]types.CommitmentCiphertext, 1),
		},
	}
	c.Assert(ts.prover.ProveTransaction(&tx), qt.IsNil)

	c.Assert(ts.client.Transact(&api.TransactRequest{
		Caller:       alice,
		Transactions: []types.Transaction{tx},
	}), qt.IsNil)

	ns, err := ts.client.NullifierStatus("0", tx.Nullifiers[0].String())
	c.Assert(err, qt.IsNil)
	c.Assert(ns.Spent, qt.IsTrue)

	ns, err = ts.client.NullifierStatus("0", util.RandomFieldElement().String())
	c.Assert(err, qt.IsNil)
	c.Assert(ns.Spent, qt.IsFalse)

	// replay is rejected
	c.Assert(ts.client.Transact(&api.TransactRequest{
		Caller:       alice,
		Transactions: []types.Transaction{tx},
	}), qt.IsNotNil)
}

func TestAPISetKeyAuthorization(t *testing.T) {
	c := qt.New(t)
	ts := newTestServer(t)
	vk, err := ts.prover.VerifyingKey()
	c.Assert(err, qt.IsNil)

	// no governance header at all
	err = ts.client.SetVerificationKey(&api.SetKeyRequest{
		NullifierCount:  1,
		CommitmentCount: 1,
		Key:             vk.Marshal(),
	})
	c.Assert(err, qt.IsNotNil)

	// header present but the caller is not governance
	ts.client.SetGovernanceCaller(alice)
	err = ts.client.SetVerificationKey(&api.SetKeyRequest{
		NullifierCount:  1,
		CommitmentCount: 1,
		Key:             vk.Marshal(),
	})
	c.Assert(err, qt.IsNotNil)

	ts.client.SetGovernanceCaller(admin)
	err = ts.client.SetVerificationKey(&api.SetKeyRequest{
		NullifierCount:  1,
		CommitmentCount: 1,
		Key:             types.HexBytes{1, 2, 3},
	})
	c.Assert(err, qt.IsNotNil)
}

func TestAPIMalformedBody(t *testing.T) {
	c := qt.New(t)
	ts := newTestServer(t)

	data, status, err := ts.client.Request(client.HTTPPOST, map[string]any{"caller": 42}, nil, api.TransactEndpoint)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(string(data), qt.Contains, "malformed")
}
