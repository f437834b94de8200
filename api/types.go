package api

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shieldpool/shieldpool/types"
)

// TransactRequest is the body of POST /transact. Caller identifies the
// submitting address; in a hosted deployment it would come from the host
// environment instead of the payload.
type TransactRequest struct {
	Caller       common.Address      `json:"caller"`
	Transactions []types.Transaction `json:"transactions"`
}

// ShieldRequest is the body of POST /shield.
type ShieldRequest struct {
	Caller      common.Address               `json:"caller"`
	Preimages   []types.CommitmentPreimage   `json:"preimages"`
	Ciphertexts []types.CommitmentCiphertext `json:"ciphertexts"`
}

// SetKeyRequest is the body of POST /keys. Key is the registry encoding
// of the verifying key (uncompressed points). The governance caller is
// not part of the body: it travels in the GovernanceCallerHeader.
type SetKeyRequest struct {
	NullifierCount  int            `json:"nullifierCount"`
	CommitmentCount int            `json:"commitmentCount"`
	Key             types.HexBytes `json:"key"`
}

// TreeStatus is the response of GET /tree.
type TreeStatus struct {
	TreeNumber    uint32        `json:"treeNumber"`
	NextLeafIndex uint64        `json:"nextLeafIndex"`
	Root          *types.BigInt `json:"root"`
}

// RootStatus is the response of GET /tree/{treeNumber}/roots/{root}.
type RootStatus struct {
	TreeNumber uint32        `json:"treeNumber"`
	Root       *types.BigInt `json:"root"`
	Historical bool          `json:"historical"`
}

// EventEntry is the client-side decoding of an event log entry from
// GET /events. Data is left raw since its shape depends on the event.
type EventEntry struct {
	Seq   uint64          `json:"seq"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NullifierStatus is the response of GET /nullifiers/{treeNumber}/{nullifier}.
type NullifierStatus struct {
	TreeNumber uint32        `json:"treeNumber"`
	Nullifier  *types.BigInt `json:"nullifier"`
	Spent      bool          `json:"spent"`
}
