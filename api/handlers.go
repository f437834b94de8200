package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/shieldpool/shieldpool/blocklist"
	"github.com/shieldpool/shieldpool/processor"
	"github.com/shieldpool/shieldpool/types"
	"github.com/shieldpool/shieldpool/verifier"
)

// transact handles POST /transact: an atomic batch of private transactions.
func (a *API) transact(w http.ResponseWriter, r *http.Request) {
	req := &TransactRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := a.processor.Transact(processor.Call{Caller: req.Caller}, req.Transactions); err != nil {
		ErrBatchRejected.WithErr(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// shield handles POST /shield: an atomic batch of deposits.
func (a *API) shield(w http.ResponseWriter, r *http.Request) {
	req := &ShieldRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	err := a.processor.Shield(processor.Call{Caller: req.Caller}, req.Preimages, req.Ciphertexts)
	if err != nil {
		if errors.Is(err, processor.ErrTokenBlocked) || errors.Is(err, blocklist.ErrUnauthorized) {
			ErrUnauthorizedCaller.WithErr(err).Write(w)
			return
		}
		ErrShieldRejected.WithErr(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// treeStatus handles GET /tree.
func (a *API) treeStatus(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, TreeStatus{
		TreeNumber:    a.tree.TreeNumber(),
		NextLeafIndex: a.tree.NextLeafIndex(),
		Root:          types.NewBigInt(a.tree.Root()),
	})
}

// rootStatus handles GET /tree/{treeNumber}/roots/{root}.
func (a *API) rootStatus(w http.ResponseWriter, r *http.Request) {
	treeNumber, err := strconv.ParseUint(chi.URLParam(r, TreeURLParam), 10, 32)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	root, ok := new(big.Int).SetString(chi.URLParam(r, RootURLParam), 10)
	if !ok {
		ErrMalformedParam.Withf("cannot parse root").Write(w)
		return
	}
	historical, err := a.tree.IsRootHistorical(uint32(treeNumber), root)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, RootStatus{
		TreeNumber: uint32(treeNumber),
		Root:       types.NewBigInt(root),
		Historical: historical,
	})
}

// nullifierStatus handles GET /nullifiers/{treeNumber}/{nullifier}.
func (a *API) nullifierStatus(w http.ResponseWriter, r *http.Request) {
	treeNumber, err := strconv.ParseUint(chi.URLParam(r, TreeURLParam), 10, 32)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	value, ok := new(big.Int).SetString(chi.URLParam(r, NullifierURLParam), 10)
	if !ok {
		ErrMalformedParam.Withf("cannot parse nullifier").Write(w)
		return
	}
	spent, err := a.nullifiers.IsSpent(uint32(treeNumber), value)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, NullifierStatus{
		TreeNumber: uint32(treeNumber),
		Nullifier:  types.NewBigInt(value),
		Spent:      spent,
	})
}

// setKey handles POST /keys: governance registration of a verifying key.
// The caller address comes from the governance header, not the body.
func (a *API) setKey(w http.ResponseWriter, r *http.Request) {
	callerHex := r.Header.Get(GovernanceCallerHeader)
	if !common.IsHexAddress(callerHex) {
		ErrUnauthorizedCaller.Withf("missing or invalid %s header", GovernanceCallerHeader).Write(w)
		return
	}
	req := &SetKeyRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	vk := &verifier.VerifyingKey{}
	if err := vk.Unmarshal(req.Key); err != nil {
		ErrKeyRejected.WithErr(err).Write(w)
		return
	}
	err := a.verifier.SetVerificationKey(common.HexToAddress(callerHex),
		req.NullifierCount, req.CommitmentCount, vk)
	if err != nil {
		if errors.Is(err, verifier.ErrUnauthorized) {
			ErrUnauthorizedCaller.WithErr(err).Write(w)
			return
		}
		ErrKeyRejected.WithErr(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// eventLog handles GET /events?from=N: the recorded canonical event log.
func (a *API) eventLog(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		ErrResourceNotFound.Withf("event recording disabled").Write(w)
		return
	}
	var from uint64
	if s := r.URL.Query().Get("from"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			ErrMalformedParam.WithErr(err).Write(w)
			return
		}
		from = v
	}
	httpWriteJSON(w, a.events.Since(from))
}
