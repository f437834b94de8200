package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// TransactEndpoint is the endpoint for submitting a transaction batch
	TransactEndpoint = "/transact"
	// ShieldEndpoint is the endpoint for submitting shield requests
	ShieldEndpoint = "/shield"
	// TreeEndpoint is the endpoint for the current tree head
	TreeEndpoint = "/tree"
	// TreeRootEndpoint is the endpoint for checking root history
	TreeURLParam     = "treeNumber"
	RootURLParam     = "root"
	TreeRootEndpoint = "/tree/{" + TreeURLParam + "}/roots/{" + RootURLParam + "}"
	// NullifierEndpoint is the endpoint for checking spent nullifiers
	NullifierURLParam = "nullifier"
	NullifierEndpoint = "/nullifiers/{" + TreeURLParam + "}/{" + NullifierURLParam + "}"
	// KeysEndpoint is the endpoint for registering verifying keys
	KeysEndpoint = "/keys"
	// EventsEndpoint is the endpoint for the recorded canonical event log
	EventsEndpoint = "/events"

	// GovernanceCallerHeader carries the caller address of governance-gated
	// requests such as POST /keys
	GovernanceCallerHeader = "X-Governance-Caller"
)
