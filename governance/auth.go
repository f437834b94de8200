// Package governance holds the authorization boundary. The real
// governance/delegation system is an external collaborator; the core only
// asks it whether a caller may perform a given admin action.
package governance

import "github.com/ethereum/go-ethereum/common"

// Admin actions gated by governance.
const (
	ActionSetVerifyingKey = "setVerifyingKey"
	ActionEditBlocklist   = "editBlocklist"
	ActionSetFees         = "setFees"
)

// Auth answers "is this caller permitted to perform admin action X".
type Auth interface {
	Authorized(caller common.Address, action string) bool
}

// StaticAuth authorizes a single admin address for every action. It is the
// stand-in used by tests and single-operator deployments.
type StaticAuth struct {
	Admin common.Address
}

func (a StaticAuth) Authorized(caller common.Address, _ string) bool {
	return caller == a.Admin
}
