package intake

import "github.com/graindesk/wallet_topup/internal/identity"

// Decision is the initial handling of a new request.
type Decision string

// Creation decisions.
const (
	DecisionPending     Decision = "pending"
	DecisionAutoApprove Decision = "auto_approve"
)

// PrivilegedRoles may auto-approve their own requests and review everyone else's.
var PrivilegedRoles = []string{identity.RoleAdmin, identity.RolePaymaster}

// IsPrivileged reports whether any of roles is privileged.
func IsPrivileged(roles []string) bool {
	for _, r := range roles {
		for _, p := range PrivilegedRoles {
			if r == p {
				return true
			}
		}
	}
	return false
}

// DecideInitialStatus picks how a request created by a user with roles starts out.
func DecideInitialStatus(roles []string) Decision {
	if IsPrivileged(roles) {
		return DecisionAutoApprove
	}
	return DecisionPending
}
