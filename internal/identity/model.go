package identity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Known dashboard roles.
const (
	RoleAdmin       = "admin"
	RolePaymaster   = "paymaster"
	RoleFieldAgent  = "field_agent"
	RoleStoreKeeper = "store_keeper"
)

// User is a dashboard operator. The top-up flow reads Roles and writes only WalletBalance.
type User struct {
	ID            string
	Name          string
	Roles         []string
	WalletBalance decimal.Decimal
	CreatedAt     time.Time
}

// HasRole reports whether the user carries the role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ProvisionInput describes a user to create.
type ProvisionInput struct {
	Name  string
	Roles []string
}
