package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of account kinds
type Role string

// Roles
const (
	RoleCustomer   Role = "customer"
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
)

// Capability is a permission checked at operation boundaries
type Capability int

// Capabilities
const (
	CapShop Capability = iota
	CapSell
	CapManageVendors
	CapViewAnalytics
	CapUpdateOrderStatus
)

var roleCapabilities = map[Role][]Capability{
	RoleCustomer:   {CapShop},
	RoleSuperAdmin: {CapSell, CapUpdateOrderStatus},
	RoleAdmin:      {CapManageVendors, CapViewAnalytics, CapUpdateOrderStatus},
}

// ParseRole converts a stored string into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleSuperAdmin, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Can reports whether the role grants the capability
func (r Role) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// Scan implements sql.Scanner
func (r *Role) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer
func (r Role) Value() (driver.Value, error) {
	return string(r), nil
}

// Principal is the authenticated caller handed in by the auth collaborator.
// ProviderToken is the caller's credential for the object storage provider, if any.
type Principal struct {
	UserID        uuid.UUID `json:"user_id"`
	Role          Role      `json:"role"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ProviderToken string    `json:"-"`
}

// Require fails with PermissionDenied unless the principal holds the capability
func (p Principal) Require(c Capability) error {
	if p.UserID == uuid.Nil {
		return ErrUnauthenticated
	}
	if !p.Role.Can(c) {
		return NewError(KindPermissionDenied, "operation not permitted for role %s", p.Role)
	}
	return nil
}
