package enums

import "fmt"

// Role identifies the authorization role attached to a user.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleOrderManager Role = "order_manager"
	RoleCustomer     Role = "customer"
	RoleSupplier     Role = "supplier"
)

var validRoles = []Role{
	RoleAdmin,
	RoleOrderManager,
	RoleCustomer,
	RoleSupplier,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role may manage orders across customers.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleOrderManager
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
