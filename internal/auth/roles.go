package auth

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is the closed set of profile roles. Values are ordered by privilege.
type Role int

const (
	// RoleUnknown is the zero value and never authorizes anything.
	RoleUnknown Role = iota
	RoleUser
	RoleSeller
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleUser:       "USER",
	RoleSeller:     "SELLER",
	RoleAdmin:      "ADMIN",
	RoleSuperAdmin: "SUPERADMIN",
}

// roleAliases maps accepted spellings to canonical roles.
var roleAliases = map[string]Role{
	"USER":       RoleUser,
	"SELLER":     RoleSeller,
	"STAFF":      RoleSeller,
	"ADMIN":      RoleAdmin,
	"SUPERADMIN": RoleSuperAdmin,
}

// AllRoles lists the assignable roles in ascending privilege order.
func AllRoles() []Role {
	return []Role{RoleUser, RoleSeller, RoleAdmin, RoleSuperAdmin}
}

// ParseRole converts a stored or user-supplied role name into a Role.
// Matching is case-insensitive; unknown names are an error.
func ParseRole(s string) (Role, error) {
	role, ok := roleAliases[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return RoleUnknown, fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// String returns the canonical role name.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// IsElevated reports whether the role may act without an assigned tenant
// by explicitly selecting one.
func (r Role) IsElevated() bool {
	return r == RoleSuperAdmin
}

// AtLeast reports whether r is at or above min in the privilege order.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r >= min
}

// MarshalText implements encoding.TextMarshaler so roles serialize by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Value implements driver.Valuer; roles are stored by canonical name.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot store role %d", int(r))
	}
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		*r = RoleUnknown
		return nil
	default:
		return fmt.Errorf("cannot scan %T into role", src)
	}
}
