package domain

import "fmt"

// Role is an account role. Only RoleAdmin and RoleUser exist.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

// ParseRole converts the stored representation of a role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid role %d", int(r))
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

// Caller is the authenticated identity on whose behalf an operation runs.
type Caller struct {
	ID       int64
	Role     Role
	Username string
}

// Authorize allows the operation only when the caller holds exactly the
// required role.
func Authorize(caller Caller, required Role) error {
	switch required {
	case RoleAdmin, RoleUser:
		if caller.Role == required {
			return nil
		}
		return ErrForbidden
	default:
		return fmt.Errorf("authorize: invalid required role %v", required)
	}
}
