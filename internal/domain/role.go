package domain

// Role is the access level a request carries after identity resolution.
// It is derived on every request and never stored.
type Role string

const (
	RoleManager      Role = "manager"
	RoleStaff        Role = "staff"
	RoleUnauthorized Role = "unauthorized"
)

// IsManager reports whether r is the manager role.
func (r Role) IsManager() bool { return r == RoleManager }

// IsAuthorized reports whether r grants any table access.
func (r Role) IsAuthorized() bool { return r == RoleManager || r == RoleStaff }

func (r Role) String() string {
	if r == "" {
		return string(RoleUnauthorized)
	}
	return string(r)
}
