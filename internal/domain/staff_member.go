package domain

import "time"

// StaffRole enumerates the roles a staff record can hold.
type StaffRole string

const (
	StaffRoleManager StaffRole = "manager"
	StaffRoleStaff   StaffRole = "staff"
)

// AccessRole maps a stored staff role to the request role it grants.
func (r StaffRole) AccessRole() Role {
	switch r {
	case StaffRoleManager:
		return RoleManager
	case StaffRoleStaff:
		return RoleStaff
	default:
		return RoleUnauthorized
	}
}

// StaffMember models a salon employee. Managers can never be deleted.
type StaffMember struct {
	ID        string
	Name      string
	Role      StaffRole
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Active reports whether the record has not been soft-deleted.
func (s *StaffMember) Active() bool {
	return s != nil && s.DeletedAt == nil
}
