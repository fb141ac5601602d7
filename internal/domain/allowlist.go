package domain

import "time"

// UnknownAddress is used when no client address header is present. It never
// matches an allowlist entry.
const UnknownAddress = "unknown"

// AllowlistEntry grants a network address potential admin access. The role
// comes from the linked staff record; the fingerprint is advisory only.
type AllowlistEntry struct {
	Address           string
	DeviceFingerprint *string
	StaffID           *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Linked reports whether the entry points at a staff record.
func (e *AllowlistEntry) Linked() bool {
	return e != nil && e.StaffID != nil && *e.StaffID != ""
}

// AccessResult is the outcome recorded in an access log row.
type AccessResult string

const (
	AccessAllowed AccessResult = "allowed"
	AccessDenied  AccessResult = "denied"
)

// AccessLog records one allowlist membership check.
type AccessLog struct {
	ID        string
	CreatedAt time.Time
	IP        string
	Result    AccessResult
	Path      string
	UserAgent *string
	Note      *string
}
