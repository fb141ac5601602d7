package events

import (
	"time"

	"github.com/nailsalon/admin-gate/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccessChecked   EventType = "access_checked"
	EventAddressEnrolled EventType = "address_enrolled"
	EventStaffDeleted    EventType = "staff_deleted"
)

// Event represents a domain event emitted by the gate and the proxy.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Address   string      `json:"address"`
	Role      domain.Role `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccessCheckedPayload payload.
type AccessCheckedPayload struct {
	Result    domain.AccessResult `json:"result"`
	Path      string              `json:"path"`
	UserAgent string              `json:"user_agent,omitempty"`
}

// AddressEnrolledPayload payload.
type AddressEnrolledPayload struct {
	ManagerName string `json:"manager_name"`
	Linked      bool   `json:"linked"`
}

// StaffDeletedPayload payload.
type StaffDeletedPayload struct {
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
}
