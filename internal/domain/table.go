package domain

// Table names a governed relation behind the proxy.
type Table string

const (
	TableAppSettings            Table = "app_settings"
	TableAllowlist              Table = "admin_allowed_ips"
	TableAccessLogs             Table = "admin_access_logs"
	TableTreatments             Table = "treatments"
	TableBusinessDays           Table = "business_days"
	TableBusinessHoursOverrides Table = "business_hours_overrides"
	TableCustomerActionCounters Table = "customer_action_counters"
	TableReservations           Table = "reservations"
	TableStaff                  Table = "staff"
)

// SoftDeleteColumn marks a row deleted on soft-delete tables.
const SoftDeleteColumn = "deleted_at"

// Operation is one of the proxy's command verbs.
type Operation string

const (
	OperationSelect Operation = "select"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationRPC    Operation = "rpc"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OperationSelect, OperationInsert, OperationUpdate, OperationDelete, OperationRPC:
		return true
	}
	return false
}
