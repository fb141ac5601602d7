package policy

import "github.com/nailsalon/admin-gate/internal/domain"

// Bootstrap procedure names. These are the only calls an unlinked or
// unknown address may make.
const (
	ProcVerifyManagerName = "verify_manager_name"
	ProcIsAddressAllowed  = "is_admin_ip_allowed"
	ProcTouchFingerprint  = "touch_admin_allowed_ip_fingerprint"
	ProcEnrollAddress     = "gate_add_allowed_ip"

	ProcMarkArrived = "mark_arrived_and_reset_counts"
)

var staffReadWrite = []domain.Operation{
	domain.OperationSelect,
	domain.OperationInsert,
	domain.OperationUpdate,
	domain.OperationDelete,
}

// SalonTables is the governed table set. Only reservations and staff carry
// deleted_at; every other table is hard delete only.
func SalonTables() []TableSchema {
	return []TableSchema{
		{
			Name:   domain.TableAppSettings,
			Delete: DeleteHard,
			Columns: map[string]Column{
				"id":                         col(TypeBool),
				"created_at":                 col(TypeTimestamp),
				"updated_at":                 col(TypeTimestamp),
				"reservation_deadline_hours": col(TypeInt),
				"default_open_time":          col(TypeTime),
				"default_close_time":         col(TypeTime),
				"default_lunch_enabled":      col(TypeBool),
				"default_lunch_start":        nullable(TypeTime),
				"default_lunch_end":          nullable(TypeTime),
				"admin_access_log_enabled":   col(TypeBool),
			},
		},
		{
			Name:   domain.TableAllowlist,
			Delete: DeleteHard,
			Columns: map[string]Column{
				"ip":                 col(TypeText),
				"device_fingerprint": nullable(TypeText),
				"staff_id":           nullable(TypeUUID),
				"created_at":         col(TypeTimestamp),
				"updated_at":         col(TypeTimestamp),
			},
		},
		{
			Name:   domain.TableAccessLogs,
			Delete: DeleteHard,
			Columns: map[string]Column{
				"id":         col(TypeUUID),
				"created_at": col(TypeTimestamp),
				"ip":         col(TypeText),
				"result":     enum(string(domain.AccessAllowed), string(domain.AccessDenied)),
				"path":       col(TypeText),
				"user_agent": nullable(TypeText),
				"note":       nullable(TypeText),
			},
		},
		{
			Name:   domain.TableTreatments,
			Delete: DeleteHard,
			Columns: map[string]Column{
				"id":               col(TypeUUID),
				"created_at":       col(TypeTimestamp),
				"updated_at":       col(TypeTimestamp),
				"name":             col(TypeText),
				"description":      col(TypeText),
				"duration_minutes": col(TypeInt),
				"price_yen":        col(TypeInt),
				"sort_order":       col(TypeInt),
			},
		},
		{
			Name:            domain.TableBusinessDays,
			Delete:          DeleteHard,
			StaffOperations: staffReadWrite,
			Columns: map[string]Column{
				"id":         col(TypeUUID),
				"staff_id":   nullable(TypeUUID),
				"day":        col(TypeDate),
				"status":     enum("open", "holiday", "closed"),
				"created_at": col(TypeTimestamp),
				"updated_at": col(TypeTimestamp),
			},
		},
		{
			Name:            domain.TableBusinessHoursOverrides,
			Delete:          DeleteHard,
			StaffOperations: staffReadWrite,
			Columns: map[string]Column{
				"id":            col(TypeUUID),
				"staff_id":      nullable(TypeUUID),
				"day":           col(TypeDate),
				"open_time":     col(TypeTime),
				"close_time":    col(TypeTime),
				"lunch_enabled": col(TypeBool),
				"lunch_start":   nullable(TypeTime),
				"lunch_end":     nullable(TypeTime),
				"created_at":    col(TypeTimestamp),
				"updated_at":    col(TypeTimestamp),
			},
		},
		{
			Name:   domain.TableCustomerActionCounters,
			Delete: DeleteHard,
			Columns: map[string]Column{
				"line_user_id": col(TypeText),
				"created_at":   col(TypeTimestamp),
				"updated_at":   col(TypeTimestamp),
				"reset_at":     nullable(TypeTimestamp),
				"cancel_count": col(TypeInt),
				"change_count": col(TypeInt),
			},
		},
		{
			Name:            domain.TableReservations,
			Delete:          DeleteSoft,
			StaffOperations: staffReadWrite,
			Columns: map[string]Column{
				"id":                                  col(TypeUUID),
				"created_at":                          col(TypeTimestamp),
				"updated_at":                          col(TypeTimestamp),
				"deleted_at":                          nullable(TypeTimestamp),
				"customer_name":                       col(TypeText),
				"line_user_id":                        col(TypeText),
				"line_display_name":                   nullable(TypeText),
				"treatment_id":                        nullable(TypeUUID),
				"treatment_name_snapshot":             col(TypeText),
				"treatment_duration_minutes_snapshot": col(TypeInt),
				"treatment_price_yen_snapshot":        col(TypeInt),
				"start_at":                            col(TypeTimestamp),
				"end_at":                              col(TypeTimestamp),
				"via":                                 enum("web", "phone", "admin"),
				"arrived_at":                          nullable(TypeTimestamp),
				"staff_id":                            nullable(TypeUUID),
			},
		},
		{
			Name:        domain.TableStaff,
			Delete:      DeleteSoft,
			ManagerOnly: true,
			Columns: map[string]Column{
				"id":         col(TypeUUID),
				"name":       col(TypeText),
				"role":       enum(string(domain.StaffRoleManager), string(domain.StaffRoleStaff)),
				"created_at": col(TypeTimestamp),
				"updated_at": col(TypeTimestamp),
				"deleted_at": nullable(TypeTimestamp),
			},
		},
	}
}

// SalonProcedures lists every callable remote procedure.
func SalonProcedures() []Procedure {
	return []Procedure{
		{
			Name:      ProcVerifyManagerName,
			Bootstrap: true,
			Params:    map[string]Column{"p_name": col(TypeText)},
		},
		{
			Name:      ProcIsAddressAllowed,
			Bootstrap: true,
			Params: map[string]Column{
				"p_ip":                 col(TypeText),
				"p_device_fingerprint": nullable(TypeText),
			},
		},
		{
			Name:      ProcTouchFingerprint,
			Bootstrap: true,
			Params: map[string]Column{
				"p_ip":                 col(TypeText),
				"p_device_fingerprint": nullable(TypeText),
			},
		},
		{
			Name:      ProcEnrollAddress,
			Bootstrap: true,
			Params: map[string]Column{
				"p_ip":                 col(TypeText),
				"p_manager_name":       col(TypeText),
				"p_device_fingerprint": nullable(TypeText),
			},
		},
		{
			Name:   ProcMarkArrived,
			Params: map[string]Column{"p_reservation_id": col(TypeUUID)},
		},
	}
}

// Default returns the registry for the salon schema.
func Default() *Registry {
	return NewRegistry(SalonTables(), SalonProcedures())
}
