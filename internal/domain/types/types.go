package types

// UserRole is the role carried by an authenticated identity.
type UserRole string

func (r UserRole) String() string {
	return string(r)
}

const (
	RoleUser       UserRole = "USER"
	RoleDriver     UserRole = "DRIVER"
	RoleAdmin      UserRole = "ADMIN"
	RoleSuperAdmin UserRole = "SUPERADMIN"
)

// IsAdmin reports whether the role grants admin-level access.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IsValid reports whether r is a member of the role enum.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleDriver, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Gender is a driver eligibility attribute.
type Gender string

const (
	GenderFemale Gender = "FEMALE"
	GenderMale   Gender = "MALE"
)

const (
	ActionDatabaseTransactionFailed = "database_transaction_failed"
	ActionExternalServiceFailed     = "external_service_failed"
)
