package checkin

// Role is the closed classification controlling authorization decisions.
type Role string

const (
	// RoleStudent can view their own QR code and attendance.
	RoleStudent Role = "student"
	// RoleTeacher can run check-in sessions for assigned classes.
	RoleTeacher Role = "teacher"
	// RoleAdmin can manage users, classes, and reports.
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// Roles is a set of required roles used by Evaluate.
type Roles []Role

// Contains reports whether r is part of the set.
func (rs Roles) Contains(r Role) bool {
	for _, candidate := range rs {
		if candidate == r {
			return true
		}
	}
	return false
}

// AllRoles returns every predefined role.
func AllRoles() Roles {
	return Roles{RoleStudent, RoleTeacher, RoleAdmin}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
