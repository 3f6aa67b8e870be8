package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles issued by the school platform.
type Role string

const (
	// RoleAdmin manages the school: classes, staff, fees.
	RoleAdmin Role = "admin"
	// RoleTeacher runs classes, attendance and grading.
	RoleTeacher Role = "teacher"
	// RoleStudent sees their own timetable, grades and attendance.
	RoleStudent Role = "student"
	// RoleParent follows one or more students.
	RoleParent Role = "parent"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}

// Fixed portal routes.
const (
	LoginRoute        = "/login"
	UnauthorizedRoute = "/unauthorized"
	HomeRoute         = "/"
)

// IsValid reports whether r belongs to the closed role set.
func (r Role) IsValid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// DashboardRoute returns the default landing route for the role.
func (r Role) DashboardRoute() string {
	if !r.IsValid() {
		return HomeRoute
	}
	return "/" + string(r) + "/dashboard"
}

func (r Role) String() string {
	return string(r)
}

// ParseRole normalizes s and checks it against the role set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRole, s)
	}
	return r, nil
}

// ContainsRole reports whether role is one of allowed.
func ContainsRole(allowed []Role, role Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
