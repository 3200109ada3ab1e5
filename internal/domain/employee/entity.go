package employee

import "time"

// Employee is the slice of the employee directory the attendance engine
// needs to route approvals and filter by organisation unit.
type Employee struct {
	ID               string
	UserID           *string
	EmployeeCode     string
	FullName         string
	ManagerID        *string
	DepartmentID     *string
	PositionID       *string
	IsHRReviewer     bool
	EmploymentStatus EmploymentStatus
	HireDate         time.Time
}

type EmploymentStatus string

const (
	EmploymentStatusActive   EmploymentStatus = "active"
	EmploymentStatusResigned EmploymentStatus = "resigned"
)

// NotificationTarget is the id notifications are addressed to: the login
// account when the employee has one, otherwise the employee id itself.
func (e Employee) NotificationTarget() string {
	if e.UserID != nil && *e.UserID != "" {
		return *e.UserID
	}
	return e.ID
}
