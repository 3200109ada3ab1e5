package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeDirectory struct {
	db *database.DB
}

// NewEmployeeDirectory reads the employees table maintained by the HR core.
func NewEmployeeDirectory(db *database.DB) employee.Directory {
	return &employeeDirectory{db: db}
}

const employeeColumns = `
	id, user_id, employee_code, full_name, manager_id, department_id, position_id,
	is_hr_reviewer, employment_status, hire_date`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var (
		e      employee.Employee
		status string
	)
	err := row.Scan(
		&e.ID, &e.UserID, &e.EmployeeCode, &e.FullName, &e.ManagerID, &e.DepartmentID, &e.PositionID,
		&e.IsHRReviewer, &status, &e.HireDate,
	)
	if err != nil {
		return employee.Employee{}, err
	}
	e.EmploymentStatus = employee.EmploymentStatus(status)
	return e, nil
}

// ResolveEmployee implements employee.Directory.
func (d *employeeDirectory) ResolveEmployee(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, d.db)

	e, err := scanEmployee(q.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}
	return e, nil
}

// ListHRReviewers implements employee.Directory.
func (d *employeeDirectory) ListHRReviewers(ctx context.Context) ([]employee.Employee, error) {
	var c conditions
	c.raw("is_hr_reviewer")
	return d.listActive(ctx, c)
}

// ListByDepartment implements employee.Directory.
func (d *employeeDirectory) ListByDepartment(ctx context.Context, departmentID string) ([]employee.Employee, error) {
	var c conditions
	c.add("department_id = $%d", departmentID)
	return d.listActive(ctx, c)
}

func (d *employeeDirectory) listActive(ctx context.Context, c conditions) ([]employee.Employee, error) {
	q := GetQuerier(ctx, d.db)

	c.add("employment_status = $%d", string(employee.EmploymentStatusActive))
	rows, err := q.Query(ctx, `SELECT `+employeeColumns+` FROM employees `+c.where()+` ORDER BY id`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := make([]employee.Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}
	return employees, nil
}
