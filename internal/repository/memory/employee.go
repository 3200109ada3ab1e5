package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/employee"
)

type EmployeeDirectory struct {
	mu        sync.RWMutex
	employees map[string]employee.Employee
}

func NewEmployeeDirectory(employees ...employee.Employee) *EmployeeDirectory {
	d := &EmployeeDirectory{employees: make(map[string]employee.Employee)}
	for _, e := range employees {
		d.Put(e)
	}
	return d
}

func (d *EmployeeDirectory) Put(e employee.Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ID] = e
}

func (d *EmployeeDirectory) ResolveEmployee(ctx context.Context, id string) (employee.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (d *EmployeeDirectory) ListHRReviewers(ctx context.Context) ([]employee.Employee, error) {
	return d.list(func(e employee.Employee) bool { return e.IsHRReviewer }), nil
}

func (d *EmployeeDirectory) ListByDepartment(ctx context.Context, departmentID string) ([]employee.Employee, error) {
	return d.list(func(e employee.Employee) bool {
		return e.DepartmentID != nil && *e.DepartmentID == departmentID
	}), nil
}

func (d *EmployeeDirectory) list(keep func(employee.Employee) bool) []employee.Employee {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]employee.Employee, 0)
	for _, e := range d.employees {
		if e.EmploymentStatus == employee.EmploymentStatusActive && keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
