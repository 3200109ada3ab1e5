package employee

import "context"

// Directory is the read-only view of the employee/org collaborator.
type Directory interface {
	ResolveEmployee(ctx context.Context, id string) (Employee, error)
	ListHRReviewers(ctx context.Context) ([]Employee, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]Employee, error)
}

// EscalationReviewer picks who receives escalated requests: preferredID when
// it resolves, otherwise the first active HR reviewer. It returns nil when the
// directory has no reviewer at all.
func EscalationReviewer(ctx context.Context, dir Directory, preferredID string) (*Employee, error) {
	if preferredID != "" {
		if e, err := dir.ResolveEmployee(ctx, preferredID); err == nil {
			return &e, nil
		}
	}
	reviewers, err := dir.ListHRReviewers(ctx)
	if err != nil {
		return nil, err
	}
	if len(reviewers) == 0 {
		return nil, nil
	}
	return &reviewers[0], nil
}
