package employee

import "context"

// EmployeeRepository is the read side of the employee-management subsystem.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string, companyID string) (Employee, error)
	GetActiveByCompanyID(ctx context.Context, companyID string) ([]Employee, error)
	GetByIDs(ctx context.Context, companyID string, ids []string) ([]Employee, error)
}
