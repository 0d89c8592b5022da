package payroll

import "context"

// PayrollRepository defines data access methods for payroll.
// All methods include companyID parameter to prevent cross-company data access attacks.
type PayrollRepository interface {
	// Settings
	GetSettings(ctx context.Context, companyID string) (PayrollSettings, error)
	UpsertSettings(ctx context.Context, settings PayrollSettings) (PayrollSettings, error)
	DeleteSettings(ctx context.Context, companyID string) error

	// Payroll Records
	CreatePayrollRecord(ctx context.Context, record PayrollRecord) (PayrollRecord, error)
	GetPayrollRecordByID(ctx context.Context, id string, companyID string) (PayrollRecord, error)
	GetPayrollRecordsByIDs(ctx context.Context, ids []string, companyID string) ([]PayrollRecord, error)
	GetPayrollRecordsByEmployeePeriod(ctx context.Context, employeeIDs []string, month, year int, companyID string) ([]PayrollRecord, error)
	DeletePeriodRecords(ctx context.Context, employeeIDs []string, month, year int, companyID string) (int64, error)
	ListPayrollRecords(ctx context.Context, companyID string, filter PayrollFilter) ([]PayrollRecord, int64, error)

	// Status transitions, each guarded by the expected current status
	ApprovePayrollRecords(ctx context.Context, ids []string, approvedBy string, companyID string) (int64, error)
	MarkPayrollRecordPaid(ctx context.Context, id string, method PaymentMethod, reference string, companyID string) error
	MarkPayrollRecordFailed(ctx context.Context, id string, method *PaymentMethod, reason string, companyID string) error

	// Aggregations
	GetPayrollSummary(ctx context.Context, companyID string, month, year int) (PayrollSummaryResponse, error)
}

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
