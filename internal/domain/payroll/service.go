package payroll

import (
	"context"
	"io"

	"github.com/shopspring/decimal"
)

type PayrollService interface {
	// Settings
	GetSettings(ctx context.Context) (PayrollSettingsResponse, error)
	UpdateSettings(ctx context.Context, req UpdatePayrollSettingsRequest) (PayrollSettingsResponse, error)
	ResetSettings(ctx context.Context) error

	AddAllowance(ctx context.Context, req PayItemRequest) (PayrollSettingsResponse, error)
	UpdateAllowance(ctx context.Context, itemID string, req PayItemRequest) (PayrollSettingsResponse, error)
	DeleteAllowance(ctx context.Context, itemID string) (PayrollSettingsResponse, error)
	AddDeduction(ctx context.Context, req PayItemRequest) (PayrollSettingsResponse, error)
	UpdateDeduction(ctx context.Context, itemID string, req PayItemRequest) (PayrollSettingsResponse, error)
	DeleteDeduction(ctx context.Context, itemID string) (PayrollSettingsResponse, error)

	// Tax brackets
	GetTaxTable(ctx context.Context) (TaxTableResponse, error)
	ReplaceTaxTable(ctx context.Context, req TaxTableRequest) (TaxTableResponse, error)
	AddTaxBracket(ctx context.Context, req TaxBracketRequest) (TaxTableResponse, error)
	UpdateTaxBracket(ctx context.Context, bracketID string, req TaxBracketRequest) (TaxTableResponse, error)
	DeleteTaxBracket(ctx context.Context, bracketID string) (TaxTableResponse, error)
	ListTaxTemplates(ctx context.Context) ([]TaxTemplateResponse, error)
	LoadTaxTemplate(ctx context.Context, req LoadTaxTemplateRequest) (TaxTableResponse, error)
	UploadTaxBrackets(ctx context.Context, req UploadTaxBracketsRequest) (TaxTableResponse, error)

	// Workflow
	ProcessPayroll(ctx context.Context, req ProcessPayrollRequest) (ProcessPayrollResponse, error)
	ApprovePayroll(ctx context.Context, req ApprovePayrollRequest) (ApprovePayrollResponse, error)
	ProcessPayments(ctx context.Context, req ProcessPaymentsRequest) (ProcessPaymentsResponse, error)

	// Records
	GetPayrollRecord(ctx context.Context, id string) (PayrollRecordResponse, error)
	ListPayrollRecords(ctx context.Context, filter PayrollFilter) (ListPayrollRecordResponse, error)
	GetPayrollSummary(ctx context.Context, month, year int) (PayrollSummaryResponse, error)
}

// Disbursement is one payout instruction sent to the payment provider.
type Disbursement struct {
	ExternalID  string
	Amount      decimal.Decimal
	Currency    string
	Method      PaymentMethod
	Destination string
	BankCode    string // bank transfers only
	Narration   string
}

type DisbursementReceipt struct {
	Reference string
	Status    string
}

// Disburser is the external payment collaborator.
type Disburser interface {
	Disburse(ctx context.Context, d Disbursement) (DisbursementReceipt, error)
}

// TaxSheetParser turns an uploaded spreadsheet into tax brackets.
type TaxSheetParser interface {
	Parse(filename string, r io.Reader) ([]TaxBracket, error)
}
