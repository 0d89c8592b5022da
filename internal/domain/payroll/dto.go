package payroll

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
)

// ========== SETTINGS DTOs ==========

type PayItemRequest struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"` // "percentage" or "fixed"
	Value   decimal.Decimal `json:"value"`
	Enabled *bool           `json:"enabled,omitempty"`
}

func (r *PayItemRequest) Validate() error {
	var errs validator.ValidationErrors
	r.validateInto(&errs, "")
	return errs.Err()
}

func (r *PayItemRequest) validateInto(errs *validator.ValidationErrors, prefix string) {
	if validator.IsEmpty(r.Name) {
		errs.Add(prefix+"name", "is required")
	}
	switch ItemType(r.Type) {
	case ItemTypeFixed:
		if r.Value.IsNegative() {
			errs.Add(prefix+"value", "must be non-negative")
		}
	case ItemTypePercentage:
		if !validator.IsPercentage(r.Value) {
			errs.Add(prefix+"value", "must be between 0 and 100")
		}
	default:
		errs.Add(prefix+"type", "must be 'percentage' or 'fixed'")
	}
}

type TaxBracketRequest struct {
	LowerBound decimal.Decimal  `json:"lower_bound"`
	UpperBound *decimal.Decimal `json:"upper_bound,omitempty"`
	Rate       decimal.Decimal  `json:"rate"`
	Enabled    *bool            `json:"enabled,omitempty"`
}

func (r *TaxBracketRequest) Validate() error {
	var errs validator.ValidationErrors
	r.validateInto(&errs, "")
	return errs.Err()
}

func (r *TaxBracketRequest) validateInto(errs *validator.ValidationErrors, prefix string) {
	if r.LowerBound.IsNegative() {
		errs.Add(prefix+"lower_bound", "must be non-negative")
	}
	if r.UpperBound != nil && !r.UpperBound.GreaterThan(r.LowerBound) {
		errs.Add(prefix+"upper_bound", "must be greater than lower_bound")
	}
	if !validator.IsPercentage(r.Rate) {
		errs.Add(prefix+"rate", "must be between 0 and 100")
	}
}

type TaxTableRequest struct {
	Region       string              `json:"region"`
	BusinessType string              `json:"business_type"`
	Brackets     []TaxBracketRequest `json:"brackets"`
}

func (r *TaxTableRequest) Validate() error {
	var errs validator.ValidationErrors
	r.validateInto(&errs, "")
	return errs.Err()
}

func (r *TaxTableRequest) validateInto(errs *validator.ValidationErrors, prefix string) {
	for i := range r.Brackets {
		r.Brackets[i].validateInto(errs, fmt.Sprintf("%sbrackets[%d].", prefix, i))
	}
}

type UpdatePayrollSettingsRequest struct {
	Allowances []PayItemRequest `json:"allowances"`
	Deductions []PayItemRequest `json:"deductions"`
	TaxTable   *TaxTableRequest `json:"tax_table,omitempty"`
}

func (r *UpdatePayrollSettingsRequest) Validate() error {
	var errs validator.ValidationErrors

	for i := range r.Allowances {
		r.Allowances[i].validateInto(&errs, fmt.Sprintf("allowances[%d].", i))
	}
	for i := range r.Deductions {
		r.Deductions[i].validateInto(&errs, fmt.Sprintf("deductions[%d].", i))
	}
	if r.TaxTable != nil {
		r.TaxTable.validateInto(&errs, "tax_table.")
	}

	return errs.Err()
}

type LoadTaxTemplateRequest struct {
	Region       string `json:"region"`
	BusinessType string `json:"business_type"`
}

func (r *LoadTaxTemplateRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Region) {
		errs.Add("region", "is required")
	}
	if validator.IsEmpty(r.BusinessType) {
		errs.Add("business_type", "is required")
	}

	return errs.Err()
}

// UploadTaxBracketsRequest carries a multipart upload; it is never JSON-decoded.
type UploadTaxBracketsRequest struct {
	Filename     string
	Content      io.Reader
	Region       string
	BusinessType string
}

type PayItemResponse struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Value   decimal.Decimal `json:"value"`
	Enabled bool            `json:"enabled"`
}

type TaxBracketResponse struct {
	ID         string           `json:"id"`
	LowerBound decimal.Decimal  `json:"lower_bound"`
	UpperBound *decimal.Decimal `json:"upper_bound,omitempty"`
	Rate       decimal.Decimal  `json:"rate"`
	Enabled    bool             `json:"enabled"`
}

type TaxTableResponse struct {
	Region       string               `json:"region"`
	BusinessType string               `json:"business_type"`
	Source       string               `json:"source"`
	Brackets     []TaxBracketResponse `json:"brackets"`
	Warnings     []string             `json:"warnings,omitempty"`
}

type PayrollSettingsResponse struct {
	ID         string            `json:"id,omitempty"`
	CompanyID  string            `json:"company_id"`
	Configured bool              `json:"configured"`
	Allowances []PayItemResponse `json:"allowances"`
	Deductions []PayItemResponse `json:"deductions"`
	TaxTable   TaxTableResponse  `json:"tax_table"`
	UpdatedAt  *string           `json:"updated_at,omitempty"`
}

type TaxTemplateResponse struct {
	Region       string               `json:"region"`
	BusinessType string               `json:"business_type"`
	Description  string               `json:"description"`
	Brackets     []TaxBracketResponse `json:"brackets"`
}

// ========== WORKFLOW DTOs ==========

type ProcessPayrollRequest struct {
	Month       int                           `json:"month"`
	Year        int                           `json:"year"`
	Settings    *UpdatePayrollSettingsRequest `json:"settings,omitempty"`
	EmployeeIDs []string                      `json:"employee_ids,omitempty"` // Empty = all active employees
}

func (r *ProcessPayrollRequest) Validate() error {
	var errs validator.ValidationErrors

	validatePeriod(&errs, r.Month, r.Year)
	if r.Settings != nil {
		if err := r.Settings.Validate(); err != nil {
			if settingsErrs, ok := err.(validator.ValidationErrors); ok {
				for _, e := range settingsErrs {
					errs.Add("settings."+e.Field, e.Message)
				}
			}
		}
	}

	return errs.Err()
}

type SkippedEmployee struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

type ProcessPayrollResponse struct {
	Month       int                     `json:"month"`
	Year        int                     `json:"year"`
	Processed   int                     `json:"processed"`
	Overwritten int64                   `json:"overwritten"`
	Skipped     []SkippedEmployee       `json:"skipped,omitempty"`
	Records     []PayrollRecordResponse `json:"records"`
}

type ApprovePayrollRequest struct {
	Month       int      `json:"month"`
	Year        int      `json:"year"`
	RecordIDs   []string `json:"record_ids,omitempty"`
	EmployeeIDs []string `json:"employee_ids,omitempty"`
}

func (r *ApprovePayrollRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.RecordIDs) == 0 && len(r.EmployeeIDs) == 0 {
		errs.Add("record_ids", "record_ids or employee_ids is required")
	}
	// Required for employee_ids lookups, optional with record_ids.
	if len(r.RecordIDs) == 0 || r.Month != 0 || r.Year != 0 {
		validatePeriod(&errs, r.Month, r.Year)
	}

	return errs.Err()
}

type ApprovePayrollResponse struct {
	Approved int                     `json:"approved"`
	Records  []PayrollRecordResponse `json:"records"`
}

type ProcessPaymentsRequest struct {
	Month      int      `json:"month"`
	Year       int      `json:"year"`
	PaymentIDs []string `json:"payment_ids"`
}

func (r *ProcessPaymentsRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.PaymentIDs) == 0 {
		errs.Add("payment_ids", "at least one record is required")
	}
	if r.Month != 0 || r.Year != 0 {
		validatePeriod(&errs, r.Month, r.Year)
	}

	return errs.Err()
}

type PaymentResultResponse struct {
	Outcome   string  `json:"outcome"`
	Method    *string `json:"method,omitempty"`
	Reference *string `json:"reference,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

type ProcessPaymentsResponse struct {
	Results   map[string]PaymentResultResponse `json:"results"`
	Paid      int                              `json:"paid"`
	Failed    int                              `json:"failed"`
	Unpayable int                              `json:"unpayable"`
	Rejected  int                              `json:"rejected"`
	NotFound  int                              `json:"not_found"`
}

// ========== PAYROLL RECORD DTOs ==========

type PayrollRecordResponse struct {
	ID                string                     `json:"id"`
	EmployeeID        string                     `json:"employee_id"`
	EmployeeName      string                     `json:"employee_name,omitempty"`
	EmployeeCode      string                     `json:"employee_code,omitempty"`
	PeriodMonth       int                        `json:"period_month"`
	PeriodYear        int                        `json:"period_year"`
	BasicSalary       decimal.Decimal            `json:"basic_salary"`
	TotalAllowances   decimal.Decimal            `json:"total_allowances"`
	TotalDeductions   decimal.Decimal            `json:"total_deductions"`
	AllowancesDetail  map[string]decimal.Decimal `json:"allowances_detail,omitempty"`
	DeductionsDetail  map[string]decimal.Decimal `json:"deductions_detail,omitempty"`
	TaxAmount         decimal.Decimal            `json:"tax_amount"`
	TaxRate           decimal.Decimal            `json:"tax_rate"`
	TaxBracketMatched bool                       `json:"tax_bracket_matched"`
	GrossSalary       decimal.Decimal            `json:"gross_salary"`
	NetSalary         decimal.Decimal            `json:"net_salary"`
	Status            string                     `json:"status"`
	ApprovedBy        *string                    `json:"approved_by,omitempty"`
	ApprovedAt        *string                    `json:"approved_at,omitempty"`
	PaymentMethod     *string                    `json:"payment_method,omitempty"`
	PaymentReference  *string                    `json:"payment_reference,omitempty"`
	FailureReason     *string                    `json:"failure_reason,omitempty"`
	PaidAt            *string                    `json:"paid_at,omitempty"`
}

type PayrollFilter struct {
	PeriodMonth *int    `json:"period_month,omitempty"`
	PeriodYear  *int    `json:"period_year,omitempty"`
	Status      *string `json:"status,omitempty"`
	EmployeeID  *string `json:"employee_id,omitempty"`
	Page        int     `json:"page"`
	Limit       int     `json:"limit"`
	SortBy      string  `json:"sort_by"`
	SortOrder   string  `json:"sort_order"`
}

func (f *PayrollFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.PeriodMonth != nil && !validator.IsValidMonth(*f.PeriodMonth) {
		errs.Add("month", "must be between 1 and 12")
	}
	if f.PeriodYear != nil && !validator.IsValidYear(*f.PeriodYear) {
		errs.Add("year", "must be between 2000 and 9999")
	}
	if f.Status != nil && !PayrollStatus(*f.Status).Valid() {
		errs.Add("status", "must be one of processed, approved, paid, failed")
	}

	return errs.Err()
}

type ListPayrollRecordResponse struct {
	Data       []PayrollRecordResponse `json:"data"`
	TotalCount int64                   `json:"total_count"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
}

type PayrollSummaryResponse struct {
	PeriodMonth      int             `json:"period_month"`
	PeriodYear       int             `json:"period_year"`
	TotalEmployees   int             `json:"total_employees"`
	TotalBasicSalary decimal.Decimal `json:"total_basic_salary"`
	TotalAllowances  decimal.Decimal `json:"total_allowances"`
	TotalDeductions  decimal.Decimal `json:"total_deductions"`
	TotalTax         decimal.Decimal `json:"total_tax"`
	TotalGrossSalary decimal.Decimal `json:"total_gross_salary"`
	TotalNetSalary   decimal.Decimal `json:"total_net_salary"`
	ProcessedCount   int             `json:"processed_count"`
	ApprovedCount    int             `json:"approved_count"`
	PaidCount        int             `json:"paid_count"`
	FailedCount      int             `json:"failed_count"`
}

func validatePeriod(errs *validator.ValidationErrors, month, year int) {
	if !validator.IsValidMonth(month) {
		errs.Add("month", "must be between 1 and 12")
	}
	if !validator.IsValidYear(year) {
		errs.Add("year", "must be between 2000 and 9999")
	}
}
