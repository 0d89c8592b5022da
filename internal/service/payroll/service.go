package payroll

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/staffma/staffma-backend/internal/domain/auth"
	"github.com/staffma/staffma-backend/internal/domain/employee"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/domain/user"
	"github.com/staffma/staffma-backend/internal/pkg/session"
)

type Config struct {
	Policy                payroll.Policy
	MaxPaymentConcurrency int
	Currency              string
}

type PayrollServiceImpl struct {
	txManager    payroll.Transactor
	payrollRepo  payroll.PayrollRepository
	employeeRepo employee.EmployeeRepository
	disburser    payroll.Disburser
	sheetParser  payroll.TaxSheetParser

	policy         payroll.Policy
	maxConcurrency int
	currency       string

	now   func() time.Time
	newID func() string
}

func NewPayrollService(
	txManager payroll.Transactor,
	payrollRepo payroll.PayrollRepository,
	employeeRepo employee.EmployeeRepository,
	disburser payroll.Disburser,
	sheetParser payroll.TaxSheetParser,
	cfg Config,
) payroll.PayrollService {
	policy := cfg.Policy
	if policy.Reprocess == "" {
		policy.Reprocess = payroll.ReprocessOverwrite
	}
	if policy.UnmatchedBracket == "" {
		policy.UnmatchedBracket = payroll.UnmatchedBracketZero
	}

	maxConcurrency := cfg.MaxPaymentConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}

	return &PayrollServiceImpl{
		txManager:      txManager,
		payrollRepo:    payrollRepo,
		employeeRepo:   employeeRepo,
		disburser:      disburser,
		sheetParser:    sheetParser,
		policy:         policy,
		maxConcurrency: maxConcurrency,
		currency:       cfg.Currency,
		now:            time.Now,
		newID:          newItemID,
	}
}

func newItemID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// sessionFromContext returns the caller, which the auth middleware must have
// attached to ctx.
func sessionFromContext(ctx context.Context) (session.Session, error) {
	sess, ok := session.FromContext(ctx)
	if !ok {
		return session.Session{}, auth.ErrInvalidToken
	}
	if sess.CompanyID == "" {
		return session.Session{}, user.ErrCompanyIDRequired
	}
	return sess, nil
}

// ========== HELPERS ==========

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	str := t.Format(time.RFC3339)
	return &str
}

func mapToRecordResponse(r payroll.PayrollRecord) payroll.PayrollRecordResponse {
	employeeName := ""
	employeeCode := ""
	if r.EmployeeName != nil {
		employeeName = *r.EmployeeName
	}
	if r.EmployeeCode != nil {
		employeeCode = *r.EmployeeCode
	}

	var method *string
	if r.PaymentMethod != nil {
		m := string(*r.PaymentMethod)
		method = &m
	}

	return payroll.PayrollRecordResponse{
		ID:                r.ID,
		EmployeeID:        r.EmployeeID,
		EmployeeName:      employeeName,
		EmployeeCode:      employeeCode,
		PeriodMonth:       r.PeriodMonth,
		PeriodYear:        r.PeriodYear,
		BasicSalary:       r.BasicSalary,
		TotalAllowances:   r.TotalAllowances,
		TotalDeductions:   r.TotalDeductions,
		AllowancesDetail:  r.AllowancesDetail,
		DeductionsDetail:  r.DeductionsDetail,
		TaxAmount:         r.TaxAmount,
		TaxRate:           r.TaxRate,
		TaxBracketMatched: r.TaxBracketMatched,
		GrossSalary:       r.GrossSalary,
		NetSalary:         r.NetSalary,
		Status:            string(r.Status),
		ApprovedBy:        r.ApprovedBy,
		ApprovedAt:        formatTime(r.ApprovedAt),
		PaymentMethod:     method,
		PaymentReference:  r.PaymentReference,
		FailureReason:     r.FailureReason,
		PaidAt:            formatTime(r.PaidAt),
	}
}

func mapToRecordResponses(records []payroll.PayrollRecord) []payroll.PayrollRecordResponse {
	result := make([]payroll.PayrollRecordResponse, 0, len(records))
	for _, r := range records {
		result = append(result, mapToRecordResponse(r))
	}
	return result
}

func mapToItemResponses(items []payroll.PayItem) []payroll.PayItemResponse {
	result := make([]payroll.PayItemResponse, 0, len(items))
	for _, i := range items {
		result = append(result, payroll.PayItemResponse{
			ID:      i.ID,
			Name:    i.Name,
			Type:    string(i.Type),
			Value:   i.Value,
			Enabled: i.Enabled,
		})
	}
	return result
}

func mapToBracketResponses(brackets []payroll.TaxBracket) []payroll.TaxBracketResponse {
	result := make([]payroll.TaxBracketResponse, 0, len(brackets))
	for _, b := range brackets {
		result = append(result, payroll.TaxBracketResponse{
			ID:         b.ID,
			LowerBound: b.LowerBound,
			UpperBound: b.UpperBound,
			Rate:       b.Rate,
			Enabled:    b.Enabled,
		})
	}
	return result
}

func mapToTaxTableResponse(t payroll.TaxTable) payroll.TaxTableResponse {
	return payroll.TaxTableResponse{
		Region:       t.Region,
		BusinessType: t.BusinessType,
		Source:       string(t.Source),
		Brackets:     mapToBracketResponses(t.Brackets),
		Warnings:     t.Warnings(),
	}
}

func mapToSettingsResponse(s payroll.PayrollSettings, configured bool) payroll.PayrollSettingsResponse {
	resp := payroll.PayrollSettingsResponse{
		ID:         s.ID,
		CompanyID:  s.CompanyID,
		Configured: configured,
		Allowances: mapToItemResponses(s.Allowances),
		Deductions: mapToItemResponses(s.Deductions),
		TaxTable:   mapToTaxTableResponse(s.TaxTable),
	}
	if configured && !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(&s.UpdatedAt)
	}
	return resp
}
