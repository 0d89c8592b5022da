package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/staffma/staffma-backend/internal/domain/employee"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/pkg/logger"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
)

const (
	skipReasonNoSalary = "no base salary configured"
	skipReasonInactive = "employee not found or not active"
)

// ========== PROCESS ==========

// ProcessPayroll computes a record in state processed for every selected
// active employee. Records are computed in memory first and written in one
// transaction, so a failure leaves the period untouched.
func (s *PayrollServiceImpl) ProcessPayroll(ctx context.Context, req payroll.ProcessPayrollRequest) (payroll.ProcessPayrollResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.ProcessPayrollResponse{}, err
	}

	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.ProcessPayrollResponse{}, err
	}
	ctx = logger.With(ctx, "company_id", sess.CompanyID, "period_month", req.Month, "period_year", req.Year)

	resp := payroll.ProcessPayrollResponse{Month: req.Month, Year: req.Year}

	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if req.Settings != nil {
			if _, err := s.applySettings(ctx, *req.Settings); err != nil {
				return err
			}
		}

		settings, err := s.payrollRepo.GetSettings(ctx, sess.CompanyID)
		if err != nil {
			if errors.Is(err, payroll.ErrPayrollSettingsNotFound) {
				return payroll.ErrPayrollSettingsRequired
			}
			return fmt.Errorf("failed to load payroll settings: %w", err)
		}

		employees, skipped, err := s.selectEmployees(ctx, sess.CompanyID, req.EmployeeIDs)
		if err != nil {
			return err
		}

		records := make([]payroll.PayrollRecord, 0, len(employees))
		employeeIDs := make([]string, 0, len(employees))
		for _, emp := range employees {
			if !emp.HasBaseSalary() {
				skipped = append(skipped, payroll.SkippedEmployee{EmployeeID: emp.ID, Reason: skipReasonNoSalary})
				continue
			}

			record, err := ComputePayroll(emp, settings, req.Month, req.Year, s.policy.UnmatchedBracket)
			if err != nil {
				return err
			}
			record.CompanyID = sess.CompanyID
			record.ProcessedBy = &sess.UserID
			record.EmployeeName = &emp.FullName
			record.EmployeeCode = &emp.EmployeeCode

			records = append(records, record)
			employeeIDs = append(employeeIDs, emp.ID)
		}
		resp.Skipped = skipped

		if len(records) == 0 {
			resp.Records = []payroll.PayrollRecordResponse{}
			return nil
		}

		existing, err := s.payrollRepo.GetPayrollRecordsByEmployeePeriod(ctx, employeeIDs, req.Month, req.Year, sess.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to check existing payroll records: %w", err)
		}
		if len(existing) > 0 {
			if s.policy.Reprocess == payroll.ReprocessReject {
				return payroll.ErrPayrollAlreadyProcessed
			}
			resp.Overwritten, err = s.payrollRepo.DeletePeriodRecords(ctx, employeeIDs, req.Month, req.Year, sess.CompanyID)
			if err != nil {
				return fmt.Errorf("failed to replace existing payroll records: %w", err)
			}
			logger.From(ctx).Warn("overwriting processed payroll", "records", resp.Overwritten)
		}

		created := make([]payroll.PayrollRecord, 0, len(records))
		for _, record := range records {
			saved, err := s.payrollRepo.CreatePayrollRecord(ctx, record)
			if err != nil {
				return fmt.Errorf("failed to create payroll record for employee %s: %w", record.EmployeeID, err)
			}
			saved.EmployeeName = record.EmployeeName
			saved.EmployeeCode = record.EmployeeCode
			created = append(created, saved)
		}

		resp.Processed = len(created)
		resp.Records = mapToRecordResponses(created)
		return nil
	})
	if err != nil {
		logger.From(ctx).Warn("payroll processing failed", "error", err)
		return payroll.ProcessPayrollResponse{}, err
	}

	logger.From(ctx).Info("payroll processed",
		"processed", resp.Processed,
		"skipped", len(resp.Skipped),
		"overwritten", resp.Overwritten)

	return resp, nil
}

// selectEmployees returns the active employees to process. Explicit ids that
// are unknown or inactive are reported as skipped.
func (s *PayrollServiceImpl) selectEmployees(ctx context.Context, companyID string, ids []string) ([]employee.Employee, []payroll.SkippedEmployee, error) {
	ids = validator.Unique(ids)
	if len(ids) == 0 {
		employees, err := s.employeeRepo.GetActiveByCompanyID(ctx, companyID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get employees: %w", err)
		}
		if len(employees) == 0 {
			return nil, nil, payroll.ErrNoActiveEmployees
		}
		return employees, nil, nil
	}

	found, err := s.employeeRepo.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get employees: %w", err)
	}

	active := make(map[string]employee.Employee, len(found))
	for _, emp := range found {
		if emp.EmploymentStatus == employee.EmploymentStatusActive {
			active[emp.ID] = emp
		}
	}

	var (
		employees []employee.Employee
		skipped   []payroll.SkippedEmployee
	)
	for _, id := range ids {
		emp, ok := active[id]
		if !ok {
			skipped = append(skipped, payroll.SkippedEmployee{EmployeeID: id, Reason: skipReasonInactive})
			continue
		}
		employees = append(employees, emp)
	}
	if len(employees) == 0 {
		return nil, skipped, payroll.ErrNoActiveEmployees
	}
	return employees, skipped, nil
}

// ========== APPROVE ==========

// ApprovePayroll moves records from processed to approved. Either every
// requested record is approved or none is.
func (s *PayrollServiceImpl) ApprovePayroll(ctx context.Context, req payroll.ApprovePayrollRequest) (payroll.ApprovePayrollResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.ApprovePayrollResponse{}, err
	}

	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.ApprovePayrollResponse{}, err
	}

	var approved []payroll.PayrollRecord
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		records, err := s.resolveApprovalRecords(ctx, sess.CompanyID, req)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(records))
		for _, r := range records {
			if !r.Status.CanTransitionTo(payroll.PayrollStatusApproved) {
				return fmt.Errorf("record %s is %s: %w", r.ID, r.Status, payroll.ErrInvalidStatusTransition)
			}
			ids = append(ids, r.ID)
		}

		n, err := s.payrollRepo.ApprovePayrollRecords(ctx, ids, sess.UserID, sess.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to approve payroll records: %w", err)
		}
		// Another request changed a record between the read and the update.
		if n != int64(len(ids)) {
			return payroll.ErrInvalidStatusTransition
		}

		approved, err = s.payrollRepo.GetPayrollRecordsByIDs(ctx, ids, sess.CompanyID)
		return err
	})
	if err != nil {
		return payroll.ApprovePayrollResponse{}, err
	}

	logger.From(ctx).Info("payroll approved",
		"company_id", sess.CompanyID,
		"approved_by", sess.UserID,
		"records", len(approved))

	return payroll.ApprovePayrollResponse{
		Approved: len(approved),
		Records:  mapToRecordResponses(approved),
	}, nil
}

func (s *PayrollServiceImpl) resolveApprovalRecords(ctx context.Context, companyID string, req payroll.ApprovePayrollRequest) ([]payroll.PayrollRecord, error) {
	if ids := validator.Unique(req.RecordIDs); len(ids) > 0 {
		records, err := s.payrollRepo.GetPayrollRecordsByIDs(ctx, ids, companyID)
		if err != nil {
			return nil, err
		}
		if len(records) != len(ids) {
			return nil, payroll.ErrPayrollRecordNotFound
		}
		if req.Month != 0 {
			for _, r := range records {
				if r.PeriodMonth != req.Month || r.PeriodYear != req.Year {
					return nil, fmt.Errorf("record %s belongs to %02d/%d: %w", r.ID, r.PeriodMonth, r.PeriodYear, payroll.ErrInvalidPeriod)
				}
			}
		}
		return records, nil
	}

	employeeIDs := validator.Unique(req.EmployeeIDs)
	records, err := s.payrollRepo.GetPayrollRecordsByEmployeePeriod(ctx, employeeIDs, req.Month, req.Year, companyID)
	if err != nil {
		return nil, err
	}
	if len(records) != len(employeeIDs) {
		return nil, payroll.ErrPayrollRecordNotFound
	}
	return records, nil
}

// ========== RECORDS ==========

func (s *PayrollServiceImpl) GetPayrollRecord(ctx context.Context, id string) (payroll.PayrollRecordResponse, error) {
	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	if !validator.IsValidUUID(id) {
		return payroll.PayrollRecordResponse{}, payroll.ErrPayrollRecordNotFound
	}

	record, err := s.payrollRepo.GetPayrollRecordByID(ctx, id, sess.CompanyID)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	return mapToRecordResponse(record), nil
}

func (s *PayrollServiceImpl) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) (payroll.ListPayrollRecordResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}

	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	records, totalCount, err := s.payrollRepo.ListPayrollRecords(ctx, sess.CompanyID, filter)
	if err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}

	return payroll.ListPayrollRecordResponse{
		Data:       mapToRecordResponses(records),
		TotalCount: totalCount,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// ========== SUMMARY ==========

func (s *PayrollServiceImpl) GetPayrollSummary(ctx context.Context, month, year int) (payroll.PayrollSummaryResponse, error) {
	var errs validator.ValidationErrors
	if !validator.IsValidMonth(month) {
		errs.Add("month", "must be between 1 and 12")
	}
	if !validator.IsValidYear(year) {
		errs.Add("year", "must be between 2000 and 9999")
	}
	if err := errs.Err(); err != nil {
		return payroll.PayrollSummaryResponse{}, err
	}

	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.PayrollSummaryResponse{}, err
	}

	return s.payrollRepo.GetPayrollSummary(ctx, sess.CompanyID, month, year)
}
