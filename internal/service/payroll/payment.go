package payroll

import (
	"context"
	"fmt"

	"github.com/staffma/staffma-backend/internal/domain/employee"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/pkg/logger"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
	"golang.org/x/sync/errgroup"
)

// payee is where a record's net salary goes.
type payee struct {
	method      payroll.PaymentMethod
	destination string
	bankCode    string
}

// resolvePayee picks the Staffpesa wallet first, then the primary bank
// account, then the first bank account on file.
func resolvePayee(emp employee.Employee) (payee, bool) {
	if emp.Wallet != nil && emp.Wallet.WalletID != "" {
		return payee{method: payroll.PaymentMethodStaffpesaWallet, destination: emp.Wallet.WalletID}, true
	}
	if acc, ok := emp.PrimaryBankAccount(); ok && acc.AccountNumber != "" {
		p := payee{method: payroll.PaymentMethodBankTransfer, destination: acc.AccountNumber}
		if acc.BankCode != nil {
			p.bankCode = *acc.BankCode
		}
		return p, true
	}
	return payee{}, false
}

// ProcessPayments pays each approved record independently. Every requested id
// gets exactly one outcome; a provider failure marks that record failed and
// never aborts the rest of the batch. There are no retries.
func (s *PayrollServiceImpl) ProcessPayments(ctx context.Context, req payroll.ProcessPaymentsRequest) (payroll.ProcessPaymentsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.ProcessPaymentsResponse{}, err
	}

	sess, err := sessionFromContext(ctx)
	if err != nil {
		return payroll.ProcessPaymentsResponse{}, err
	}
	ctx = logger.With(ctx, "company_id", sess.CompanyID)

	ids := validator.Unique(req.PaymentIDs)
	records, err := s.payrollRepo.GetPayrollRecordsByIDs(ctx, ids, sess.CompanyID)
	if err != nil {
		return payroll.ProcessPaymentsResponse{}, fmt.Errorf("failed to load payroll records: %w", err)
	}
	byID := make(map[string]payroll.PayrollRecord, len(records))
	employeeIDs := make([]string, 0, len(records))
	for _, r := range records {
		byID[r.ID] = r
		if r.Status == payroll.PayrollStatusApproved {
			employeeIDs = append(employeeIDs, r.EmployeeID)
		}
	}

	employees := make(map[string]employee.Employee)
	if len(employeeIDs) > 0 {
		found, err := s.employeeRepo.GetByIDs(ctx, sess.CompanyID, validator.Unique(employeeIDs))
		if err != nil {
			return payroll.ProcessPaymentsResponse{}, fmt.Errorf("failed to load employees: %w", err)
		}
		for _, emp := range found {
			employees[emp.ID] = emp
		}
	}

	// Payouts already sent must be recorded even if the caller goes away.
	batchCtx := context.WithoutCancel(ctx)

	results := make([]payroll.PaymentResult, len(ids))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for i, id := range ids {
		record, ok := byID[id]
		switch {
		case !ok:
			results[i] = payroll.PaymentResult{RecordID: id, Outcome: payroll.PaymentOutcomeNotFound, Reason: payroll.ErrPayrollRecordNotFound.Error()}
			continue
		case !record.Status.CanTransitionTo(payroll.PayrollStatusPaid):
			results[i] = payroll.PaymentResult{RecordID: id, Outcome: payroll.PaymentOutcomeRejected, Reason: fmt.Sprintf("record is %s, only approved records can be paid", record.Status)}
			continue
		case req.Month != 0 && (record.PeriodMonth != req.Month || record.PeriodYear != req.Year):
			results[i] = payroll.PaymentResult{RecordID: id, Outcome: payroll.PaymentOutcomeRejected, Reason: fmt.Sprintf("record belongs to %02d/%d", record.PeriodMonth, record.PeriodYear)}
			continue
		}

		emp, ok := employees[record.EmployeeID]
		if !ok {
			results[i] = payroll.PaymentResult{RecordID: id, Outcome: payroll.PaymentOutcomeUnpayable, Reason: employee.ErrEmployeeNotFound.Error()}
			continue
		}
		to, ok := resolvePayee(emp)
		if !ok {
			results[i] = payroll.PaymentResult{RecordID: id, Outcome: payroll.PaymentOutcomeUnpayable, Reason: payroll.ErrNoPaymentMethod.Error()}
			continue
		}

		g.Go(func() error {
			results[i] = s.payRecord(batchCtx, sess.CompanyID, record, to)
			return nil
		})
	}
	_ = g.Wait()

	resp := payroll.ProcessPaymentsResponse{Results: make(map[string]payroll.PaymentResultResponse, len(results))}
	for _, r := range results {
		var method *string
		if r.Method != nil {
			m := string(*r.Method)
			method = &m
		}
		resp.Results[r.RecordID] = payroll.PaymentResultResponse{
			Outcome:   string(r.Outcome),
			Method:    method,
			Reference: r.Reference,
			Reason:    r.Reason,
		}

		switch r.Outcome {
		case payroll.PaymentOutcomePaid:
			resp.Paid++
		case payroll.PaymentOutcomeFailed:
			resp.Failed++
		case payroll.PaymentOutcomeUnpayable:
			resp.Unpayable++
		case payroll.PaymentOutcomeRejected:
			resp.Rejected++
		case payroll.PaymentOutcomeNotFound:
			resp.NotFound++
		}
	}

	logger.From(ctx).Info("payroll payments processed",
		"requested", len(ids),
		"paid", resp.Paid,
		"failed", resp.Failed,
		"unpayable", resp.Unpayable,
		"rejected", resp.Rejected,
		"not_found", resp.NotFound)

	return resp, nil
}

// payRecord makes a single disbursement attempt and records its outcome.
func (s *PayrollServiceImpl) payRecord(ctx context.Context, companyID string, record payroll.PayrollRecord, to payee) payroll.PaymentResult {
	log := logger.From(ctx).With("record_id", record.ID, "employee_id", record.EmployeeID, "method", to.method)
	method := to.method
	result := payroll.PaymentResult{RecordID: record.ID, Method: &method}

	receipt, err := s.disburser.Disburse(ctx, payroll.Disbursement{
		ExternalID:  record.ID,
		Amount:      record.NetSalary,
		Currency:    s.currency,
		Method:      to.method,
		Destination: to.destination,
		BankCode:    to.bankCode,
		Narration:   fmt.Sprintf("Salary %02d/%d", record.PeriodMonth, record.PeriodYear),
	})
	if err != nil {
		log.Warn("payment failed", "error", err)
		result.Outcome = payroll.PaymentOutcomeFailed
		result.Reason = err.Error()
		if markErr := s.payrollRepo.MarkPayrollRecordFailed(ctx, record.ID, &method, err.Error(), companyID); markErr != nil {
			log.Error("failed to mark payroll record failed", "error", markErr)
		}
		return result
	}

	reference := receipt.Reference
	result.Outcome = payroll.PaymentOutcomePaid
	result.Reference = &reference
	if markErr := s.payrollRepo.MarkPayrollRecordPaid(ctx, record.ID, method, reference, companyID); markErr != nil {
		// Money has moved; the reference lets an operator reconcile.
		log.Error("payment sent but record not marked paid", "reference", reference, "error", markErr)
		result.Reason = "payment sent but record update failed"
	}
	return result
}
