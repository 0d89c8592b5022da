package payroll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/employee"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
)

// memoryStore is an in-memory PayrollRepository. Its Transactor snapshots the
// state and restores it when fn fails, mimicking a rollback.
type memoryStore struct {
	mu       sync.Mutex
	seq      int
	settings map[string]payroll.PayrollSettings
	records  map[string]payroll.PayrollRecord
	failOn   map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		settings: make(map[string]payroll.PayrollSettings),
		records:  make(map[string]payroll.PayrollRecord),
		failOn:   make(map[string]error),
	}
}

func (m *memoryStore) nextID() string {
	m.seq++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", m.seq)
}

func (m *memoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	settings := make(map[string]payroll.PayrollSettings, len(m.settings))
	for k, v := range m.settings {
		settings[k] = v
	}
	records := make(map[string]payroll.PayrollRecord, len(m.records))
	for k, v := range m.records {
		records[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.settings, m.records = settings, records
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryStore) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[companyID]
	if !ok {
		return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
	}
	return cloneSettings(s), nil
}

func (m *memoryStore) UpsertSettings(ctx context.Context, s payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = m.nextID()
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = time.Now()
	m.settings[s.CompanyID] = cloneSettings(s)
	return s, nil
}

func (m *memoryStore) DeleteSettings(ctx context.Context, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settings[companyID]; !ok {
		return payroll.ErrPayrollSettingsNotFound
	}
	delete(m.settings, companyID)
	return nil
}

func (m *memoryStore) CreatePayrollRecord(ctx context.Context, r payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["create"]; err != nil {
		return payroll.PayrollRecord{}, err
	}
	for _, existing := range m.records {
		if existing.CompanyID == r.CompanyID && existing.EmployeeID == r.EmployeeID &&
			existing.PeriodMonth == r.PeriodMonth && existing.PeriodYear == r.PeriodYear {
			return payroll.PayrollRecord{}, errors.New("duplicate period record")
		}
	}
	r.ID = m.nextID()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.records[r.ID] = r
	return r, nil
}

func (m *memoryStore) GetPayrollRecordByID(ctx context.Context, id string, companyID string) (payroll.PayrollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.CompanyID != companyID {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}
	return r, nil
}

func (m *memoryStore) GetPayrollRecordsByIDs(ctx context.Context, ids []string, companyID string) ([]payroll.PayrollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []payroll.PayrollRecord
	for _, id := range ids {
		if r, ok := m.records[id]; ok && r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) GetPayrollRecordsByEmployeePeriod(ctx context.Context, employeeIDs []string, month, year int, companyID string) ([]payroll.PayrollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(employeeIDs))
	for _, id := range employeeIDs {
		wanted[id] = true
	}
	var out []payroll.PayrollRecord
	for _, r := range m.records {
		if r.CompanyID == companyID && wanted[r.EmployeeID] && r.PeriodMonth == month && r.PeriodYear == year {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) DeletePeriodRecords(ctx context.Context, employeeIDs []string, month, year int, companyID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(employeeIDs))
	for _, id := range employeeIDs {
		wanted[id] = true
	}
	var n int64
	for id, r := range m.records {
		if r.CompanyID == companyID && wanted[r.EmployeeID] && r.PeriodMonth == month && r.PeriodYear == year {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) ListPayrollRecords(ctx context.Context, companyID string, filter payroll.PayrollFilter) ([]payroll.PayrollRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []payroll.PayrollRecord
	for _, r := range m.records {
		if r.CompanyID != companyID {
			continue
		}
		if filter.PeriodMonth != nil && r.PeriodMonth != *filter.PeriodMonth {
			continue
		}
		if filter.PeriodYear != nil && r.PeriodYear != *filter.PeriodYear {
			continue
		}
		if filter.Status != nil && string(r.Status) != *filter.Status {
			continue
		}
		if filter.EmployeeID != nil && r.EmployeeID != *filter.EmployeeID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))

	start := (filter.Page - 1) * filter.Limit
	if start > len(out) {
		start = len(out)
	}
	end := start + filter.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (m *memoryStore) ApprovePayrollRecords(ctx context.Context, ids []string, approvedBy string, companyID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var n int64
	for _, id := range ids {
		r, ok := m.records[id]
		if !ok || r.CompanyID != companyID || r.Status != payroll.PayrollStatusProcessed {
			continue
		}
		r.Status = payroll.PayrollStatusApproved
		r.ApprovedBy = &approvedBy
		r.ApprovedAt = &now
		m.records[id] = r
		n++
	}
	return n, nil
}

func (m *memoryStore) MarkPayrollRecordPaid(ctx context.Context, id string, method payroll.PaymentMethod, reference string, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.CompanyID != companyID || r.Status != payroll.PayrollStatusApproved {
		return payroll.ErrInvalidStatusTransition
	}
	now := time.Now()
	r.Status = payroll.PayrollStatusPaid
	r.PaymentMethod = &method
	r.PaymentReference = &reference
	r.PaidAt = &now
	m.records[id] = r
	return nil
}

func (m *memoryStore) MarkPayrollRecordFailed(ctx context.Context, id string, method *payroll.PaymentMethod, reason string, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.CompanyID != companyID || r.Status != payroll.PayrollStatusApproved {
		return payroll.ErrInvalidStatusTransition
	}
	r.Status = payroll.PayrollStatusFailed
	r.PaymentMethod = method
	r.FailureReason = &reason
	m.records[id] = r
	return nil
}

func (m *memoryStore) GetPayrollSummary(ctx context.Context, companyID string, month, year int) (payroll.PayrollSummaryResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := payroll.PayrollSummaryResponse{PeriodMonth: month, PeriodYear: year}
	for _, r := range m.records {
		if r.CompanyID != companyID || r.PeriodMonth != month || r.PeriodYear != year {
			continue
		}
		sum.TotalEmployees++
		sum.TotalNetSalary = sum.TotalNetSalary.Add(r.NetSalary)
		switch r.Status {
		case payroll.PayrollStatusProcessed:
			sum.ProcessedCount++
		case payroll.PayrollStatusApproved:
			sum.ApprovedCount++
		case payroll.PayrollStatusPaid:
			sum.PaidCount++
		case payroll.PayrollStatusFailed:
			sum.FailedCount++
		}
	}
	return sum, nil
}

func (m *memoryStore) setStatus(id string, status payroll.PayrollStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[id]
	r.Status = status
	m.records[id] = r
}

func (m *memoryStore) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memoryStore) record(id string) payroll.PayrollRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func cloneSettings(s payroll.PayrollSettings) payroll.PayrollSettings {
	s.Allowances = append([]payroll.PayItem(nil), s.Allowances...)
	s.Deductions = append([]payroll.PayItem(nil), s.Deductions...)
	s.TaxTable.Brackets = append([]payroll.TaxBracket(nil), s.TaxTable.Brackets...)
	return s
}

type memoryEmployees struct {
	employees []employee.Employee
}

func (m *memoryEmployees) GetByID(ctx context.Context, id string, companyID string) (employee.Employee, error) {
	for _, e := range m.employees {
		if e.ID == id && e.CompanyID == companyID {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (m *memoryEmployees) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, e := range m.employees {
		if e.CompanyID == companyID && e.EmploymentStatus == employee.EmploymentStatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryEmployees) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []employee.Employee
	for _, e := range m.employees {
		if e.CompanyID == companyID && wanted[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

// stubDisburser fails for destinations listed in failFor.
type stubDisburser struct {
	mu      sync.Mutex
	failFor map[string]bool
	calls   []payroll.Disbursement
}

func (d *stubDisburser) Disburse(ctx context.Context, in payroll.Disbursement) (payroll.DisbursementReceipt, error) {
	d.mu.Lock()
	d.calls = append(d.calls, in)
	d.mu.Unlock()

	if d.failFor[in.Destination] {
		return payroll.DisbursementReceipt{}, errors.New("provider declined: insufficient float")
	}
	return payroll.DisbursementReceipt{Reference: "ref-" + in.ExternalID, Status: "succeeded"}, nil
}

func (d *stubDisburser) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type stubSheetParser struct {
	brackets []payroll.TaxBracket
	err      error
}

func (p stubSheetParser) Parse(filename string, _ io.Reader) ([]payroll.TaxBracket, error) {
	return p.brackets, p.err
}

func salary(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
