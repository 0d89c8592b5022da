package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/pkg/database"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

// ========== SETTINGS ==========

func (r *payrollRepository) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, allowances, deductions, tax_table, created_at, updated_at
		FROM payroll_settings
		WHERE company_id = $1
	`

	var (
		s                                   payroll.PayrollSettings
		allowancesJSON, deductionsJSON, tax []byte
	)
	err := q.QueryRow(ctx, query, companyID).Scan(
		&s.ID, &s.CompanyID, &allowancesJSON, &deductionsJSON, &tax, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
		}
		return payroll.PayrollSettings{}, fmt.Errorf("failed to get payroll settings: %w", err)
	}

	if err := json.Unmarshal(allowancesJSON, &s.Allowances); err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to decode allowances: %w", err)
	}
	if err := json.Unmarshal(deductionsJSON, &s.Deductions); err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to decode deductions: %w", err)
	}
	if err := json.Unmarshal(tax, &s.TaxTable); err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to decode tax table: %w", err)
	}

	return s, nil
}

// UpsertSettings stores the whole settings document for a company, creating
// the row on first write.
func (r *payrollRepository) UpsertSettings(ctx context.Context, s payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	if s.Allowances == nil {
		s.Allowances = []payroll.PayItem{}
	}
	if s.Deductions == nil {
		s.Deductions = []payroll.PayItem{}
	}
	if s.TaxTable.Brackets == nil {
		s.TaxTable.Brackets = []payroll.TaxBracket{}
	}

	allowancesJSON, err := json.Marshal(s.Allowances)
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to encode allowances: %w", err)
	}
	deductionsJSON, err := json.Marshal(s.Deductions)
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to encode deductions: %w", err)
	}
	taxJSON, err := json.Marshal(s.TaxTable)
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to encode tax table: %w", err)
	}

	query := `
		INSERT INTO payroll_settings (id, company_id, allowances, deductions, tax_table)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5)
		ON CONFLICT (company_id) DO UPDATE SET
			allowances = EXCLUDED.allowances,
			deductions = EXCLUDED.deductions,
			tax_table = EXCLUDED.tax_table,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err = q.QueryRow(ctx, query, s.ID, s.CompanyID, allowancesJSON, deductionsJSON, taxJSON).Scan(
		&s.ID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to save payroll settings: %w", err)
	}

	return s, nil
}

func (r *payrollRepository) DeleteSettings(ctx context.Context, companyID string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM payroll_settings WHERE company_id = $1`, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete payroll settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayrollSettingsNotFound
	}
	return nil
}

// ========== PAYROLL RECORDS ==========

const payrollRecordColumns = `
	pr.id, pr.company_id, pr.employee_id, pr.period_month, pr.period_year,
	pr.basic_salary, pr.total_allowances, pr.total_deductions,
	pr.allowances_detail, pr.deductions_detail,
	pr.tax_amount, pr.tax_rate, pr.tax_bracket_matched,
	pr.gross_salary, pr.net_salary, pr.status,
	pr.processed_by, pr.approved_by, pr.approved_at,
	pr.payment_method, pr.payment_reference, pr.failure_reason, pr.paid_at,
	pr.created_at, pr.updated_at,
	e.full_name, e.employee_code
`

const payrollRecordFrom = `
	FROM payroll_records pr
	LEFT JOIN employees e ON e.id = pr.employee_id AND e.company_id = pr.company_id
`

func scanPayrollRecord(row pgx.Row) (payroll.PayrollRecord, error) {
	var (
		rec                           payroll.PayrollRecord
		allowancesJSON, deductionJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.EmployeeID, &rec.PeriodMonth, &rec.PeriodYear,
		&rec.BasicSalary, &rec.TotalAllowances, &rec.TotalDeductions,
		&allowancesJSON, &deductionJSON,
		&rec.TaxAmount, &rec.TaxRate, &rec.TaxBracketMatched,
		&rec.GrossSalary, &rec.NetSalary, &rec.Status,
		&rec.ProcessedBy, &rec.ApprovedBy, &rec.ApprovedAt,
		&rec.PaymentMethod, &rec.PaymentReference, &rec.FailureReason, &rec.PaidAt,
		&rec.CreatedAt, &rec.UpdatedAt,
		&rec.EmployeeName, &rec.EmployeeCode,
	)
	if err != nil {
		return payroll.PayrollRecord{}, err
	}

	if len(allowancesJSON) > 0 {
		if err := json.Unmarshal(allowancesJSON, &rec.AllowancesDetail); err != nil {
			return payroll.PayrollRecord{}, fmt.Errorf("failed to decode allowances detail: %w", err)
		}
	}
	if len(deductionJSON) > 0 {
		if err := json.Unmarshal(deductionJSON, &rec.DeductionsDetail); err != nil {
			return payroll.PayrollRecord{}, fmt.Errorf("failed to decode deductions detail: %w", err)
		}
	}

	return rec, nil
}

func collectPayrollRecords(rows pgx.Rows) ([]payroll.PayrollRecord, error) {
	defer rows.Close()

	records := []payroll.PayrollRecord{}
	for rows.Next() {
		rec, err := scanPayrollRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payroll records: %w", err)
	}
	return records, nil
}

// uuidsOnly drops ids that cannot exist in a uuid column so that a malformed
// id reads as "not found" instead of a query error.
func uuidsOnly(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validator.IsValidUUID(id) {
			out = append(out, id)
		}
	}
	return out
}

func (r *payrollRepository) CreatePayrollRecord(ctx context.Context, rec payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	q := GetQuerier(ctx, r.db)

	allowancesJSON, err := json.Marshal(detailOrEmpty(rec.AllowancesDetail))
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to encode allowances detail: %w", err)
	}
	deductionsJSON, err := json.Marshal(detailOrEmpty(rec.DeductionsDetail))
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to encode deductions detail: %w", err)
	}

	query := `
		INSERT INTO payroll_records (
			company_id, employee_id, period_month, period_year,
			basic_salary, total_allowances, total_deductions,
			allowances_detail, deductions_detail,
			tax_amount, tax_rate, tax_bracket_matched,
			gross_salary, net_salary, status, processed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, status, created_at, updated_at
	`

	err = q.QueryRow(ctx, query,
		rec.CompanyID, rec.EmployeeID, rec.PeriodMonth, rec.PeriodYear,
		rec.BasicSalary, rec.TotalAllowances, rec.TotalDeductions,
		allowancesJSON, deductionsJSON,
		rec.TaxAmount, rec.TaxRate, rec.TaxBracketMatched,
		rec.GrossSalary, rec.NetSalary, rec.Status, rec.ProcessedBy,
	).Scan(&rec.ID, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "uk_payroll_employee_period") {
			return payroll.PayrollRecord{}, payroll.ErrPayrollAlreadyProcessed
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to create payroll record: %w", err)
	}

	return rec, nil
}

func detailOrEmpty(d map[string]decimal.Decimal) map[string]decimal.Decimal {
	if d == nil {
		return map[string]decimal.Decimal{}
	}
	return d
}

func (r *payrollRepository) GetPayrollRecordByID(ctx context.Context, id string, companyID string) (payroll.PayrollRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollRecordColumns + payrollRecordFrom + `
		WHERE pr.id = $1 AND pr.company_id = $2
	`

	rec, err := scanPayrollRecord(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to get payroll record: %w", err)
	}

	return rec, nil
}

func (r *payrollRepository) GetPayrollRecordsByIDs(ctx context.Context, ids []string, companyID string) ([]payroll.PayrollRecord, error) {
	ids = uuidsOnly(ids)
	if len(ids) == 0 {
		return []payroll.PayrollRecord{}, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollRecordColumns + payrollRecordFrom + `
		WHERE pr.id = ANY($1) AND pr.company_id = $2
		ORDER BY pr.created_at, pr.id
	`

	rows, err := q.Query(ctx, query, ids, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll records: %w", err)
	}
	return collectPayrollRecords(rows)
}

func (r *payrollRepository) GetPayrollRecordsByEmployeePeriod(ctx context.Context, employeeIDs []string, month, year int, companyID string) ([]payroll.PayrollRecord, error) {
	employeeIDs = uuidsOnly(employeeIDs)
	if len(employeeIDs) == 0 {
		return []payroll.PayrollRecord{}, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollRecordColumns + payrollRecordFrom + `
		WHERE pr.employee_id = ANY($1) AND pr.period_month = $2 AND pr.period_year = $3 AND pr.company_id = $4
		ORDER BY pr.created_at, pr.id
	`

	rows, err := q.Query(ctx, query, employeeIDs, month, year, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll records for period: %w", err)
	}
	return collectPayrollRecords(rows)
}

// DeletePeriodRecords removes records for a re-run. Records that already left
// the processed state are removed as well; callers decide whether that is allowed.
func (r *payrollRepository) DeletePeriodRecords(ctx context.Context, employeeIDs []string, month, year int, companyID string) (int64, error) {
	employeeIDs = uuidsOnly(employeeIDs)
	if len(employeeIDs) == 0 {
		return 0, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `
		DELETE FROM payroll_records
		WHERE employee_id = ANY($1) AND period_month = $2 AND period_year = $3 AND company_id = $4
	`

	tag, err := q.Exec(ctx, query, employeeIDs, month, year, companyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete payroll records: %w", err)
	}
	return tag.RowsAffected(), nil
}

var payrollSortColumns = map[string]string{
	"created_at":    "pr.created_at",
	"period":        "pr.period_year %[1]s, pr.period_month",
	"net_salary":    "pr.net_salary",
	"gross_salary":  "pr.gross_salary",
	"status":        "pr.status",
	"employee_name": "e.full_name",
}

func (r *payrollRepository) ListPayrollRecords(ctx context.Context, companyID string, filter payroll.PayrollFilter) ([]payroll.PayrollRecord, int64, error) {
	q := GetQuerier(ctx, r.db)

	whereClauses := []string{"pr.company_id = $1"}
	args := []interface{}{companyID}
	argIdx := 2

	if filter.PeriodMonth != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("pr.period_month = $%d", argIdx))
		args = append(args, *filter.PeriodMonth)
		argIdx++
	}
	if filter.PeriodYear != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("pr.period_year = $%d", argIdx))
		args = append(args, *filter.PeriodYear)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("pr.status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		if !validator.IsValidUUID(*filter.EmployeeID) {
			return []payroll.PayrollRecord{}, 0, nil
		}
		whereClauses = append(whereClauses, fmt.Sprintf("pr.employee_id = $%d", argIdx))
		args = append(args, *filter.EmployeeID)
		argIdx++
	}

	whereSQL := strings.Join(whereClauses, " AND ")

	var totalCount int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM payroll_records pr WHERE %s`, whereSQL)
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll records: %w", err)
	}

	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	sortExpr, ok := payrollSortColumns[filter.SortBy]
	if !ok {
		sortExpr = payrollSortColumns["created_at"]
	}
	if strings.Contains(sortExpr, "%[1]s") {
		sortExpr = fmt.Sprintf(sortExpr, sortOrder)
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s %s, pr.id LIMIT $%d OFFSET $%d`,
		payrollRecordColumns, payrollRecordFrom, whereSQL, sortExpr, sortOrder, argIdx, argIdx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll records: %w", err)
	}
	records, err := collectPayrollRecords(rows)
	if err != nil {
		return nil, 0, err
	}

	return records, totalCount, nil
}

// ========== STATUS TRANSITIONS ==========

func (r *payrollRepository) ApprovePayrollRecords(ctx context.Context, ids []string, approvedBy string, companyID string) (int64, error) {
	ids = uuidsOnly(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_records
		SET status = $1, approved_by = $2, approved_at = NOW(), updated_at = NOW()
		WHERE id = ANY($3) AND company_id = $4 AND status = $5
	`

	tag, err := q.Exec(ctx, query, payroll.PayrollStatusApproved, approvedBy, ids, companyID, payroll.PayrollStatusProcessed)
	if err != nil {
		return 0, fmt.Errorf("failed to approve payroll records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *payrollRepository) MarkPayrollRecordPaid(ctx context.Context, id string, method payroll.PaymentMethod, reference string, companyID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_records
		SET status = $1, payment_method = $2, payment_reference = $3, failure_reason = NULL,
			paid_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND company_id = $5 AND status = $6
	`

	tag, err := q.Exec(ctx, query, payroll.PayrollStatusPaid, method, reference, id, companyID, payroll.PayrollStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to mark payroll record paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrInvalidStatusTransition
	}
	return nil
}

func (r *payrollRepository) MarkPayrollRecordFailed(ctx context.Context, id string, method *payroll.PaymentMethod, reason string, companyID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_records
		SET status = $1, payment_method = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $4 AND company_id = $5 AND status = $6
	`

	tag, err := q.Exec(ctx, query, payroll.PayrollStatusFailed, method, reason, id, companyID, payroll.PayrollStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to mark payroll record failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrInvalidStatusTransition
	}
	return nil
}

// ========== AGGREGATIONS ==========

func (r *payrollRepository) GetPayrollSummary(ctx context.Context, companyID string, month, year int) (payroll.PayrollSummaryResponse, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COUNT(*) as total_employees,
			COALESCE(SUM(basic_salary), 0) as total_basic_salary,
			COALESCE(SUM(total_allowances), 0) as total_allowances,
			COALESCE(SUM(total_deductions), 0) as total_deductions,
			COALESCE(SUM(tax_amount), 0) as total_tax,
			COALESCE(SUM(gross_salary), 0) as total_gross_salary,
			COALESCE(SUM(net_salary), 0) as total_net_salary,
			COUNT(*) FILTER (WHERE status = 'processed') as processed_count,
			COUNT(*) FILTER (WHERE status = 'approved') as approved_count,
			COUNT(*) FILTER (WHERE status = 'paid') as paid_count,
			COUNT(*) FILTER (WHERE status = 'failed') as failed_count
		FROM payroll_records
		WHERE company_id = $1 AND period_month = $2 AND period_year = $3
	`

	summary := payroll.PayrollSummaryResponse{PeriodMonth: month, PeriodYear: year}
	err := q.QueryRow(ctx, query, companyID, month, year).Scan(
		&summary.TotalEmployees,
		&summary.TotalBasicSalary, &summary.TotalAllowances, &summary.TotalDeductions,
		&summary.TotalTax, &summary.TotalGrossSalary, &summary.TotalNetSalary,
		&summary.ProcessedCount, &summary.ApprovedCount, &summary.PaidCount, &summary.FailedCount,
	)
	if err != nil {
		return payroll.PayrollSummaryResponse{}, fmt.Errorf("failed to get payroll summary: %w", err)
	}

	return summary, nil
}
