package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/staffma/staffma-backend/internal/domain/employee"
	"github.com/staffma/staffma-backend/internal/pkg/database"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeSelect = `
	SELECT e.id, e.company_id, e.employee_code, e.full_name, e.email, e.employment_status,
		e.base_salary, e.created_at, e.updated_at,
		w.wallet_id, w.phone_number
	FROM employees e
	LEFT JOIN employee_wallets w ON w.employee_id = e.id
`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var (
		emp                employee.Employee
		walletID, walletPh *string
	)
	err := row.Scan(
		&emp.ID, &emp.CompanyID, &emp.EmployeeCode, &emp.FullName, &emp.Email, &emp.EmploymentStatus,
		&emp.BaseSalary, &emp.CreatedAt, &emp.UpdatedAt,
		&walletID, &walletPh,
	)
	if err != nil {
		return employee.Employee{}, err
	}
	if walletID != nil {
		emp.Wallet = &employee.StaffpesaWallet{WalletID: *walletID}
		if walletPh != nil {
			emp.Wallet.PhoneNumber = *walletPh
		}
	}
	return emp, nil
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string, companyID string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := employeeSelect + `WHERE e.id = $1 AND e.company_id = $2 AND e.deleted_at IS NULL`

	emp, err := scanEmployee(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}

	employees := []employee.Employee{emp}
	if err := e.attachBankAccounts(ctx, employees); err != nil {
		return employee.Employee{}, err
	}
	return employees[0], nil
}

// GetActiveByCompanyID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := employeeSelect + `
		WHERE e.company_id = $1 AND e.employment_status = $2 AND e.deleted_at IS NULL
		ORDER BY e.employee_code, e.id
	`

	rows, err := q.Query(ctx, query, companyID, employee.EmploymentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to get active employees: %w", err)
	}
	return e.collect(ctx, rows)
}

// GetByIDs implements employee.EmployeeRepository. Ids from another company
// are silently absent from the result.
func (e *employeeRepositoryImpl) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	ids = uuidsOnly(ids)
	if len(ids) == 0 {
		return []employee.Employee{}, nil
	}

	q := GetQuerier(ctx, e.db)

	query := employeeSelect + `
		WHERE e.id = ANY($1) AND e.company_id = $2 AND e.deleted_at IS NULL
		ORDER BY e.employee_code, e.id
	`

	rows, err := q.Query(ctx, query, ids, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get employees: %w", err)
	}
	return e.collect(ctx, rows)
}

func (e *employeeRepositoryImpl) collect(ctx context.Context, rows pgx.Rows) ([]employee.Employee, error) {
	employees := []employee.Employee{}
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}

	if err := e.attachBankAccounts(ctx, employees); err != nil {
		return nil, err
	}
	return employees, nil
}

// attachBankAccounts loads accounts for all employees in one query, primary first.
func (e *employeeRepositoryImpl) attachBankAccounts(ctx context.Context, employees []employee.Employee) error {
	if len(employees) == 0 {
		return nil
	}

	ids := make([]string, len(employees))
	index := make(map[string]int, len(employees))
	for i, emp := range employees {
		ids[i] = emp.ID
		index[emp.ID] = i
	}

	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id, employee_id, bank_name, bank_code, account_number, account_holder_name, is_primary
		FROM employee_bank_accounts
		WHERE employee_id = ANY($1)
		ORDER BY is_primary DESC, created_at, id
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to get bank accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			acc        employee.BankAccount
			employeeID string
		)
		if err := rows.Scan(&acc.ID, &employeeID, &acc.BankName, &acc.BankCode, &acc.AccountNumber, &acc.AccountHolderName, &acc.IsPrimary); err != nil {
			return fmt.Errorf("failed to scan bank account: %w", err)
		}
		if i, ok := index[employeeID]; ok {
			employees[i].BankAccounts = append(employees[i].BankAccounts, acc)
		}
	}
	return rows.Err()
}
