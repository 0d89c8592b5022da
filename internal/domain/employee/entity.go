package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the read-only view payroll needs: identity, pay and payout details.
type Employee struct {
	ID               string
	CompanyID        string
	EmployeeCode     string
	FullName         string
	Email            *string
	EmploymentStatus EmploymentStatus
	BaseSalary       *decimal.Decimal
	Wallet           *StaffpesaWallet
	BankAccounts     []BankAccount
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

// StaffpesaWallet is the employee's mobile wallet on the Staffpesa rail.
type StaffpesaWallet struct {
	WalletID    string
	PhoneNumber string
}

type BankAccount struct {
	ID                string
	BankName          string
	BankCode          *string
	AccountNumber     string
	AccountHolderName string
	IsPrimary         bool
}

// HasBaseSalary reports whether a positive base salary is configured.
func (e Employee) HasBaseSalary() bool {
	return e.BaseSalary != nil && e.BaseSalary.IsPositive()
}

// PrimaryBankAccount returns the account flagged primary, falling back to the
// first one on file.
func (e Employee) PrimaryBankAccount() (BankAccount, bool) {
	for _, acc := range e.BankAccounts {
		if acc.IsPrimary {
			return acc, true
		}
	}
	if len(e.BankAccounts) > 0 {
		return e.BankAccounts[0], true
	}
	return BankAccount{}, false
}
