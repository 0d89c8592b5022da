package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/employee"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
)

// IncomeTaxLabel is the deductions breakdown key for the bracket tax.
const IncomeTaxLabel = "Income Tax"

var hundred = decimal.NewFromInt(100)

// ComputePayroll derives one employee's record for a period. It is pure: no
// I/O and no mutation of its inputs.
//
// gross = basic + enabled allowances
// tax   = gross * rate of the first enabled bracket containing gross
// net   = gross - (tax + enabled custom deductions)
func ComputePayroll(emp employee.Employee, settings payroll.PayrollSettings, month, year int, unmatched payroll.UnmatchedBracketPolicy) (payroll.PayrollRecord, error) {
	if !emp.HasBaseSalary() {
		return payroll.PayrollRecord{}, fmt.Errorf("employee %s has no base salary", emp.ID)
	}
	basic := emp.BaseSalary.Round(2)

	totalAllowances := decimal.Zero
	allowancesDetail := make(map[string]decimal.Decimal)
	for _, item := range settings.Allowances {
		if !item.Enabled {
			continue
		}
		amount := item.AmountFor(basic)
		totalAllowances = totalAllowances.Add(amount)
		allowancesDetail[item.Name] = allowancesDetail[item.Name].Add(amount)
	}

	grossSalary := basic.Add(totalAllowances)

	taxAmount := decimal.Zero
	taxRate := decimal.Zero
	bracket, matched := settings.TaxTable.Match(grossSalary)
	if matched {
		taxRate = bracket.Rate
		taxAmount = grossSalary.Mul(bracket.Rate).Div(hundred).Round(2)
	} else if unmatched == payroll.UnmatchedBracketReject {
		return payroll.PayrollRecord{}, fmt.Errorf("employee %s, taxable income %s: %w", emp.ID, grossSalary.StringFixed(2), payroll.ErrNoMatchingTaxBracket)
	}

	deductionsDetail := map[string]decimal.Decimal{IncomeTaxLabel: taxAmount}
	totalDeductions := taxAmount
	for _, item := range settings.Deductions {
		if !item.Enabled {
			continue
		}
		amount := item.AmountFor(basic)
		totalDeductions = totalDeductions.Add(amount)
		deductionsDetail[item.Name] = deductionsDetail[item.Name].Add(amount)
	}

	return payroll.PayrollRecord{
		CompanyID:         emp.CompanyID,
		EmployeeID:        emp.ID,
		PeriodMonth:       month,
		PeriodYear:        year,
		BasicSalary:       basic,
		TotalAllowances:   totalAllowances,
		TotalDeductions:   totalDeductions,
		AllowancesDetail:  allowancesDetail,
		DeductionsDetail:  deductionsDetail,
		TaxAmount:         taxAmount,
		TaxRate:           taxRate,
		TaxBracketMatched: matched,
		GrossSalary:       grossSalary,
		NetSalary:         grossSalary.Sub(totalDeductions),
		Status:            payroll.PayrollStatusProcessed,
	}, nil
}
