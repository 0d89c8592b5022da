package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/employee"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func employeeWithSalary(id, salary string) employee.Employee {
	return employee.Employee{
		ID:               id,
		CompanyID:        "company-1",
		FullName:         "Employee " + id,
		EmploymentStatus: employee.EmploymentStatusActive,
		BaseSalary:       decPtr(salary),
	}
}

func kenyaBrackets() payroll.TaxTable {
	return payroll.TaxTable{
		Region:       "kenya",
		BusinessType: "standard",
		Source:       payroll.TaxSourceManual,
		Brackets: []payroll.TaxBracket{
			{ID: "b1", LowerBound: dec("0"), UpperBound: decPtr("24000"), Rate: dec("10"), Enabled: true},
			{ID: "b2", LowerBound: dec("24000"), UpperBound: decPtr("100000"), Rate: dec("25"), Enabled: true},
			{ID: "b3", LowerBound: dec("100000"), Rate: dec("30"), Enabled: true},
		},
	}
}

func TestComputePayroll_GrossIsBasicPlusAllowances(t *testing.T) {
	settings := payroll.PayrollSettings{
		Allowances: []payroll.PayItem{
			{Name: "Housing", Type: payroll.ItemTypePercentage, Value: dec("15"), Enabled: true},
			{Name: "Transport", Type: payroll.ItemTypeFixed, Value: dec("3000"), Enabled: true},
			{Name: "Disabled", Type: payroll.ItemTypeFixed, Value: dec("99999"), Enabled: false},
		},
		TaxTable: kenyaBrackets(),
	}

	rec, err := ComputePayroll(employeeWithSalary("e1", "50000"), settings, 3, 2025, payroll.UnmatchedBracketZero)
	require.NoError(t, err)

	// 50000 + 7500 + 3000
	assert.True(t, rec.GrossSalary.Equal(dec("60500")), rec.GrossSalary.String())
	assert.True(t, rec.TotalAllowances.Equal(dec("10500")))
	assert.True(t, rec.AllowancesDetail["Housing"].Equal(dec("7500")))
	assert.True(t, rec.AllowancesDetail["Transport"].Equal(dec("3000")))
	assert.NotContains(t, rec.AllowancesDetail, "Disabled")
	assert.Equal(t, payroll.PayrollStatusProcessed, rec.Status)
	assert.Equal(t, 3, rec.PeriodMonth)
	assert.Equal(t, 2025, rec.PeriodYear)
}

func TestComputePayroll_FlatRateOfMatchedBracket(t *testing.T) {
	settings := payroll.PayrollSettings{
		Deductions: []payroll.PayItem{
			{Name: "Pension", Type: payroll.ItemTypePercentage, Value: dec("5"), Enabled: true},
			{Name: "SACCO", Type: payroll.ItemTypeFixed, Value: dec("2000"), Enabled: true},
		},
		TaxTable: kenyaBrackets(),
	}

	rec, err := ComputePayroll(employeeWithSalary("e1", "50000"), settings, 1, 2025, payroll.UnmatchedBracketZero)
	require.NoError(t, err)

	// 50000 falls into the 25% bracket, applied to the whole amount.
	assert.True(t, rec.TaxBracketMatched)
	assert.True(t, rec.TaxRate.Equal(dec("25")))
	assert.True(t, rec.TaxAmount.Equal(dec("12500")))
	assert.True(t, rec.DeductionsDetail[IncomeTaxLabel].Equal(dec("12500")))
	assert.True(t, rec.DeductionsDetail["Pension"].Equal(dec("2500")))

	// net = gross - tax - custom deductions
	want := rec.GrossSalary.Sub(dec("12500")).Sub(dec("2500")).Sub(dec("2000"))
	assert.True(t, rec.NetSalary.Equal(want), rec.NetSalary.String())
	assert.True(t, rec.TotalDeductions.Equal(dec("17000")))
}

func TestComputePayroll_BracketBoundsAreHalfOpen(t *testing.T) {
	settings := payroll.PayrollSettings{TaxTable: kenyaBrackets()}

	rec, err := ComputePayroll(employeeWithSalary("e1", "24000"), settings, 1, 2025, payroll.UnmatchedBracketZero)
	require.NoError(t, err)
	assert.True(t, rec.TaxRate.Equal(dec("25")), "24000 belongs to the bracket starting at 24000")

	rec, err = ComputePayroll(employeeWithSalary("e1", "23999.99"), settings, 1, 2025, payroll.UnmatchedBracketZero)
	require.NoError(t, err)
	assert.True(t, rec.TaxRate.Equal(dec("10")))
}

func TestComputePayroll_FirstEnabledMatchWins(t *testing.T) {
	settings := payroll.PayrollSettings{
		TaxTable: payroll.TaxTable{Brackets: []payroll.TaxBracket{
			{LowerBound: dec("0"), UpperBound: decPtr("100000"), Rate: dec("40"), Enabled: false},
			{LowerBound: dec("0"), UpperBound: decPtr("100000"), Rate: dec("20"), Enabled: true},
			{LowerBound: dec("10000"), UpperBound: decPtr("100000"), Rate: dec("5"), Enabled: true},
		}},
	}

	rec, err := ComputePayroll(employeeWithSalary("e1", "30000"), settings, 1, 2025, payroll.UnmatchedBracketZero)
	require.NoError(t, err)
	assert.True(t, rec.TaxRate.Equal(dec("20")))
}

func TestComputePayroll_UnmatchedBracketZeroPolicy(t *testing.T) {
	settings := payroll.PayrollSettings{
		TaxTable: payroll.TaxTable{Brackets: []payroll.TaxBracket{
			{LowerBound: dec("0"), UpperBound: decPtr("10000"), Rate: dec("10"), Enabled: true},
		}},
		Deductions: []payroll.PayItem{
			{Name: "SACCO", Type: payroll.ItemTypeFixed, Value: dec("1000"), Enabled: true},
		},
	}

	rec, err := ComputePayroll(employeeWithSalary("e1", "50000"), settings, 1, 2025, payroll.UnmatchedBracketZero)
	require.NoError(t, err)
	assert.False(t, rec.TaxBracketMatched)
	assert.True(t, rec.TaxAmount.IsZero())
	assert.True(t, rec.NetSalary.Equal(dec("49000")))
}

func TestComputePayroll_UnmatchedBracketRejectPolicy(t *testing.T) {
	settings := payroll.PayrollSettings{}

	_, err := ComputePayroll(employeeWithSalary("e1", "50000"), settings, 1, 2025, payroll.UnmatchedBracketReject)
	assert.ErrorIs(t, err, payroll.ErrNoMatchingTaxBracket)
}

func TestComputePayroll_RoundsEachLine(t *testing.T) {
	settings := payroll.PayrollSettings{
		Allowances: []payroll.PayItem{
			{Name: "Housing", Type: payroll.ItemTypePercentage, Value: dec("3.333"), Enabled: true},
		},
		TaxTable: payroll.TaxTable{Brackets: []payroll.TaxBracket{
			{LowerBound: dec("0"), Rate: dec("12.5"), Enabled: true},
		}},
	}

	rec, err := ComputePayroll(employeeWithSalary("e1", "1234.56"), settings, 1, 2025, payroll.UnmatchedBracketZero)
	require.NoError(t, err)

	// 1234.56 * 3.333% = 41.147...
	assert.True(t, rec.AllowancesDetail["Housing"].Equal(dec("41.15")))
	assert.True(t, rec.GrossSalary.Equal(dec("1275.71")))
	// 1275.71 * 12.5% = 159.46375
	assert.True(t, rec.TaxAmount.Equal(dec("159.46")))
	assert.True(t, rec.NetSalary.Equal(dec("1116.25")))
}

func TestComputePayroll_RequiresBaseSalary(t *testing.T) {
	emp := employee.Employee{ID: "e1"}

	_, err := ComputePayroll(emp, payroll.PayrollSettings{}, 1, 2025, payroll.UnmatchedBracketZero)
	assert.Error(t, err)
}
