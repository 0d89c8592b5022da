package payroll

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSettings_NotConfigured(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	got, err := f.svc.GetSettings(ownerCtx())
	require.NoError(t, err)
	assert.False(t, got.Configured)
	assert.Equal(t, testCompany, got.CompanyID)
	assert.Empty(t, got.Allowances)
	assert.Empty(t, got.TaxTable.Brackets)
}

func TestUpdateSettings_ValidationErrors(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	_, err := f.svc.UpdateSettings(ownerCtx(), payroll.UpdatePayrollSettingsRequest{
		Allowances: []payroll.PayItemRequest{
			{Name: "", Type: "fixed", Value: decimal.NewFromInt(1)},
			{Name: "Bonus", Type: "percentage", Value: decimal.NewFromInt(150)},
		},
		Deductions: []payroll.PayItemRequest{
			{Name: "Loan", Type: "weekly", Value: decimal.NewFromInt(1)},
		},
		TaxTable: &payroll.TaxTableRequest{Brackets: []payroll.TaxBracketRequest{
			{LowerBound: decimal.NewFromInt(100), UpperBound: salary("50"), Rate: decimal.NewFromInt(10)},
		}},
	})

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	m := verrs.ToMap()
	assert.Contains(t, m, "allowances[0].name")
	assert.Contains(t, m, "allowances[1].value")
	assert.Contains(t, m, "deductions[0].type")
	assert.Contains(t, m, "tax_table.brackets[0].upper_bound")
}

func TestResetSettings(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())
	_, err := f.svc.UpdateSettings(ownerCtx(), *basicSettings())
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetSettings(ownerCtx()))
	require.NoError(t, f.svc.ResetSettings(ownerCtx()))

	got, err := f.svc.GetSettings(ownerCtx())
	require.NoError(t, err)
	assert.False(t, got.Configured)
}

func TestAllowanceCRUD(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	created, err := f.svc.AddAllowance(ownerCtx(), payroll.PayItemRequest{Name: "Housing", Type: "fixed", Value: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	require.Len(t, created.Allowances, 1)
	item := created.Allowances[0]
	assert.NotEmpty(t, item.ID)
	assert.True(t, item.Enabled)

	disabled := false
	updated, err := f.svc.UpdateAllowance(ownerCtx(), item.ID, payroll.PayItemRequest{Name: "Housing", Type: "percentage", Value: decimal.NewFromInt(12), Enabled: &disabled})
	require.NoError(t, err)
	require.Len(t, updated.Allowances, 1)
	assert.Equal(t, item.ID, updated.Allowances[0].ID)
	assert.Equal(t, "percentage", updated.Allowances[0].Type)
	assert.False(t, updated.Allowances[0].Enabled)

	// Enabled is kept when omitted.
	updated, err = f.svc.UpdateAllowance(ownerCtx(), item.ID, payroll.PayItemRequest{Name: "Housing", Type: "percentage", Value: decimal.NewFromInt(15)})
	require.NoError(t, err)
	assert.False(t, updated.Allowances[0].Enabled)

	_, err = f.svc.UpdateAllowance(ownerCtx(), "nope", payroll.PayItemRequest{Name: "X", Type: "fixed", Value: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, payroll.ErrPayItemNotFound)

	deleted, err := f.svc.DeleteAllowance(ownerCtx(), item.ID)
	require.NoError(t, err)
	assert.Empty(t, deleted.Allowances)

	_, err = f.svc.DeleteAllowance(ownerCtx(), item.ID)
	assert.ErrorIs(t, err, payroll.ErrPayItemNotFound)
}

func TestDeductionCRUD_SeparateFromAllowances(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	withAllowance, err := f.svc.AddAllowance(ownerCtx(), payroll.PayItemRequest{Name: "Housing", Type: "fixed", Value: decimal.NewFromInt(5000)})
	require.NoError(t, err)

	got, err := f.svc.AddDeduction(ownerCtx(), payroll.PayItemRequest{Name: "SACCO", Type: "fixed", Value: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	require.Len(t, got.Deductions, 1)
	assert.Len(t, got.Allowances, 1)

	_, err = f.svc.DeleteDeduction(ownerCtx(), withAllowance.Allowances[0].ID)
	assert.ErrorIs(t, err, payroll.ErrPayItemNotFound)

	got, err = f.svc.UpdateDeduction(ownerCtx(), got.Deductions[0].ID, payroll.PayItemRequest{Name: "SACCO", Type: "fixed", Value: decimal.NewFromInt(2500)})
	require.NoError(t, err)
	assert.True(t, got.Deductions[0].Value.Equal(decimal.NewFromInt(2500)))
}

func TestEditBeforeConfiguredIsNotFound(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	_, err := f.svc.DeleteAllowance(ownerCtx(), "any")
	assert.ErrorIs(t, err, payroll.ErrPayItemNotFound)

	_, err = f.svc.DeleteTaxBracket(ownerCtx(), "any")
	assert.ErrorIs(t, err, payroll.ErrTaxBracketNotFound)
}

func TestTaxBracketCRUD(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	table, err := f.svc.AddTaxBracket(ownerCtx(), payroll.TaxBracketRequest{LowerBound: decimal.Zero, UpperBound: salary("1000"), Rate: decimal.NewFromInt(5)})
	require.NoError(t, err)
	table, err = f.svc.AddTaxBracket(ownerCtx(), payroll.TaxBracketRequest{LowerBound: decimal.NewFromInt(2000), Rate: decimal.NewFromInt(15)})
	require.NoError(t, err)
	require.Len(t, table.Brackets, 2)
	assert.Equal(t, "manual", table.Source)
	// The 1000..2000 gap is reported, not rejected.
	require.NotEmpty(t, table.Warnings)
	assert.Contains(t, strings.Join(table.Warnings, "|"), "gap")

	table, err = f.svc.UpdateTaxBracket(ownerCtx(), table.Brackets[0].ID, payroll.TaxBracketRequest{LowerBound: decimal.Zero, UpperBound: salary("2000"), Rate: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Empty(t, table.Warnings)

	_, err = f.svc.UpdateTaxBracket(ownerCtx(), "missing", payroll.TaxBracketRequest{LowerBound: decimal.Zero, Rate: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, payroll.ErrTaxBracketNotFound)

	table, err = f.svc.DeleteTaxBracket(ownerCtx(), table.Brackets[1].ID)
	require.NoError(t, err)
	assert.Len(t, table.Brackets, 1)

	_, err = f.svc.AddTaxBracket(ownerCtx(), payroll.TaxBracketRequest{LowerBound: decimal.NewFromInt(-1), Rate: decimal.NewFromInt(101)})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.ToMap(), "lower_bound")
	assert.Contains(t, verrs.ToMap(), "rate")
}

func TestReplaceTaxTable(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	table, err := f.svc.ReplaceTaxTable(ownerCtx(), payroll.TaxTableRequest{
		Region:       "kenya",
		BusinessType: "standard",
		Brackets: []payroll.TaxBracketRequest{
			{LowerBound: decimal.Zero, Rate: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "kenya", table.Region)
	assert.Len(t, table.Brackets, 1)

	got, err := f.svc.GetTaxTable(ownerCtx())
	require.NoError(t, err)
	assert.Equal(t, table.Brackets[0].ID, got.Brackets[0].ID)
}

func TestLoadTaxTemplate(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	table, err := f.svc.LoadTaxTemplate(ownerCtx(), payroll.LoadTaxTemplateRequest{Region: "Kenya", BusinessType: "Standard"})
	require.NoError(t, err)
	assert.Equal(t, "template", table.Source)
	assert.Equal(t, "kenya", table.Region)
	require.Len(t, table.Brackets, 5)
	assert.Nil(t, table.Brackets[4].UpperBound)
	assert.Empty(t, table.Warnings)
	for _, b := range table.Brackets {
		assert.NotEmpty(t, b.ID)
	}

	_, err = f.svc.LoadTaxTemplate(ownerCtx(), payroll.LoadTaxTemplateRequest{Region: "atlantis", BusinessType: "standard"})
	assert.ErrorIs(t, err, payroll.ErrTaxTemplateNotFound)

	_, err = f.svc.LoadTaxTemplate(ownerCtx(), payroll.LoadTaxTemplateRequest{})
	assert.Error(t, err)
}

func TestListTaxTemplates_Sorted(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())

	templates, err := f.svc.ListTaxTemplates(ownerCtx())
	require.NoError(t, err)
	require.NotEmpty(t, templates)
	for i := 1; i < len(templates); i++ {
		prev, cur := templates[i-1], templates[i]
		assert.True(t, prev.Region < cur.Region || (prev.Region == cur.Region && prev.BusinessType < cur.BusinessType))
	}
}

func TestTaxTemplatesHaveNoGaps(t *testing.T) {
	for _, tmpl := range taxTemplates {
		table := payroll.TaxTable{Brackets: tmpl.brackets()}
		assert.Empty(t, table.Warnings(), "%s/%s", tmpl.Region, tmpl.BusinessType)
	}
}

func TestUploadTaxBrackets(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())
	f.svc = NewPayrollService(f.store, f.store, f.employees, f.disburser, stubSheetParser{
		brackets: []payroll.TaxBracket{
			{LowerBound: decimal.Zero, UpperBound: salary("100"), Rate: decimal.NewFromInt(1), Enabled: true},
			{LowerBound: decimal.NewFromInt(100), Rate: decimal.NewFromInt(2), Enabled: true},
		},
	}, Config{})

	_, err := f.svc.LoadTaxTemplate(ownerCtx(), payroll.LoadTaxTemplateRequest{Region: "kenya", BusinessType: "standard"})
	require.NoError(t, err)

	table, err := f.svc.UploadTaxBrackets(ownerCtx(), payroll.UploadTaxBracketsRequest{
		Filename: "brackets.csv",
		Content:  strings.NewReader("ignored"),
	})
	require.NoError(t, err)
	assert.Equal(t, "upload", table.Source)
	assert.Equal(t, "kenya", table.Region, "region carries over when not supplied")
	assert.Len(t, table.Brackets, 2)

	_, err = f.svc.UploadTaxBrackets(ownerCtx(), payroll.UploadTaxBracketsRequest{})
	assert.Error(t, err)
}

func TestUploadTaxBrackets_ParserErrorLeavesTable(t *testing.T) {
	f := newFixture(t, payroll.DefaultPolicy())
	f.svc = NewPayrollService(f.store, f.store, f.employees, f.disburser, stubSheetParser{err: payroll.ErrEmptyTaxSheet}, Config{})

	_, err := f.svc.LoadTaxTemplate(ownerCtx(), payroll.LoadTaxTemplateRequest{Region: "kenya", BusinessType: "standard"})
	require.NoError(t, err)

	_, err = f.svc.UploadTaxBrackets(ownerCtx(), payroll.UploadTaxBracketsRequest{Filename: "x.csv", Content: strings.NewReader("")})
	assert.ErrorIs(t, err, payroll.ErrEmptyTaxSheet)

	table, err := f.svc.GetTaxTable(ownerCtx())
	require.NoError(t, err)
	assert.Equal(t, "template", table.Source)
}
