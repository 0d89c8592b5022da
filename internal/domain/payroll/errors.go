package payroll

import "errors"

var (
	ErrPayrollSettingsNotFound = errors.New("payroll settings not found")
	ErrPayrollSettingsRequired = errors.New("payroll settings must be configured before processing payroll")
	ErrPayItemNotFound         = errors.New("payroll item not found")
	ErrTaxBracketNotFound      = errors.New("tax bracket not found")
	ErrTaxTemplateNotFound     = errors.New("no tax template for this region and business type")
	ErrNoMatchingTaxBracket    = errors.New("no tax bracket matches the taxable income")
	ErrPayrollRecordNotFound   = errors.New("payroll record not found")
	ErrPayrollAlreadyProcessed = errors.New("payroll already processed for this period")
	ErrInvalidStatusTransition = errors.New("payroll record is not in a state that allows this action")
	ErrInvalidPeriod           = errors.New("invalid payroll period")
	ErrNoActiveEmployees       = errors.New("no active employees to process")
	ErrUnsupportedTaxSheet     = errors.New("unsupported tax bracket file, expected .csv or .xlsx")
	ErrEmptyTaxSheet           = errors.New("tax bracket file has no rows")
	ErrMalformedTaxSheet       = errors.New("tax bracket file could not be read")
	ErrNoPaymentMethod         = errors.New("employee has no wallet or bank account on file")
)
