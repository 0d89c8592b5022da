package payroll

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ItemType enum
type ItemType string

const (
	ItemTypePercentage ItemType = "percentage"
	ItemTypeFixed      ItemType = "fixed"
)

// PayItem is an allowance or a custom deduction configured for a company.
type PayItem struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    ItemType        `json:"type"`
	Value   decimal.Decimal `json:"value"`
	Enabled bool            `json:"enabled"`
}

// AmountFor resolves the item against a basic salary. Percentage items are a
// share of the basic salary; fixed items are taken as-is.
func (i PayItem) AmountFor(basicSalary decimal.Decimal) decimal.Decimal {
	if i.Type == ItemTypePercentage {
		return basicSalary.Mul(i.Value).Div(hundred).Round(2)
	}
	return i.Value.Round(2)
}

// TaxSource enum
type TaxSource string

const (
	TaxSourceUpload   TaxSource = "upload"
	TaxSourceTemplate TaxSource = "template"
	TaxSourceManual   TaxSource = "manual"
)

// TaxBracket covers [LowerBound, UpperBound). A nil UpperBound is open ended.
type TaxBracket struct {
	ID         string           `json:"id"`
	LowerBound decimal.Decimal  `json:"lower_bound"`
	UpperBound *decimal.Decimal `json:"upper_bound,omitempty"`
	Rate       decimal.Decimal  `json:"rate"`
	Enabled    bool             `json:"enabled"`
}

func (b TaxBracket) Contains(income decimal.Decimal) bool {
	if income.LessThan(b.LowerBound) {
		return false
	}
	return b.UpperBound == nil || income.LessThan(*b.UpperBound)
}

// TaxTable is the company's income tax configuration.
type TaxTable struct {
	Region       string       `json:"region"`
	BusinessType string       `json:"business_type"`
	Source       TaxSource    `json:"source"`
	Brackets     []TaxBracket `json:"brackets"`
}

// Match returns the first enabled bracket, in stored order, containing income.
func (t TaxTable) Match(income decimal.Decimal) (TaxBracket, bool) {
	for _, b := range t.Brackets {
		if b.Enabled && b.Contains(income) {
			return b, true
		}
	}
	return TaxBracket{}, false
}

// Warnings describes gaps and overlaps between enabled brackets. The table is
// stored regardless; these are surfaced so an operator can fix the data.
func (t TaxTable) Warnings() []string {
	var enabled []TaxBracket
	for _, b := range t.Brackets {
		if b.Enabled {
			enabled = append(enabled, b)
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].LowerBound.LessThan(enabled[j].LowerBound)
	})

	var warnings []string
	if enabled[0].LowerBound.IsPositive() {
		warnings = append(warnings, fmt.Sprintf("income below %s is not covered by any bracket", enabled[0].LowerBound))
	}
	for i := 1; i < len(enabled); i++ {
		prev, next := enabled[i-1], enabled[i]
		if prev.UpperBound == nil {
			warnings = append(warnings, fmt.Sprintf("open-ended bracket from %s overlaps bracket from %s", prev.LowerBound, next.LowerBound))
			continue
		}
		switch {
		case next.LowerBound.GreaterThan(*prev.UpperBound):
			warnings = append(warnings, fmt.Sprintf("gap between %s and %s", prev.UpperBound, next.LowerBound))
		case next.LowerBound.LessThan(*prev.UpperBound):
			warnings = append(warnings, fmt.Sprintf("brackets overlap between %s and %s", next.LowerBound, prev.UpperBound))
		}
	}
	if last := enabled[len(enabled)-1]; last.UpperBound != nil {
		warnings = append(warnings, fmt.Sprintf("income from %s upward is not covered by any bracket", last.UpperBound))
	}
	return warnings
}

// PayrollSettings - Company payroll configuration
type PayrollSettings struct {
	ID         string
	CompanyID  string
	Allowances []PayItem
	Deductions []PayItem
	TaxTable   TaxTable
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PayrollStatus enum
type PayrollStatus string

const (
	PayrollStatusProcessed PayrollStatus = "processed"
	PayrollStatusApproved  PayrollStatus = "approved"
	PayrollStatusPaid      PayrollStatus = "paid"
	PayrollStatusFailed    PayrollStatus = "failed"
)

func (s PayrollStatus) Valid() bool {
	switch s {
	case PayrollStatusProcessed, PayrollStatusApproved, PayrollStatusPaid, PayrollStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo encodes processed -> approved -> paid|failed.
func (s PayrollStatus) CanTransitionTo(next PayrollStatus) bool {
	switch s {
	case PayrollStatusProcessed:
		return next == PayrollStatusApproved
	case PayrollStatusApproved:
		return next == PayrollStatusPaid || next == PayrollStatusFailed
	default:
		return false
	}
}

// PaymentMethod enum
type PaymentMethod string

const (
	PaymentMethodStaffpesaWallet PaymentMethod = "staffpesa_wallet"
	PaymentMethodBankTransfer    PaymentMethod = "bank_transfer"
)

// PayrollRecord - one employee's pay for one period
type PayrollRecord struct {
	ID                string
	CompanyID         string
	EmployeeID        string
	PeriodMonth       int
	PeriodYear        int
	BasicSalary       decimal.Decimal
	TotalAllowances   decimal.Decimal
	TotalDeductions   decimal.Decimal
	AllowancesDetail  map[string]decimal.Decimal // {"Housing": 15000}
	DeductionsDetail  map[string]decimal.Decimal // {"Income Tax": 9000, "SACCO": 2000}
	TaxAmount         decimal.Decimal
	TaxRate           decimal.Decimal
	TaxBracketMatched bool
	GrossSalary       decimal.Decimal
	NetSalary         decimal.Decimal
	Status            PayrollStatus
	ProcessedBy       *string
	ApprovedBy        *string
	ApprovedAt        *time.Time
	PaymentMethod     *PaymentMethod
	PaymentReference  *string
	FailureReason     *string
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Joined fields
	EmployeeName *string
	EmployeeCode *string
}

// PaymentOutcome is the per-record result of a payment batch.
type PaymentOutcome string

const (
	PaymentOutcomePaid      PaymentOutcome = "paid"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
	PaymentOutcomeUnpayable PaymentOutcome = "unpayable"
	PaymentOutcomeRejected  PaymentOutcome = "rejected"
	PaymentOutcomeNotFound  PaymentOutcome = "not_found"
)

type PaymentResult struct {
	RecordID  string
	Outcome   PaymentOutcome
	Method    *PaymentMethod
	Reference *string
	Reason    string
}

// ReprocessPolicy decides what "process" does when the period already has records.
type ReprocessPolicy string

const (
	ReprocessOverwrite ReprocessPolicy = "overwrite"
	ReprocessReject    ReprocessPolicy = "reject"
)

// UnmatchedBracketPolicy decides what happens when no tax bracket matches.
type UnmatchedBracketPolicy string

const (
	UnmatchedBracketZero   UnmatchedBracketPolicy = "zero"
	UnmatchedBracketReject UnmatchedBracketPolicy = "reject"
)

type Policy struct {
	Reprocess        ReprocessPolicy
	UnmatchedBracket UnmatchedBracketPolicy
}

// DefaultPolicy keeps the long-standing behaviour: overwrite on reprocess and
// zero tax when no bracket matches.
func DefaultPolicy() Policy {
	return Policy{
		Reprocess:        ReprocessOverwrite,
		UnmatchedBracket: UnmatchedBracketZero,
	}
}
