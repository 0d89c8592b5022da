package payroll

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
)

// taxTemplate is a built-in bracket table for one region and business type.
// Bounds are monthly amounts in the region's currency.
type taxTemplate struct {
	Region       string
	BusinessType string
	Description  string
	Brackets     []bracketSpec
}

type bracketSpec struct {
	lower string
	upper string // "" = open ended
	rate  string
}

var taxTemplates = []taxTemplate{
	{
		Region:       "kenya",
		BusinessType: "standard",
		Description:  "Kenya PAYE monthly bands",
		Brackets: []bracketSpec{
			{"0", "24000", "10"},
			{"24000", "32333", "25"},
			{"32333", "500000", "30"},
			{"500000", "800000", "32.5"},
			{"800000", "", "35"},
		},
	},
	{
		Region:       "kenya",
		BusinessType: "small_business",
		Description:  "Kenya turnover-tax style flat band",
		Brackets: []bracketSpec{
			{"0", "", "3"},
		},
	},
	{
		Region:       "uganda",
		BusinessType: "standard",
		Description:  "Uganda PAYE monthly bands (residents)",
		Brackets: []bracketSpec{
			{"0", "235000", "0"},
			{"235000", "335000", "10"},
			{"335000", "410000", "20"},
			{"410000", "10000000", "30"},
			{"10000000", "", "40"},
		},
	},
	{
		Region:       "tanzania",
		BusinessType: "standard",
		Description:  "Tanzania PAYE monthly bands (mainland)",
		Brackets: []bracketSpec{
			{"0", "270000", "0"},
			{"270000", "520000", "8"},
			{"520000", "760000", "20"},
			{"760000", "1000000", "25"},
			{"1000000", "", "30"},
		},
	},
	{
		Region:       "rwanda",
		BusinessType: "standard",
		Description:  "Rwanda PAYE monthly bands",
		Brackets: []bracketSpec{
			{"0", "60000", "0"},
			{"60000", "100000", "10"},
			{"100000", "200000", "20"},
			{"200000", "", "30"},
		},
	},
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(s, "-", " ")), "_"))
}

func findTaxTemplate(region, businessType string) (taxTemplate, bool) {
	region, businessType = normalizeKey(region), normalizeKey(businessType)
	for _, t := range taxTemplates {
		if t.Region == region && t.BusinessType == businessType {
			return t, true
		}
	}
	return taxTemplate{}, false
}

func (t taxTemplate) brackets() []payroll.TaxBracket {
	out := make([]payroll.TaxBracket, 0, len(t.Brackets))
	for _, b := range t.Brackets {
		bracket := payroll.TaxBracket{
			LowerBound: decimal.RequireFromString(b.lower),
			Rate:       decimal.RequireFromString(b.rate),
			Enabled:    true,
		}
		if b.upper != "" {
			upper := decimal.RequireFromString(b.upper)
			bracket.UpperBound = &upper
		}
		out = append(out, bracket)
	}
	return out
}

func listTaxTemplates() []payroll.TaxTemplateResponse {
	sorted := make([]taxTemplate, len(taxTemplates))
	copy(sorted, taxTemplates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Region != sorted[j].Region {
			return sorted[i].Region < sorted[j].Region
		}
		return sorted[i].BusinessType < sorted[j].BusinessType
	})

	out := make([]payroll.TaxTemplateResponse, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, payroll.TaxTemplateResponse{
			Region:       t.Region,
			BusinessType: t.BusinessType,
			Description:  t.Description,
			Brackets:     mapToBracketResponses(t.brackets()),
		})
	}
	return out
}
