// Package taxsheet reads tax bracket tables from uploaded CSV or Excel files.
//
// The first row is a header naming the columns lower_bound, upper_bound, rate
// and optionally enabled, in any order. A blank upper bound is open ended.
package taxsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
	"github.com/xuri/excelize/v2"
)

const (
	colLower   = "lower_bound"
	colUpper   = "upper_bound"
	colRate    = "rate"
	colEnabled = "enabled"
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(filename string, r io.Reader) ([]payroll.TaxBracket, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		return nil, payroll.ErrUnsupportedTaxSheet
	}
	if err != nil {
		return nil, err
	}

	return parseRows(rows)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: %v", payroll.ErrMalformedTaxSheet, perr)
		}
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payroll.ErrMalformedTaxSheet, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payroll.ErrMalformedTaxSheet, err)
	}
	return rows, nil
}

func parseRows(rows [][]string) ([]payroll.TaxBracket, error) {
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, payroll.ErrEmptyTaxSheet
	}

	columns, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 1 {
		return nil, payroll.ErrEmptyTaxSheet
	}

	var (
		errs     validator.ValidationErrors
		brackets = make([]payroll.TaxBracket, 0, len(rows)-1)
	)
	for i, row := range rows[1:] {
		// Spreadsheet row numbers are 1-based and include the header.
		prefix := fmt.Sprintf("row %d.", i+2)

		b := payroll.TaxBracket{Enabled: true}

		lower, ok := parseAmount(cell(row, columns[colLower]))
		switch {
		case !ok:
			errs.Add(prefix+colLower, "must be a number")
		case lower.IsNegative():
			errs.Add(prefix+colLower, "must be non-negative")
		}
		b.LowerBound = lower

		if raw := cell(row, columns[colUpper]); raw != "" {
			upper, ok := parseAmount(raw)
			switch {
			case !ok:
				errs.Add(prefix+colUpper, "must be a number or blank")
			case !upper.GreaterThan(lower):
				errs.Add(prefix+colUpper, "must be greater than lower_bound")
			}
			b.UpperBound = &upper
		}

		rate, ok := parseRate(cell(row, columns[colRate]))
		switch {
		case !ok:
			errs.Add(prefix+colRate, "must be a number")
		case !validator.IsPercentage(rate):
			errs.Add(prefix+colRate, "must be between 0 and 100")
		}
		b.Rate = rate

		if idx, has := columns[colEnabled]; has {
			if raw := cell(row, idx); raw != "" {
				enabled, ok := parseBool(raw)
				if !ok {
					errs.Add(prefix+colEnabled, "must be true or false")
				}
				b.Enabled = enabled
			}
		}

		brackets = append(brackets, b)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return brackets, nil
}

func headerIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var errs validator.ValidationErrors
	for _, required := range []string{colLower, colUpper, colRate} {
		if _, ok := columns[required]; !ok {
			errs.Add("header", "missing column "+required)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	switch h {
	case "lower", "min", "from", "lowerbound":
		return colLower
	case "upper", "max", "to", "upperbound":
		return colUpper
	case "rate_percent", "rate_%", "percentage":
		return colRate
	}
	return h
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseRate accepts "15" and "15%".
func parseRate(raw string) (decimal.Decimal, bool) {
	if strings.HasSuffix(raw, "%") {
		return parseAmount(strings.TrimSpace(strings.TrimSuffix(raw, "%")))
	}
	return parseAmount(raw)
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// IsParseError reports whether err describes bad sheet content rather than an
// I/O failure.
func IsParseError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) ||
		errors.Is(err, payroll.ErrEmptyTaxSheet) ||
		errors.Is(err, payroll.ErrMalformedTaxSheet) ||
		errors.Is(err, payroll.ErrUnsupportedTaxSheet)
}
