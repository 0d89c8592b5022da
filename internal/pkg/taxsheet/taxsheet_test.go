package taxsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParse_CSV(t *testing.T) {
	sheet := strings.Join([]string{
		"Lower Bound,Upper Bound,Rate,Enabled",
		"0,24000,10,true",
		"24000,\"32,333\",25%,yes",
		"32333,,30,",
		"",
	}, "\n")

	brackets, err := NewParser().Parse("kenya.CSV", strings.NewReader(sheet))
	require.NoError(t, err)
	require.Len(t, brackets, 3)

	assert.True(t, brackets[0].LowerBound.Equal(d("0")))
	require.NotNil(t, brackets[0].UpperBound)
	assert.True(t, brackets[0].UpperBound.Equal(d("24000")))
	assert.True(t, brackets[0].Rate.Equal(d("10")))

	require.NotNil(t, brackets[1].UpperBound)
	assert.True(t, brackets[1].UpperBound.Equal(d("32333")))
	assert.True(t, brackets[1].Rate.Equal(d("25")))

	assert.Nil(t, brackets[2].UpperBound)
	assert.True(t, brackets[2].Enabled)
}

func TestParse_ColumnsInAnyOrder(t *testing.T) {
	sheet := "rate,upper_bound,lower_bound\n15,1000,0\n"

	brackets, err := NewParser().Parse("t.csv", strings.NewReader(sheet))
	require.NoError(t, err)
	require.Len(t, brackets, 1)
	assert.True(t, brackets[0].Rate.Equal(d("15")))
	assert.True(t, brackets[0].LowerBound.IsZero())
}

func TestParse_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"lower_bound", "upper_bound", "rate", "enabled"},
		{0, 10000, 5, "true"},
		{10000, nil, 20, "no"},
	}
	for i, row := range rows {
		for j, v := range row {
			if v == nil {
				continue
			}
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", name, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	brackets, err := NewParser().Parse("brackets.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, brackets, 2)

	assert.True(t, brackets[0].UpperBound.Equal(d("10000")))
	assert.True(t, brackets[0].Enabled)
	assert.Nil(t, brackets[1].UpperBound)
	assert.True(t, brackets[1].Rate.Equal(d("20")))
	assert.False(t, brackets[1].Enabled)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := NewParser().Parse("brackets.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, payroll.ErrUnsupportedTaxSheet)
	assert.True(t, IsParseError(err))
}

func TestParse_MalformedFiles(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{"csv with unterminated quote", "brackets.csv", "lower_bound,upper_bound,rate\n0,\"100,10\n"},
		{"xlsx that is not a zip archive", "brackets.xlsx", "lower_bound,upper_bound,rate\n0,100,10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(tt.filename, strings.NewReader(tt.content))
			assert.ErrorIs(t, err, payroll.ErrMalformedTaxSheet)
			assert.True(t, IsParseError(err))
		})
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := NewParser().Parse("t.csv", strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, payroll.ErrEmptyTaxSheet)

	_, err = NewParser().Parse("t.csv", strings.NewReader("lower_bound,upper_bound,rate\n"))
	assert.ErrorIs(t, err, payroll.ErrEmptyTaxSheet)
}

func TestParse_MissingHeaderColumn(t *testing.T) {
	_, err := NewParser().Parse("t.csv", strings.NewReader("lower_bound,rate\n0,10\n"))

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "missing column upper_bound", verrs.ToMap()["header"])
}

func TestParse_RowErrorsAreNumbered(t *testing.T) {
	sheet := strings.Join([]string{
		"lower_bound,upper_bound,rate",
		"0,1000,10",
		"abc,500,10",
		"1000,900,120",
	}, "\n")

	_, err := NewParser().Parse("t.csv", strings.NewReader(sheet))

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	m := verrs.ToMap()
	assert.Equal(t, "must be a number", m["row 3.lower_bound"])
	assert.Equal(t, "must be greater than lower_bound", m["row 4.upper_bound"])
	assert.Equal(t, "must be between 0 and 100", m["row 4.rate"])
	assert.True(t, IsParseError(err))
}
