package indicator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		missing bool
	}{
		{raw: "123.45", want: 123.45},
		{raw: `"42"`, want: 42},
		{raw: "  -7.5 ", want: -7.5},
		{raw: "1e3", want: 1000},
		{raw: "0", want: 0},
		{raw: "", missing: true},
		{raw: `""`, missing: true},
		{raw: "..", missing: true},
		{raw: "n/a", missing: true},
		{raw: "NaN", missing: true},
		{raw: "inf", missing: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v := ParseValue(tt.raw)
			if tt.missing {
				assert.True(t, v.IsMissing())
				return
			}
			f, ok := v.Float()
			require.True(t, ok)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestSomeRejectsNonFinite(t *testing.T) {
	assert.True(t, Some(math.NaN()).IsMissing())
	assert.True(t, Some(math.Inf(1)).IsMissing())
	assert.True(t, Some(math.Inf(-1)).IsMissing())
	assert.False(t, Some(0).IsMissing())
}

func TestValueJSON(t *testing.T) {
	data, err := json.Marshal([]Value{Some(1.5), Missing()})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null]`, string(data))

	var back []Value
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 2)
	f, ok := back[0].Float()
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)
	assert.True(t, back[1].IsMissing())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "", Missing().String())
	assert.Equal(t, "10", Some(10).String())
	assert.Equal(t, "0.1", Some(0.1).String())
	assert.Equal(t, "1402112000", Some(1402112000).String())
}

func TestTableYearBounds(t *testing.T) {
	var empty Table
	_, ok := empty.YearBounds()
	assert.False(t, ok)

	tbl := &Table{Rows: []Row{
		{CountryCode: "A", Year: 2001, Value: Missing()},
		{CountryCode: "A", Year: 1960, Value: Some(1)},
		{CountryCode: "B", Year: 2023, Value: Missing()},
	}}
	b, ok := tbl.YearBounds()
	require.True(t, ok)
	assert.Equal(t, YearBounds{Min: 1960, Max: 2023}, b)
	assert.True(t, b.Contains(1960))
	assert.False(t, b.Contains(2024))
}

func TestTableCountries(t *testing.T) {
	tbl := &Table{Rows: []Row{
		{CountryName: "Zambia", CountryCode: "ZMB", Year: 2000},
		{CountryName: "Aruba", CountryCode: "ABW", Year: 2000},
		{CountryName: "Zambia", CountryCode: "ZMB", Year: 2001},
		{CountryName: "Aruba", CountryCode: "ABW", Year: 2001},
	}}

	got := tbl.Countries()
	assert.Equal(t, []Country{
		{Name: "Aruba", Code: "ABW"},
		{Name: "Zambia", Code: "ZMB"},
	}, got)

	data, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"Country Name":"Aruba","Country Code":"ABW"}`, string(data))
}

func TestTableFilterPreservesOrder(t *testing.T) {
	tbl := &Table{Rows: []Row{
		{CountryCode: "B", Year: 2001},
		{CountryCode: "A", Year: 2000},
		{CountryCode: "B", Year: 2000},
	}}
	got := tbl.Filter(func(r Row) bool { return r.CountryCode == "B" })
	require.Len(t, got, 2)
	assert.Equal(t, 2001, got[0].Year)
	assert.Equal(t, 2000, got[1].Year)
}
