package query

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/econdash/pkg/indicator"
	"github.com/nicktill/econdash/pkg/registry"
	"github.com/nicktill/econdash/pkg/storage/memory"
)

func row(code string, year int, v indicator.Value) indicator.Row {
	return indicator.Row{CountryName: "Country " + code, CountryCode: code, Year: year, Value: v}
}

func some(f float64) indicator.Value { return indicator.Some(f) }

func newStore(t *testing.T, tables ...*indicator.Table) *memory.Store {
	t.Helper()
	reg := registry.New()
	for _, tbl := range tables {
		require.NoError(t, reg.Register(registry.Entry{
			Key: tbl.Key, Title: "Title of " + tbl.Key, Kind: registry.KindBase, Source: tbl.Key + ".csv",
		}))
	}
	store, err := memory.New(reg, tables, tables[0].Key, tables[0].Key)
	require.NoError(t, err)
	return store
}

type skipCounter struct{ keys []string }

func (s *skipCounter) MetricSkipped(key string) { s.keys = append(s.keys, key) }

func TestExecute_OmitsCountriesWithoutRows(t *testing.T) {
	x := &indicator.Table{Key: "x", Rows: []indicator.Row{
		row("A", 2000, some(1)),
		row("A", 2001, some(2)),
		row("B", 1999, some(3)),
		row("B", 2002, some(4)),
	}}
	engine := NewEngine(newStore(t, x))

	got := engine.Execute(Request{Countries: []string{"A", "B"}, Metrics: []string{"x"}, StartYear: 2000, EndYear: 2001})

	require.Contains(t, got, "x")
	assert.Equal(t, "Title of x", got["x"].Label)
	assert.Equal(t, map[string]CountrySeries{
		"A": {CountryName: "Country A", Years: []int{2000, 2001}, Values: []float64{1, 2}},
	}, got["x"].Series)
}

func TestExecute_OmitsMetricWithoutRows(t *testing.T) {
	x := &indicator.Table{Key: "x", Rows: []indicator.Row{
		row("A", 2000, indicator.Missing()),
		row("A", 2001, indicator.Missing()),
		row("B", 2005, some(4)),
	}}
	engine := NewEngine(newStore(t, x))

	got := engine.Execute(Request{Countries: []string{"A", "B"}, Metrics: []string{"x"}, StartYear: 2000, EndYear: 2001})
	assert.Empty(t, got)
	assert.NotNil(t, got, "an empty result still encodes as {}")
}

func TestExecute_SkipsUnknownMetricsSilently(t *testing.T) {
	x := &indicator.Table{Key: "x", Rows: []indicator.Row{row("A", 2000, some(1))}}
	skips := &skipCounter{}
	engine := NewEngine(newStore(t, x), WithObserver(skips))

	got := engine.Execute(Request{
		Countries: []string{"A"},
		Metrics:   []string{"nonexistent", "x", "also_missing"},
		StartYear: 2000,
		EndYear:   2000,
	})

	assert.Len(t, got, 1)
	assert.Contains(t, got, "x")
	assert.NotContains(t, got, "nonexistent")
	assert.Equal(t, []string{"nonexistent", "also_missing"}, skips.keys)
}

func TestExecute_DropsMissingAndSortsYears(t *testing.T) {
	x := &indicator.Table{Key: "x", Rows: []indicator.Row{
		row("A", 2003, some(3)),
		row("A", 2001, some(1)),
		row("A", 2002, indicator.Missing()),
		row("A", 2000, some(0)),
	}}
	engine := NewEngine(newStore(t, x))

	got := engine.Execute(Request{Countries: []string{"A"}, Metrics: []string{"x"}, StartYear: 1990, EndYear: 2020})
	s := got["x"].Series["A"]
	assert.Equal(t, []int{2000, 2001, 2003}, s.Years)
	assert.Equal(t, []float64{0, 1, 3}, s.Values, "zero is a value, not missing")

	// source table order untouched
	assert.Equal(t, 2003, x.Rows[0].Year)
}

func TestExecute_ReversedRangeIsEmpty(t *testing.T) {
	x := &indicator.Table{Key: "x", Rows: []indicator.Row{row("A", 2000, some(1))}}
	engine := NewEngine(newStore(t, x))

	got := engine.Execute(Request{Countries: []string{"A"}, Metrics: []string{"x"}, StartYear: 2001, EndYear: 1999})
	assert.Empty(t, got)
}

func TestExecute_RepeatedMetricKey(t *testing.T) {
	x := &indicator.Table{Key: "x", Rows: []indicator.Row{row("A", 2000, some(1))}}
	engine := NewEngine(newStore(t, x))

	got := engine.Execute(Request{Countries: []string{"A"}, Metrics: []string{"x", "x"}, StartYear: 2000, EndYear: 2000})
	require.Len(t, got, 1)
	assert.Equal(t, []int{2000}, got["x"].Series["A"].Years)
}

// Every returned series is in range, ascending, free of missing values, and
// matches a direct filter of the table.
func TestExecute_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	codes := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}

	for iter := 0; iter < 40; iter++ {
		var tables []*indicator.Table
		for _, key := range []string{"m1", "m2"} {
			tbl := &indicator.Table{Key: key}
			for _, code := range codes {
				for y := 1990; y < 2000; y++ {
					v := indicator.Missing()
					if rng.Intn(3) > 0 {
						v = some(rng.Float64() * 100)
					}
					tbl.Rows = append(tbl.Rows, row(code, y, v))
				}
			}
			rng.Shuffle(len(tbl.Rows), func(i, j int) { tbl.Rows[i], tbl.Rows[j] = tbl.Rows[j], tbl.Rows[i] })
			tables = append(tables, tbl)
		}
		engine := NewEngine(newStore(t, tables...))

		req := Request{
			Countries: codes[:1+rng.Intn(len(codes))],
			Metrics:   []string{"m1", "unknown", "m2"},
			StartYear: 1988 + rng.Intn(8),
		}
		req.EndYear = req.StartYear + rng.Intn(6)
		got := engine.Execute(req)

		assert.NotContains(t, got, "unknown")

		for _, tbl := range tables {
			want := make(map[string][]int)
			for _, r := range tbl.Rows {
				if !r.Value.IsMissing() && r.Year >= req.StartYear && r.Year <= req.EndYear && contains(req.Countries, r.CountryCode) {
					want[r.CountryCode] = append(want[r.CountryCode], r.Year)
				}
			}

			ms, ok := got[tbl.Key]
			if len(want) == 0 {
				assert.False(t, ok, "metric with no rows must be omitted")
				continue
			}
			require.True(t, ok)
			require.Len(t, ms.Series, len(want))

			for code, s := range ms.Series {
				require.Equal(t, len(s.Years), len(s.Values))
				assert.True(t, sort.IntsAreSorted(s.Years))
				for i := 1; i < len(s.Years); i++ {
					assert.Less(t, s.Years[i-1], s.Years[i])
				}
				for _, y := range s.Years {
					assert.GreaterOrEqual(t, y, req.StartYear)
					assert.LessOrEqual(t, y, req.EndYear)
				}
				sort.Ints(want[code])
				assert.Equal(t, want[code], s.Years)
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestMetadata(t *testing.T) {
	x := &indicator.Table{Key: "x", Rows: []indicator.Row{
		{CountryName: "Zimbabwe", CountryCode: "ZWE", Year: 1960, Value: some(1)},
		{CountryName: "Aruba", CountryCode: "ABW", Year: 2024},
	}}
	y := &indicator.Table{Key: "y", Rows: []indicator.Row{row("A", 2000, some(1))}}
	engine := NewEngine(newStore(t, x, y))

	md := engine.Metadata()
	assert.Equal(t, []indicator.Country{{Name: "Aruba", Code: "ABW"}, {Name: "Zimbabwe", Code: "ZWE"}}, md.Countries)
	assert.Equal(t, indicator.YearBounds{Min: 1960, Max: 2024}, md.Years)
	assert.Equal(t, map[string]string{"x": "Title of x", "y": "Title of y"}, md.Metrics)
}
