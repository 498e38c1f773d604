// Package derive computes indicators from other indicators.
//
// Every transform follows the same template: sort the parent table by
// (CountryCode, Year), walk each country's rows in order, and compute a new
// value from the current and previous observation. The first row of each
// country has no predecessor and is always missing. Identifier columns are
// copied unchanged; only Value is replaced.
//
// New transforms are added with Register and referenced by name from
// configuration. Nothing downstream of the store needs to know about them.
package derive

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/nicktill/econdash/pkg/indicator"
)

// Transform turns a parent table into a derived table named key
type Transform interface {
	Name() string
	Apply(src *indicator.Table, key string) *indicator.Table
}

// Derivation declares one computed metric
type Derivation struct {
	Key       string
	Title     string
	From      string
	Transform string
}

// StepFunc computes a row's value from its predecessor in the same country
type StepFunc func(prev, cur indicator.Value) indicator.Value

// Trailing is a Transform built from a StepFunc
type Trailing struct {
	name string
	step StepFunc
}

// NewTrailing creates a trailing-difference transform
func NewTrailing(name string, step StepFunc) *Trailing {
	return &Trailing{name: name, step: step}
}

// Name returns the transform's registered name
func (t *Trailing) Name() string { return t.name }

// Apply sorts a copy of src by (CountryCode, Year) and replaces each value
// with step(previous, current). src is not modified.
func (t *Trailing) Apply(src *indicator.Table, key string) *indicator.Table {
	rows := make([]indicator.Row, len(src.Rows))
	copy(rows, src.Rows)

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CountryCode != rows[j].CountryCode {
			return rows[i].CountryCode < rows[j].CountryCode
		}
		return rows[i].Year < rows[j].Year
	})

	out := make([]indicator.Row, len(rows))
	for i, r := range rows {
		out[i] = r
		if i == 0 || rows[i-1].CountryCode != r.CountryCode {
			out[i].Value = indicator.Missing()
			continue
		}
		out[i].Value = t.step(rows[i-1].Value, r.Value)
	}

	return &indicator.Table{
		Key:         key,
		Rows:        out,
		Fingerprint: derivedFingerprint(src.Fingerprint, key, t.name),
	}
}

// PercentChange is (cur - prev) / prev * 100. A missing or zero
// predecessor, or a missing current value, yields missing.
func PercentChange(prev, cur indicator.Value) indicator.Value {
	p, ok := prev.Float()
	if !ok || p == 0 {
		return indicator.Missing()
	}
	c, ok := cur.Float()
	if !ok {
		return indicator.Missing()
	}
	return indicator.Some((c - p) / p * 100)
}

// Difference is cur - prev; missing if either side is missing
func Difference(prev, cur indicator.Value) indicator.Value {
	p, ok := prev.Float()
	if !ok {
		return indicator.Missing()
	}
	c, ok := cur.Float()
	if !ok {
		return indicator.Missing()
	}
	return indicator.Some(c - p)
}

const (
	PctChange = "pct_change"
	Diff      = "diff"
)

var (
	mu         sync.RWMutex
	transforms = map[string]Transform{
		PctChange: NewTrailing(PctChange, PercentChange),
		Diff:      NewTrailing(Diff, Difference),
	}
)

// Register makes a transform available by name
func Register(t Transform) error {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := transforms[t.Name()]; exists {
		return fmt.Errorf("transform %q already registered", t.Name())
	}
	transforms[t.Name()] = t
	return nil
}

// Lookup finds a transform by name
func Lookup(name string) (Transform, bool) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := transforms[name]
	return t, ok
}

// DefaultDerivations returns the computed metrics shipped with the dashboard
func DefaultDerivations() []Derivation {
	return []Derivation{
		{
			Key:       "population_growth",
			Title:     "Population Growth (% annual)",
			From:      "total_population",
			Transform: PctChange,
		},
	}
}

func derivedFingerprint(parent uint64, key, transform string) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], parent)
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(key)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(transform)
	return d.Sum64()
}
