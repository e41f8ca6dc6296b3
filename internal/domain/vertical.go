package domain

import (
	"fmt"
	"math"
	"strings"
)

// Method is the velocity sampling scheme used at a vertical.
type Method string

const (
	MethodSinglePoint Method = "single-point"
	MethodTwoPoint    Method = "two-point"
	MethodThreePoint  Method = "three-point"
	MethodLeftEdge    Method = "left-edge"
	MethodRightEdge   Method = "right-edge"
)

// ParseMethod maps a field-sheet method code to a Method. The legacy numeric
// codes "1", "2" and "3" are accepted; an empty code means single-point.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1", "single", "single-point", "0.6":
		return MethodSinglePoint, nil
	case "2", "two", "two-point":
		return MethodTwoPoint, nil
	case "3", "three", "three-point":
		return MethodThreePoint, nil
	case "lew", "left", "left-edge", "left-edge-of-water":
		return MethodLeftEdge, nil
	case "rew", "right", "right-edge", "right-edge-of-water":
		return MethodRightEdge, nil
	default:
		return "", fmt.Errorf("%w: unknown method %q", ErrInvalidParameter, s)
	}
}

// IsEdge reports whether the method marks a bank anchor.
func (m Method) IsEdge() bool {
	return m == MethodLeftEdge || m == MethodRightEdge
}

// Reading is one current-meter count at a sampling depth.
type Reading struct {
	Revolutions float64 `json:"n"`
	Seconds     float64 `json:"t"`
}

// Vertical is one cross-section sampling point. Nil readings are missing;
// a present reading with zero revolutions registers no current.
type Vertical struct {
	Distance     float64  `json:"distance"`
	Depth        float64  `json:"depth"`
	Method       Method   `json:"method"`
	At02         *Reading `json:"at_02,omitempty"`
	At06         *Reading `json:"at_06,omitempty"`
	At08         *Reading `json:"at_08,omitempty"`
	MeterID      string   `json:"meter_id,omitempty"`
	AngleDegrees float64  `json:"angle_degrees,omitempty"`
	IndexValue   float64  `json:"index_value,omitempty"` // 0 means no correction
}

// VelocityRange bounds the velocities a meter is calibrated for. A zero
// range is unbounded.
type VelocityRange struct {
	Min float64 `json:"min_velocity,omitempty"`
	Max float64 `json:"max_velocity,omitempty"`
}

// Contains reports whether v lies inside the range.
func (r VelocityRange) Contains(v float64) bool {
	if r.Min == 0 && r.Max == 0 {
		return true
	}
	if v < r.Min {
		return false
	}
	return r.Max <= 0 || v <= r.Max
}

// MeterCalibration defines the linear meter equation V = A + B·(N/T).
type MeterCalibration struct {
	A                  float64       `json:"a"`
	B                  float64       `json:"b"`
	UncertaintyPercent float64       `json:"uncertainty,omitempty"`
	ValidRange         VelocityRange `json:"valid_range,omitempty"`
}

// DefaultCalibration is the propeller meter equation used when a session
// supplies none.
func DefaultCalibration() MeterCalibration {
	return MeterCalibration{A: 0.0012, B: 0.2534, UncertaintyPercent: 1.0}
}

// Meters holds the calibrations available to a session: a default plus any
// meter-specific overrides keyed by meter id.
type Meters struct {
	Default MeterCalibration
	ByID    map[string]MeterCalibration
}

// SingleMeter returns a Meters where every vertical uses cal.
func SingleMeter(cal MeterCalibration) Meters {
	return Meters{Default: cal}
}

// Lookup returns the calibration for a meter id and whether a specific
// calibration was found. Unknown or empty ids fall back to the default.
func (m Meters) Lookup(meterID string) (MeterCalibration, bool) {
	if meterID != "" {
		if cal, ok := m.ByID[meterID]; ok {
			return cal, true
		}
	}
	return m.Default, false
}

// VerticalRow is the loose field-sheet shape of a vertical as entered by
// operators, with one revolution/time column pair per sampling depth.
type VerticalRow struct {
	Distance *float64 `json:"distance"`
	Depth    *float64 `json:"depth"`
	Method   string   `json:"method"`
	N02      *float64 `json:"n_02d"`
	T02      *float64 `json:"t_02d"`
	N06      *float64 `json:"n_06d"`
	T06      *float64 `json:"t_06d"`
	N08      *float64 `json:"n_08d"`
	T08      *float64 `json:"t_08d"`
	MeterID  string   `json:"meter_id"`
	Angle    *float64 `json:"angle"`
	Index    *float64 `json:"index"`
}

// ParseVerticals converts field-sheet rows into typed verticals, preserving
// their order. Distances are not checked for monotonicity; the reducer
// tolerates minor reordering.
func ParseVerticals(rows []VerticalRow) ([]Vertical, error) {
	out := make([]Vertical, 0, len(rows))
	for i, row := range rows {
		v, err := parseVerticalRow(row)
		if err != nil {
			return nil, fmt.Errorf("vertical %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseVerticalRow(row VerticalRow) (Vertical, error) {
	method, err := ParseMethod(row.Method)
	if err != nil {
		return Vertical{}, err
	}

	v := Vertical{
		Distance: valueOrZero(row.Distance),
		Depth:    valueOrZero(row.Depth),
		Method:   method,
		At02:     readingFrom(row.N02, row.T02),
		At06:     readingFrom(row.N06, row.T06),
		At08:     readingFrom(row.N08, row.T08),
		MeterID:  strings.TrimSpace(row.MeterID),
	}
	if row.Angle != nil {
		v.AngleDegrees = *row.Angle
	}
	if row.Index != nil {
		v.IndexValue = *row.Index
	}

	if !isFinite(v.Distance) || !isFinite(v.Depth) {
		return Vertical{}, fmt.Errorf("%w: non-finite distance or depth", ErrInvalidParameter)
	}
	if v.Depth < 0 {
		return Vertical{}, fmt.Errorf("%w: negative depth %g", ErrInvalidParameter, v.Depth)
	}
	if !isFinite(v.AngleDegrees) || !isFinite(v.IndexValue) {
		return Vertical{}, fmt.Errorf("%w: non-finite angle or index", ErrInvalidParameter)
	}
	return v, nil
}

// readingFrom returns nil unless both the count and the duration are present.
func readingFrom(n, t *float64) *Reading {
	if n == nil || t == nil {
		return nil
	}
	return &Reading{Revolutions: *n, Seconds: *t}
}

func valueOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
