package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitMeter makes velocity equal to revolutions per second.
var unitMeter = MeterCalibration{A: 0, B: 1}

func reading(n, t float64) *Reading {
	return &Reading{Revolutions: n, Seconds: t}
}

func TestPointVelocity(t *testing.T) {
	cal := DefaultCalibration()

	tests := []struct {
		name     string
		r        Reading
		expected float64
	}{
		{"normal reading", Reading{Revolutions: 30, Seconds: 60}, 0.0012 + 0.2534*0.5},
		{"zero revolutions", Reading{Revolutions: 0, Seconds: 60}, 0},
		{"zero seconds", Reading{Revolutions: 30, Seconds: 0}, 0},
		{"negative seconds", Reading{Revolutions: 30, Seconds: -5}, 0},
		{"negative revolutions", Reading{Revolutions: -3, Seconds: 40}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, PointVelocity(tt.r, cal), 1e-12)
		})
	}
}

func TestVerticalVelocity(t *testing.T) {
	tests := []struct {
		name         string
		vertical     Vertical
		wantVelocity float64
		wantMeasured bool
	}{
		{
			name:         "single point",
			vertical:     Vertical{Method: MethodSinglePoint, At06: reading(40, 50)},
			wantVelocity: 0.8,
			wantMeasured: true,
		},
		{
			name:         "two point averages 0.2 and 0.8",
			vertical:     Vertical{Method: MethodTwoPoint, At02: reading(60, 60), At08: reading(30, 60)},
			wantVelocity: 0.75,
			wantMeasured: true,
		},
		{
			name:         "three point weights 0.6 twice",
			vertical:     Vertical{Method: MethodThreePoint, At02: reading(50, 50), At06: reading(40, 50), At08: reading(20, 50)},
			wantVelocity: (1.0 + 2*0.8 + 0.4) / 4,
			wantMeasured: true,
		},
		{
			name:         "two point with one zero reading still combines",
			vertical:     Vertical{Method: MethodTwoPoint, At02: reading(60, 60), At08: reading(0, 60)},
			wantVelocity: 0.5,
			wantMeasured: true,
		},
		{
			name:         "all readings present but zero",
			vertical:     Vertical{Method: MethodThreePoint, At02: reading(0, 50), At06: reading(0, 50), At08: reading(0, 50)},
			wantVelocity: 0,
			wantMeasured: true,
		},
		{
			name:         "single point missing reading",
			vertical:     Vertical{Method: MethodSinglePoint, At02: reading(40, 50)},
			wantVelocity: 0,
			wantMeasured: false,
		},
		{
			name:         "three point missing 0.8",
			vertical:     Vertical{Method: MethodThreePoint, At02: reading(50, 50), At06: reading(40, 50)},
			wantVelocity: 0,
			wantMeasured: false,
		},
		{
			name:         "left edge",
			vertical:     Vertical{Method: MethodLeftEdge, At06: reading(40, 50)},
			wantVelocity: 0,
			wantMeasured: false,
		},
		{
			name:         "angle correction",
			vertical:     Vertical{Method: MethodSinglePoint, At06: reading(50, 50), AngleDegrees: 60},
			wantVelocity: 0.5,
			wantMeasured: true,
		},
		{
			name:         "index correction",
			vertical:     Vertical{Method: MethodSinglePoint, At06: reading(50, 50), IndexValue: 0.9},
			wantVelocity: 0.9,
			wantMeasured: true,
		},
		{
			name:         "angle takes precedence over index",
			vertical:     Vertical{Method: MethodSinglePoint, At06: reading(50, 50), AngleDegrees: 60, IndexValue: 0.9},
			wantVelocity: 0.5,
			wantMeasured: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, measured := VerticalVelocity(tt.vertical, unitMeter)
			assert.InDelta(t, tt.wantVelocity, v, 1e-12)
			assert.Equal(t, tt.wantMeasured, measured)
		})
	}
}

func TestVerticalVelocity_ZeroVelocityNotCorrected(t *testing.T) {
	cal := MeterCalibration{A: 0.05, B: 1}
	v, measured := VerticalVelocity(Vertical{Method: MethodSinglePoint, At06: reading(0, 40), AngleDegrees: 30}, cal)

	assert.True(t, measured)
	assert.Zero(t, v)
}

func TestDirectionIndex(t *testing.T) {
	tests := []struct {
		name     string
		angle    float64
		index    float64
		expected float64
	}{
		{"no correction", 0, 0, 1},
		{"explicit index", 0, 0.95, 0.95},
		{"angle", 45, 0, math.Cos(math.Pi / 4)},
		{"negative angle falls back to index", -10, 0.8, 0.8},
		{"negative index means none", 0, -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DirectionIndex(tt.angle, tt.index), 1e-12)
		})
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input    string
		expected Method
	}{
		{"1", MethodSinglePoint},
		{"", MethodSinglePoint},
		{"2", MethodTwoPoint},
		{"3", MethodThreePoint},
		{"Three-Point", MethodThreePoint},
		{"LEW", MethodLeftEdge},
		{"right-edge-of-water", MethodRightEdge},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := ParseMethod(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseMethod("5")
		require.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestParseVerticals(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	rows := []VerticalRow{
		{Distance: f(0), Depth: f(0), Method: "lew"},
		{Distance: f(1.5), Depth: f(0.45), Method: "1", N06: f(30), T06: f(60), MeterID: " M-1 "},
		{Distance: f(3.0), Depth: f(0.72), Method: "2", N02: f(40), T02: f(60), N08: f(20), Angle: f(10)},
	}

	verticals, err := ParseVerticals(rows)
	require.NoError(t, err)
	require.Len(t, verticals, 3)

	assert.Equal(t, MethodLeftEdge, verticals[0].Method)
	require.NotNil(t, verticals[1].At06)
	assert.Equal(t, 30.0, verticals[1].At06.Revolutions)
	assert.Equal(t, "M-1", verticals[1].MeterID)
	assert.NotNil(t, verticals[2].At02)
	assert.Nil(t, verticals[2].At08, "0.8D reading without a time is missing")
	assert.Equal(t, 10.0, verticals[2].AngleDegrees)

	t.Run("negative depth", func(t *testing.T) {
		_, err := ParseVerticals([]VerticalRow{{Distance: f(1), Depth: f(-0.1)}})
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Contains(t, err.Error(), "vertical 1")
	})

	t.Run("bad method", func(t *testing.T) {
		_, err := ParseVerticals([]VerticalRow{{Method: "7"}})
		require.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestMetersLookup(t *testing.T) {
	special := MeterCalibration{A: 0.01, B: 0.3, UncertaintyPercent: 2.5}
	meters := Meters{Default: DefaultCalibration(), ByID: map[string]MeterCalibration{"M-7": special}}

	cal, found := meters.Lookup("M-7")
	assert.True(t, found)
	assert.Equal(t, special, cal)

	cal, found = meters.Lookup("unknown")
	assert.False(t, found)
	assert.Equal(t, DefaultCalibration(), cal)

	_, found = meters.Lookup("")
	assert.False(t, found)
}

func TestVelocityRangeContains(t *testing.T) {
	assert.True(t, VelocityRange{}.Contains(12))
	assert.True(t, VelocityRange{Min: 0.05, Max: 3}.Contains(1))
	assert.False(t, VelocityRange{Min: 0.05, Max: 3}.Contains(0.01))
	assert.False(t, VelocityRange{Min: 0.05, Max: 3}.Contains(3.5))
	assert.True(t, VelocityRange{Min: 0.05}.Contains(10))
}
