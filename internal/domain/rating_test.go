package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticRating returns pairs on Q = 2(h - 0.1)^1.5 for h in [0.2, 2.0].
func syntheticRating() (stage, discharge []float64) {
	for i := 0; i <= 18; i++ {
		h := 0.2 + 0.1*float64(i)
		stage = append(stage, h)
		discharge = append(discharge, 2*math.Pow(h-0.1, 1.5))
	}
	return stage, discharge
}

func TestFitRatingCurve_FreeH0(t *testing.T) {
	stage, discharge := syntheticRating()

	fit, err := FitRatingCurve(stage, discharge, FitOptions{})
	require.NoError(t, err)

	c := fit.Curve
	assert.InDelta(t, 2.0, c.A, 1e-3)
	assert.InDelta(t, 1.5, c.B, 1e-3)
	assert.InDelta(t, 0.1, c.H0, 1e-3)
	assert.InDelta(t, 1.0, c.RSquared, 1e-6)
	assert.Less(t, c.RMSE, 1e-3)
	assert.InDelta(t, 0.2, c.HMin, 1e-12)
	assert.InDelta(t, 2.0, c.HMax, 1e-12)

	assert.Len(t, fit.Fitted, len(stage))
	assert.Equal(t, c.Equation(), fit.Equation)
	assert.Positive(t, fit.Iterations)
}

func TestFitRatingCurve_FixedH0(t *testing.T) {
	stage, discharge := syntheticRating()
	h0 := 0.1

	fit, err := FitRatingCurve(stage, discharge, FitOptions{H0: &h0})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, fit.Curve.A, 1e-6)
	assert.InDelta(t, 1.5, fit.Curve.B, 1e-6)
	assert.Equal(t, 0.1, fit.Curve.H0)
	assert.InDelta(t, 1.0, fit.Curve.RSquared, 1e-9)
}

func TestFitRatingCurve_NoisyData(t *testing.T) {
	stage := []float64{0.35, 0.52, 0.61, 0.80, 0.94, 1.20, 1.45, 1.71}
	discharge := []float64{0.42, 1.05, 1.30, 2.35, 2.90, 4.60, 6.10, 8.20}

	fit, err := FitRatingCurve(stage, discharge, FitOptions{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, fit.Curve.RSquared, 0.0)
	assert.LessOrEqual(t, fit.Curve.RSquared, 1.0)
	assert.Greater(t, fit.Curve.RSquared, 0.95)
	assert.Positive(t, fit.Curve.A)
	for _, q := range fit.Fitted {
		assert.False(t, math.IsNaN(q))
	}
}

func TestFitRatingCurve_SamplesSpanRange(t *testing.T) {
	stage, discharge := syntheticRating()

	fit, err := FitRatingCurve(stage, discharge, FitOptions{})
	require.NoError(t, err)

	require.Len(t, fit.Samples, 50)
	assert.InDelta(t, 0.2, fit.Samples[0].Stage, 1e-12)
	assert.InDelta(t, 2.0, fit.Samples[49].Stage, 1e-12)
	for i := 1; i < len(fit.Samples); i++ {
		assert.Greater(t, fit.Samples[i].Stage, fit.Samples[i-1].Stage)
	}
}

func TestFitRatingCurve_ConstantDischarge(t *testing.T) {
	fit, err := FitRatingCurve([]float64{1, 2, 3, 4}, []float64{5, 5, 5, 5}, FitOptions{})
	require.NoError(t, err)

	assert.Zero(t, fit.Curve.RSquared)
}

func TestFitRatingCurve_Validation(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name      string
		stage     []float64
		discharge []float64
		opts      FitOptions
		wantErr   error
	}{
		{"mismatched lengths", []float64{1, 2, 3}, []float64{1, 2}, FitOptions{}, ErrMismatchedLengths},
		{"two pairs", []float64{1, 2}, []float64{1, 2}, FitOptions{}, ErrInsufficientData},
		{"no pairs", nil, nil, FitOptions{}, ErrInsufficientData},
		{"nan stage", []float64{1, nan, 3}, []float64{1, 2, 3}, FitOptions{}, ErrInvalidParameter},
		{"infinite discharge", []float64{1, 2, 3}, []float64{1, math.Inf(1), 3}, FitOptions{}, ErrInvalidParameter},
		{"nan h0", []float64{1, 2, 3}, []float64{1, 2, 3}, FitOptions{H0: &nan}, ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitRatingCurve(tt.stage, tt.discharge, tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRatingCurve_Discharge(t *testing.T) {
	c := RatingCurve{A: 2, B: 1.5, H0: 0.1, HMin: 0.2, HMax: 2.0}

	q, ok := c.Discharge(1.1)
	assert.True(t, ok)
	assert.InDelta(t, 2.0, q, 1e-12)

	_, ok = c.Discharge(2.5)
	assert.False(t, ok)

	_, ok = c.Discharge(0.19)
	assert.False(t, ok)

	assert.InDelta(t, 2*math.Pow(1e-10, 1.5), c.Evaluate(0.05), 1e-20, "stage below h0 is floored")
}

func TestRatingCurve_Equation(t *testing.T) {
	assert.Equal(t, "Q = 2.0000(h - 0.1000)^1.5000", RatingCurve{A: 2, B: 1.5, H0: 0.1}.Equation())
	assert.Equal(t, "Q = 3.2500(h + 0.2500)^1.6200", RatingCurve{A: 3.25, B: 1.62, H0: -0.25}.Equation())
}

func TestSelectRatingCurve(t *testing.T) {
	curves := []RatingCurve{
		{Year: 2022, CurveType: CurveOpen, A: 1},
		{Year: 2024, CurveType: CurveOpen, A: 2},
		{Year: 2023, CurveType: CurveOpen, A: 3},
		{Year: 2025, CurveType: CurveClose, A: 4},
	}

	c, err := SelectRatingCurve(curves, 2023, CurveOpen)
	require.NoError(t, err)
	assert.Equal(t, 3.0, c.A)

	c, err = SelectRatingCurve(curves, 0, CurveOpen)
	require.NoError(t, err)
	assert.Equal(t, 2024, c.Year)

	c, err = SelectRatingCurve(curves, 0, CurveClose)
	require.NoError(t, err)
	assert.Equal(t, 4.0, c.A)

	_, err = SelectRatingCurve(curves, 2021, CurveOpen)
	require.ErrorIs(t, err, ErrCurveNotFound)

	_, err = SelectRatingCurve(nil, 0, CurveOpen)
	require.ErrorIs(t, err, ErrCurveNotFound)
}

func TestParseCurveType(t *testing.T) {
	ct, err := ParseCurveType("")
	require.NoError(t, err)
	assert.Equal(t, CurveOpen, ct)

	ct, err = ParseCurveType("Closed")
	require.NoError(t, err)
	assert.Equal(t, CurveClose, ct)

	_, err = ParseCurveType("ajar")
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestApplyRatingCurve(t *testing.T) {
	curve := RatingCurve{A: 2, B: 1.5, H0: 0.1, HMin: 0.2, HMax: 2.0}
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	points := []StagePoint{
		{Timestamp: base, Stage: 1.1},
		{Timestamp: base.Add(time.Hour), Stage: 1.1, Quality: "good"},
		{Timestamp: base.Add(2 * time.Hour), Stage: 2.6},
		{Timestamp: base.Add(3 * time.Hour), Stage: 1.1, Quality: "estimated"},
		{Timestamp: base.Add(4 * time.Hour), Stage: math.NaN()},
		{Timestamp: base.Add(5 * time.Hour), Stage: 0.15},
	}

	out := ApplyRatingCurve(curve, points)
	require.Len(t, out, len(points))

	assert.Equal(t, QualityGood, out[0].Quality)
	assert.InDelta(t, 2.0, out[0].Discharge, 1e-12)
	assert.Equal(t, base, out[0].Timestamp)

	assert.Equal(t, QualityGood, out[1].Quality)

	assert.Equal(t, QualityExtrapolated, out[2].Quality)
	assert.InDelta(t, curve.Evaluate(2.6), out[2].Discharge, 1e-12)

	assert.Equal(t, QualitySuspect, out[3].Quality)
	assert.InDelta(t, 2.0, out[3].Discharge, 1e-12)

	assert.Equal(t, QualitySuspect, out[4].Quality)
	assert.Zero(t, out[4].Discharge)

	assert.Equal(t, QualityExtrapolated, out[5].Quality)

	for i := range out {
		assert.Equal(t, points[i].Timestamp, out[i].Timestamp)
	}
}

func TestSummarizeDischargeSeries(t *testing.T) {
	curve := RatingCurve{A: 2, B: 1.5, H0: 0.1, HMin: 0.2, HMax: 2.0}
	out := ApplyRatingCurve(curve, []StagePoint{{Stage: 1}, {Stage: 3}, {Stage: 1, Quality: "missing"}, {Stage: 5}})

	res := SummarizeDischargeSeries(curve, out)

	assert.Equal(t, 2, res.Extrapolated)
	assert.Equal(t, 1, res.Suspect)
	assert.Equal(t, curve.Equation(), res.Equation)
	assert.Len(t, res.Points, 4)
}
