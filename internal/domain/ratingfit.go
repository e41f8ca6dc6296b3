package domain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	minRatingPairs   = 3
	curveSamples     = 50
	defaultMaxIter   = 10000
	h0GridCandidates = 64
)

// FitOptions controls rating-curve regression. A nil H0 fits the zero-flow
// stage jointly with A and B.
type FitOptions struct {
	H0            *float64
	MaxIterations int
}

// CurvePoint is one sample of a fitted curve, for plotting.
type CurvePoint struct {
	Stage     float64 `json:"h"`
	Discharge float64 `json:"q"`
}

// RatingFit is the outcome of fitting a rating curve to gauging pairs.
type RatingFit struct {
	Curve      RatingCurve  `json:"curve"`
	Equation   string       `json:"equation"`
	Fitted     []float64    `json:"fitted_values"`
	Samples    []CurvePoint `json:"curve_points"`
	Iterations int          `json:"iterations"`
}

// FitRatingCurve fits Q = a·(h − h0)^b to parallel stage and discharge
// observations by nonlinear least squares (Levenberg-Marquardt). At least
// three pairs are required.
func FitRatingCurve(stage, discharge []float64, opts FitOptions) (RatingFit, error) {
	if err := validatePairs(stage, discharge); err != nil {
		return RatingFit{}, err
	}
	if opts.H0 != nil && !isFinite(*opts.H0) {
		return RatingFit{}, fmt.Errorf("%w: h0 must be finite", ErrInvalidParameter)
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}

	model := powerModel{stage: stage, discharge: discharge}
	var start []float64
	if opts.H0 != nil {
		model.h0 = *opts.H0
		a, b := initialPowerLaw(stage, discharge, model.h0)
		start = []float64{a, b}
	} else {
		model.freeH0 = true
		start = initialFreeH0(stage, discharge)
	}

	params, iterations := levenbergMarquardt(model, start, maxIter)

	curve := RatingCurve{
		A:    params[0],
		B:    params[1],
		H0:   model.h0,
		HMin: floats.Min(stage),
		HMax: floats.Max(stage),
	}
	if model.freeH0 {
		curve.H0 = params[2]
	}

	fitted := make([]float64, len(stage))
	for i, h := range stage {
		fitted[i] = curve.Evaluate(h)
	}
	curve.RSquared, curve.RMSE = goodnessOfFit(discharge, fitted)

	return RatingFit{
		Curve:      curve,
		Equation:   curve.Equation(),
		Fitted:     fitted,
		Samples:    sampleCurve(curve),
		Iterations: iterations,
	}, nil
}

func validatePairs(stage, discharge []float64) error {
	if len(stage) != len(discharge) {
		return fmt.Errorf("%w: %d stages, %d discharges", ErrMismatchedLengths, len(stage), len(discharge))
	}
	if len(stage) < minRatingPairs {
		return fmt.Errorf("%w: rating fit needs at least %d pairs, got %d", ErrInsufficientData, minRatingPairs, len(stage))
	}
	for i := range stage {
		if !isFinite(stage[i]) || !isFinite(discharge[i]) {
			return fmt.Errorf("%w: pair %d is not finite", ErrInvalidParameter, i+1)
		}
	}
	return nil
}

// goodnessOfFit returns R² (0 when the observations have no spread, floored
// at 0) and the root mean square error.
func goodnessOfFit(observed, fitted []float64) (rSquared, rmse float64) {
	mean := stat.Mean(observed, nil)
	var ssRes, ssTot float64
	for i := range observed {
		r := observed[i] - fitted[i]
		d := observed[i] - mean
		ssRes += r * r
		ssTot += d * d
	}
	if ssTot > 0 {
		rSquared = max(0, 1-ssRes/ssTot)
	}
	rmse = math.Sqrt(ssRes / float64(len(observed)))
	return rSquared, rmse
}

func sampleCurve(c RatingCurve) []CurvePoint {
	stages := floats.Span(make([]float64, curveSamples), c.HMin, c.HMax)
	out := make([]CurvePoint, len(stages))
	for i, h := range stages {
		out[i] = CurvePoint{Stage: h, Discharge: c.Evaluate(h)}
	}
	return out
}

// powerModel is Q = a·max(h − h0, floor)^b. Parameters are [a, b] with h0
// fixed, or [a, b, h0] when freeH0 is set.
type powerModel struct {
	stage     []float64
	discharge []float64
	h0        float64
	freeH0    bool
}

func (m powerModel) split(p []float64) (a, b, h0 float64) {
	if m.freeH0 {
		return p[0], p[1], p[2]
	}
	return p[0], p[1], m.h0
}

func (m powerModel) sse(p []float64) float64 {
	a, b, h0 := m.split(p)
	var sum float64
	for i, h := range m.stage {
		r := m.discharge[i] - a*math.Pow(math.Max(h-h0, stageFloor), b)
		sum += r * r
	}
	return sum
}

// normalEquations accumulates JᵀJ and Jᵀr at p.
func (m powerModel) normalEquations(p []float64) (jtj, jtr []float64) {
	k := len(p)
	jtj = make([]float64, k*k)
	jtr = make([]float64, k)
	row := make([]float64, k)

	a, b, h0 := m.split(p)
	for i, h := range m.stage {
		base := h - h0
		clamped := base <= stageFloor
		if clamped {
			base = stageFloor
		}
		pow := math.Pow(base, b)
		r := m.discharge[i] - a*pow

		row[0] = pow
		row[1] = a * pow * math.Log(base)
		if m.freeH0 {
			row[2] = 0
			if !clamped {
				row[2] = -a * b * pow / base
			}
		}

		for x := 0; x < k; x++ {
			jtr[x] += row[x] * r
			for y := 0; y < k; y++ {
				jtj[x*k+y] += row[x] * row[y]
			}
		}
	}
	return jtj, jtr
}

// levenbergMarquardt minimizes the model's residual sum of squares from
// start and returns the parameters with the number of iterations used.
func levenbergMarquardt(m powerModel, start []float64, maxIter int) ([]float64, int) {
	const (
		lambdaInit = 1e-3
		lambdaMin  = 1e-12
		lambdaMax  = 1e12
		tolerance  = 1e-15
	)

	p := append([]float64(nil), start...)
	k := len(p)
	sse := m.sse(p)
	lambda := lambdaInit

	iter := 0
	for ; iter < maxIter && sse > 0; iter++ {
		jtj, jtr := m.normalEquations(p)

		improved := false
		for lambda <= lambdaMax {
			step, ok := dampedStep(jtj, jtr, k, lambda)
			if !ok {
				lambda *= 10
				continue
			}
			trial := make([]float64, k)
			for j := range p {
				trial[j] = p[j] + step[j]
			}
			trialSSE := m.sse(trial)
			if !isFinite(trialSSE) || trialSSE >= sse {
				lambda *= 10
				continue
			}

			converged := sse-trialSSE <= tolerance*sse || relativeStep(step, p) <= tolerance
			p, sse = trial, trialSSE
			lambda = max(lambda/10, lambdaMin)
			improved = true
			if converged {
				return p, iter + 1
			}
			break
		}
		if !improved {
			break
		}
	}
	return p, iter
}

// dampedStep solves (JᵀJ + λ·diag(JᵀJ))·δ = Jᵀr.
func dampedStep(jtj, jtr []float64, k int, lambda float64) ([]float64, bool) {
	damped := append([]float64(nil), jtj...)
	for d := 0; d < k; d++ {
		diag := jtj[d*k+d]
		if diag == 0 {
			diag = 1
		}
		damped[d*k+d] += lambda * diag
	}

	var x mat.VecDense
	err := x.SolveVec(mat.NewDense(k, k, damped), mat.NewVecDense(k, append([]float64(nil), jtr...)))
	var cond mat.Condition
	if err != nil && !errors.As(err, &cond) {
		return nil, false
	}

	step := make([]float64, k)
	for i := range step {
		step[i] = x.AtVec(i)
		if !isFinite(step[i]) {
			return nil, false
		}
	}
	return step, true
}

func relativeStep(step, p []float64) float64 {
	var worst float64
	for i := range step {
		worst = max(worst, math.Abs(step[i])/(math.Abs(p[i])+1e-12))
	}
	return worst
}

// initialPowerLaw estimates a and b by linear regression of ln Q on
// ln(h − h0) over the points where both are defined, falling back to
// a = 1, b = 1.5.
func initialPowerLaw(stage, discharge []float64, h0 float64) (a, b float64) {
	var xs, ys []float64
	for i, h := range stage {
		if h-h0 > stageFloor && discharge[i] > 0 {
			xs = append(xs, math.Log(h-h0))
			ys = append(ys, math.Log(discharge[i]))
		}
	}
	if len(xs) < 2 || floats.Min(xs) == floats.Max(xs) {
		return 1, 1.5
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	if !isFinite(intercept) || !isFinite(slope) {
		return 1, 1.5
	}
	return math.Exp(intercept), slope
}

// initialFreeH0 scans zero-flow stages below the lowest observation and
// returns [a, b, h0] for the candidate with the smallest residual.
func initialFreeH0(stage, discharge []float64) []float64 {
	lo, hi := floats.Min(stage), floats.Max(stage)
	span := hi - lo
	if span == 0 {
		span = max(math.Abs(lo), 1)
	}

	best := []float64{1, 1.5, lo - 0.1*max(math.Abs(lo), 1e-3)}
	bestSSE := math.Inf(1)
	for i := 0; i < h0GridCandidates; i++ {
		h0 := lo - span + (span-span*1e-3)*float64(i)/float64(h0GridCandidates-1)
		a, b := initialPowerLaw(stage, discharge, h0)
		p := []float64{a, b, h0}
		sse := powerModel{stage: stage, discharge: discharge, freeH0: true}.sse(p)
		if isFinite(sse) && sse < bestSSE {
			best, bestSSE = p, sse
		}
	}
	return best
}
