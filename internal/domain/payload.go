package domain

import (
	"fmt"
	"time"
)

// CalibrationPayload is a meter calibration as supplied by data entry.
// Missing coefficients fall back to the session default.
type CalibrationPayload struct {
	A           *float64 `json:"a"`
	B           *float64 `json:"b"`
	Uncertainty float64  `json:"uncertainty"`
	MinVelocity float64  `json:"min_velocity"`
	MaxVelocity float64  `json:"max_velocity"`
}

func (c CalibrationPayload) calibration(fallback MeterCalibration) MeterCalibration {
	cal := fallback
	if c.A != nil {
		cal.A = *c.A
	}
	if c.B != nil {
		cal.B = *c.B
	}
	if c.Uncertainty > 0 {
		cal.UncertaintyPercent = c.Uncertainty
	}
	cal.ValidRange = VelocityRange{Min: c.MinVelocity, Max: c.MaxVelocity}
	return cal
}

// DischargePayload is a gauging session to reduce.
type DischargePayload struct {
	Verticals   []VerticalRow                 `json:"verticals"`
	Calibration *CalibrationPayload           `json:"calibration"`
	Meters      map[string]CalibrationPayload `json:"meters"`
}

// Session converts the payload into typed verticals and the meters they
// reference. defaultCal applies where the payload names no calibration.
func (p DischargePayload) Session(defaultCal MeterCalibration) ([]Vertical, Meters, error) {
	verticals, err := ParseVerticals(p.Verticals)
	if err != nil {
		return nil, Meters{}, err
	}

	meters := SingleMeter(defaultCal)
	if p.Calibration != nil {
		meters.Default = p.Calibration.calibration(defaultCal)
	}
	if len(p.Meters) > 0 {
		meters.ByID = make(map[string]MeterCalibration, len(p.Meters))
		for id, c := range p.Meters {
			meters.ByID[id] = c.calibration(meters.Default)
		}
	}
	return verticals, meters, nil
}

// RatingFitPayload is a set of gauging pairs to fit a rating curve to.
type RatingFitPayload struct {
	H         []float64 `json:"h"`
	Q         []float64 `json:"q"`
	H0        *float64  `json:"h0"`
	Year      int       `json:"year"`
	CurveType string    `json:"curve_type"`
}

// RatingApplyPayload is a stage series to convert. The curve is either given
// inline or looked up by year and curve type.
type RatingApplyPayload struct {
	Curve     *RatingCurve `json:"curve"`
	Year      int          `json:"year"`
	CurveType string       `json:"curve_type"`
	Points    []StagePoint `json:"points"`
}

// RatingApplyResult is the discharge series generated from a stage series.
type RatingApplyResult struct {
	Curve        RatingCurve      `json:"curve"`
	Equation     string           `json:"equation"`
	Points       []DischargePoint `json:"points"`
	Extrapolated int              `json:"extrapolated"`
	Suspect      int              `json:"suspect"`
}

// SummarizeDischargeSeries counts flagged points of a generated series.
func SummarizeDischargeSeries(curve RatingCurve, points []DischargePoint) RatingApplyResult {
	res := RatingApplyResult{Curve: curve, Equation: curve.Equation(), Points: points}
	for _, p := range points {
		switch p.Quality {
		case QualityExtrapolated:
			res.Extrapolated++
		case QualitySuspect:
			res.Suspect++
		}
	}
	return res
}

// BaseflowPayload is a daily discharge series to separate. Either Discharge
// with a Start date (YYYY-MM-DD) or a dated Series is given.
type BaseflowPayload struct {
	Method    string           `json:"method"`
	Alpha     *float64         `json:"alpha"`
	BFIMax    *float64         `json:"bfi_max"`
	Start     string           `json:"start"`
	Discharge []float64        `json:"discharge"`
	Series    []DailyDischarge `json:"series"`
}

// Params resolves the filter parameters, taking unset values from defaults.
func (p BaseflowPayload) Params(defaults BaseflowParams) (BaseflowParams, error) {
	params := defaults
	method, err := ParseBaseflowMethod(p.Method)
	if err != nil {
		return BaseflowParams{}, err
	}
	params.Method = method
	if p.Alpha != nil {
		params.Alpha = *p.Alpha
	}
	if p.BFIMax != nil {
		params.BFIMax = *p.BFIMax
	}
	if p.Start != "" {
		start, err := time.Parse(time.DateOnly, p.Start)
		if err != nil {
			return BaseflowParams{}, fmt.Errorf("%w: start date %q", ErrInvalidParameter, p.Start)
		}
		params.Start = start
	}
	return params, nil
}

// Separate runs the separation the payload describes.
func (p BaseflowPayload) Separate(defaults BaseflowParams) (BaseflowAnalysis, error) {
	params, err := p.Params(defaults)
	if err != nil {
		return BaseflowAnalysis{}, err
	}
	if len(p.Series) > 0 {
		return SeparateDailySeries(p.Series, params)
	}
	return SeparateBaseflow(p.Discharge, params)
}
