package domain

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// minBaseflowSamples is the shortest daily series the recursive filters are
// considered reliable for.
const minBaseflowSamples = 30

// BaseflowMethod selects the recursive digital filter.
type BaseflowMethod string

const (
	MethodLyneHollick BaseflowMethod = "lyne_hollick"
	MethodEckhardt    BaseflowMethod = "eckhardt"
)

// ParseBaseflowMethod normalizes a filter name; an empty name means Lyne-Hollick.
func ParseBaseflowMethod(s string) (BaseflowMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lyne_hollick", "lyne-hollick", "lh":
		return MethodLyneHollick, nil
	case "eckhardt":
		return MethodEckhardt, nil
	default:
		return "", fmt.Errorf("%w: unsupported baseflow method %q", ErrInvalidParameter, s)
	}
}

// BaseflowParams configures a separation. BFIMax is used by Eckhardt only.
type BaseflowParams struct {
	Method BaseflowMethod
	Alpha  float64
	BFIMax float64
	Start  time.Time // date of the first sample
}

// DefaultBaseflowParams returns a Lyne-Hollick separation with α = 0.925
// and, should Eckhardt be selected, BFImax = 0.80.
func DefaultBaseflowParams() BaseflowParams {
	return BaseflowParams{Method: MethodLyneHollick, Alpha: 0.925, BFIMax: 0.80}
}

// DailyDischarge is one dated sample of a daily discharge series.
type DailyDischarge struct {
	Date      time.Time `json:"date"`
	Discharge float64   `json:"discharge"`
}

// BaseflowDay is the decomposition of one day's discharge.
type BaseflowDay struct {
	Date         time.Time `json:"date"`
	Total        float64   `json:"total_discharge"`
	Baseflow     float64   `json:"baseflow"`
	DirectRunoff float64   `json:"direct_runoff"`
}

// BaseflowAnalysis is the result of a baseflow separation. The aggregate
// flows are sums of the daily values.
type BaseflowAnalysis struct {
	Method       BaseflowMethod `json:"method"`
	Alpha        float64        `json:"alpha"`
	BFIMax       float64        `json:"bfi_max,omitempty"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	TotalRunoff  float64        `json:"total_runoff"`
	Baseflow     float64        `json:"baseflow"`
	DirectRunoff float64        `json:"direct_runoff"`
	BFI          float64        `json:"bfi"`
	Days         []BaseflowDay  `json:"daily"`
}

// SeparateBaseflow splits a chronological daily discharge series into
// baseflow and direct runoff. Day i is dated params.Start plus i days.
// The filter cannot detect out-of-order input; ordering is the caller's
// responsibility.
func SeparateBaseflow(discharge []float64, params BaseflowParams) (BaseflowAnalysis, error) {
	dates := make([]time.Time, len(discharge))
	for i := range dates {
		dates[i] = params.Start.AddDate(0, 0, i)
	}
	return separate(discharge, dates, params)
}

// SeparateDailySeries is SeparateBaseflow for a dated series. Dates must be
// strictly ascending; params.Start is taken from the first sample.
func SeparateDailySeries(series []DailyDischarge, params BaseflowParams) (BaseflowAnalysis, error) {
	discharge := make([]float64, len(series))
	dates := make([]time.Time, len(series))
	for i, s := range series {
		if i > 0 && !s.Date.After(series[i-1].Date) {
			return BaseflowAnalysis{}, fmt.Errorf("%w: sample %d (%s) does not follow %s",
				ErrUnsortedSeries, i+1, s.Date.Format(time.DateOnly), series[i-1].Date.Format(time.DateOnly))
		}
		discharge[i] = s.Discharge
		dates[i] = s.Date
	}
	if len(series) > 0 {
		params.Start = series[0].Date
	}
	return separate(discharge, dates, params)
}

func separate(discharge []float64, dates []time.Time, params BaseflowParams) (BaseflowAnalysis, error) {
	if err := validateBaseflowInput(discharge, params); err != nil {
		return BaseflowAnalysis{}, err
	}

	var baseflow []float64
	switch params.Method {
	case MethodLyneHollick:
		baseflow = lyneHollick(discharge, params.Alpha)
	case MethodEckhardt:
		baseflow = eckhardt(discharge, params.Alpha, params.BFIMax)
	}

	days := make([]BaseflowDay, len(discharge))
	direct := make([]float64, len(discharge))
	for i, q := range discharge {
		direct[i] = q - baseflow[i]
		days[i] = BaseflowDay{
			Date:         dates[i],
			Total:        q,
			Baseflow:     baseflow[i],
			DirectRunoff: direct[i],
		}
	}

	total := floats.Sum(discharge)
	base := floats.Sum(baseflow)
	analysis := BaseflowAnalysis{
		Method:       params.Method,
		Alpha:        params.Alpha,
		Start:        dates[0],
		End:          dates[len(dates)-1],
		TotalRunoff:  total,
		Baseflow:     base,
		DirectRunoff: floats.Sum(direct),
		BFI:          safeDiv(base, total),
		Days:         days,
	}
	if params.Method == MethodEckhardt {
		analysis.BFIMax = params.BFIMax
	}
	return analysis, nil
}

func validateBaseflowInput(discharge []float64, params BaseflowParams) error {
	if len(discharge) < minBaseflowSamples {
		return fmt.Errorf("%w: baseflow separation needs at least %d daily samples, got %d",
			ErrInsufficientData, minBaseflowSamples, len(discharge))
	}
	if !(params.Alpha > 0 && params.Alpha < 1) {
		return fmt.Errorf("%w: alpha %g outside (0, 1)", ErrInvalidParameter, params.Alpha)
	}
	switch params.Method {
	case MethodLyneHollick:
	case MethodEckhardt:
		if !(params.BFIMax > 0 && params.BFIMax < 1) {
			return fmt.Errorf("%w: bfi_max %g outside (0, 1)", ErrInvalidParameter, params.BFIMax)
		}
	default:
		return fmt.Errorf("%w: unsupported baseflow method %q", ErrInvalidParameter, params.Method)
	}
	for i, q := range discharge {
		if !isFinite(q) || q < 0 {
			return fmt.Errorf("%w: discharge %g on day %d", ErrInvalidParameter, q, i+1)
		}
	}
	return nil
}

// lyneHollick runs the single forward pass of the Lyne-Hollick filter.
func lyneHollick(q []float64, alpha float64) []float64 {
	b := make([]float64, len(q))
	if len(q) == 0 {
		return b
	}
	b[0] = 0.5 * q[0]
	for i := 1; i < len(q); i++ {
		b[i] = clampBaseflow(alpha*b[i-1]+(1-alpha)/2*(q[i]+q[i-1]), q[i])
	}
	return b
}

// eckhardt runs the two-parameter Eckhardt filter.
func eckhardt(q []float64, alpha, bfiMax float64) []float64 {
	b := make([]float64, len(q))
	if len(q) == 0 {
		return b
	}
	b[0] = clampBaseflow(bfiMax*q[0], q[0])
	denom := 1 - alpha*bfiMax
	for i := 1; i < len(q); i++ {
		b[i] = clampBaseflow(((1-bfiMax)*alpha*b[i-1]+(1-alpha)*bfiMax*q[i])/denom, q[i])
	}
	return b
}

// clampBaseflow keeps baseflow within [0, total].
func clampBaseflow(b, total float64) float64 {
	return max(0, min(b, total))
}
