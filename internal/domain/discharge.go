package domain

// VerticalResult is the per-vertical detail of a discharge reduction. Width,
// Area and Discharge describe the mid-section segment that ends at this
// vertical; the first vertical carries none.
type VerticalResult struct {
	Index            int     `json:"index"` // 1-based position in the session
	Distance         float64 `json:"distance"`
	Depth            float64 `json:"depth"`
	Method           Method  `json:"method"`
	MeterID          string  `json:"meter_id,omitempty"`
	Velocity         float64 `json:"velocity"`
	Measured         bool    `json:"measured"`
	Active           bool    `json:"active"`
	OutOfRange       bool    `json:"out_of_range,omitempty"`
	MeterUncertainty float64 `json:"meter_uncertainty"`
	Width            float64 `json:"width"`
	Area             float64 `json:"area"`
	Discharge        float64 `json:"discharge"`
	Ratio            float64 `json:"ratio"` // percent of total discharge
}

// DischargeResult is the outcome of reducing one gauging session.
type DischargeResult struct {
	Discharge       float64          `json:"discharge"`
	Area            float64          `json:"area"`
	MeanVelocity    float64          `json:"mean_velocity"`
	MinVelocity     float64          `json:"min_velocity"`
	MaxVelocity     float64          `json:"max_velocity"`
	TopWidth        float64          `json:"top_width"`
	MeanDepth       float64          `json:"mean_depth"`
	MaxDepth        float64          `json:"max_depth"`
	ActiveVerticals int              `json:"active_verticals"`
	Uncertainty     Uncertainty      `json:"uncertainty"`
	Grade           Grade            `json:"grade"`
	Verticals       []VerticalResult `json:"verticals"`
}

// ReduceDischarge computes discharge for an ordered list of verticals with
// the mid-section method and evaluates its uncertainty budget.
//
// Verticals are used in the order given. Out-of-order distances produce
// negative segment widths rather than an error. Fewer than two verticals
// yield zero area and discharge; a session with no measured vertical yields
// an all-zero result graded Poor.
func ReduceDischarge(verticals []Vertical, meters Meters, policy UncertaintyPolicy) DischargeResult {
	results := resolveVerticals(verticals, meters, policy)

	if !anyMeasured(results) {
		return DischargeResult{Grade: GradePoor, Verticals: results}
	}

	area, discharge := integrateMidSection(results)
	assignRatios(results, discharge)

	res := DischargeResult{
		Discharge: discharge,
		Area:      area,
		Verticals: results,
	}
	res.MeanVelocity = safeDiv(discharge, area)
	res.MinVelocity, res.MaxVelocity = velocityExtremes(results)
	res.TopWidth = topWidth(results)
	res.MeanDepth = safeDiv(area, res.TopWidth)
	res.MaxDepth = maxDepth(results)

	active := activeVerticals(results)
	res.ActiveVerticals = len(active)
	res.Uncertainty = policy.budget(active, res.MeanVelocity, discharge)
	res.Grade = GradePoor
	if len(active) > 0 {
		res.Grade = policy.Grade(res.Uncertainty.Expanded)
	}
	return res
}

// resolveVerticals derives the velocity of each vertical from its readings
// and the calibration of the meter it references.
func resolveVerticals(verticals []Vertical, meters Meters, policy UncertaintyPolicy) []VerticalResult {
	results := make([]VerticalResult, len(verticals))
	for i, v := range verticals {
		cal, _ := meters.Lookup(v.MeterID)
		velocity, measured := VerticalVelocity(v, cal)

		meterU := policy.DefaultMeterPercent
		if cal.UncertaintyPercent > 0 {
			meterU = cal.UncertaintyPercent
		}

		results[i] = VerticalResult{
			Index:            i + 1,
			Distance:         v.Distance,
			Depth:            v.Depth,
			Method:           v.Method,
			MeterID:          v.MeterID,
			Velocity:         velocity,
			Measured:         measured,
			Active:           measured && velocity > 0,
			OutOfRange:       velocity != 0 && !cal.ValidRange.Contains(velocity),
			MeterUncertainty: meterU,
		}
	}
	return results
}

// integrateMidSection fills the segment geometry of each vertical and
// returns the total area and discharge. Segment i spans verticals i-1 and i.
func integrateMidSection(results []VerticalResult) (area, discharge float64) {
	for i := 1; i < len(results); i++ {
		prev, curr := &results[i-1], &results[i]

		width := curr.Distance - prev.Distance
		avgDepth := (prev.Depth + curr.Depth) / 2
		avgVelocity := (prev.Velocity + curr.Velocity) / 2

		curr.Width = width
		curr.Area = width * avgDepth
		curr.Discharge = curr.Area * avgVelocity

		area += curr.Area
		discharge += curr.Discharge
	}
	return area, discharge
}

func assignRatios(results []VerticalResult, total float64) {
	for i := range results {
		results[i].Ratio = safeDiv(results[i].Discharge, total) * 100
	}
}

func anyMeasured(results []VerticalResult) bool {
	for _, v := range results {
		if v.Measured {
			return true
		}
	}
	return false
}

func activeVerticals(results []VerticalResult) []VerticalResult {
	var active []VerticalResult
	for _, v := range results {
		if v.Active {
			active = append(active, v)
		}
	}
	return active
}

// velocityExtremes returns the smallest and largest positive velocities.
func velocityExtremes(results []VerticalResult) (lo, hi float64) {
	first := true
	for _, v := range results {
		if v.Velocity <= 0 {
			continue
		}
		if first {
			lo, hi = v.Velocity, v.Velocity
			first = false
			continue
		}
		lo = min(lo, v.Velocity)
		hi = max(hi, v.Velocity)
	}
	return lo, hi
}

func topWidth(results []VerticalResult) float64 {
	if len(results) == 0 {
		return 0
	}
	lo, hi := results[0].Distance, results[0].Distance
	for _, v := range results[1:] {
		lo = min(lo, v.Distance)
		hi = max(hi, v.Distance)
	}
	return hi - lo
}

func maxDepth(results []VerticalResult) float64 {
	var deepest float64
	for _, v := range results {
		deepest = max(deepest, v.Depth)
	}
	return deepest
}

// safeDiv returns num/den, or 0 when den is 0.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
