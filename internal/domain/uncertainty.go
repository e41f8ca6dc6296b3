package domain

import "math"

// Grade classifies a gauging by its expanded uncertainty.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
)

// CountTier assigns Percent to sessions with at least MinVerticals active verticals.
type CountTier struct {
	MinVerticals int
	Percent      float64
}

// VelocityBand assigns Percent to sessions whose mean velocity is at least MinVelocity.
type VelocityBand struct {
	MinVelocity float64
	Percent     float64
}

// GradeTier assigns Grade to expanded uncertainties up to and including MaxPercent.
type GradeTier struct {
	MaxPercent float64
	Grade      Grade
}

// UncertaintyPolicy holds the tier tables and constants of the uncertainty
// budget. Tiers are evaluated in order; the first match wins.
type UncertaintyPolicy struct {
	VerticalTiers    []CountTier
	VerticalFallback float64

	MethodPercent  map[Method]float64
	MethodFallback float64

	DefaultMeterPercent float64

	VelocityBands    []VelocityBand
	VelocityFallback float64

	WidthPercent           float64
	DepthPercent           float64
	OtherSystematicPercent float64

	CoverageFactor float64
	GradeTiers     []GradeTier
}

// DefaultUncertaintyPolicy returns the historical tier tables. Reports
// produced with other values are not comparable with archived gaugings.
func DefaultUncertaintyPolicy() UncertaintyPolicy {
	return UncertaintyPolicy{
		VerticalTiers: []CountTier{
			{MinVerticals: 25, Percent: 0.5},
			{MinVerticals: 20, Percent: 1.0},
			{MinVerticals: 15, Percent: 1.5},
			{MinVerticals: 10, Percent: 2.0},
			{MinVerticals: 5, Percent: 3.0},
		},
		VerticalFallback: 5.0,
		MethodPercent: map[Method]float64{
			MethodThreePoint:  6.33,
			MethodTwoPoint:    7.0,
			MethodSinglePoint: 15.0,
		},
		MethodFallback:      15.0,
		DefaultMeterPercent: 1.0,
		VelocityBands: []VelocityBand{
			{MinVelocity: 1.0, Percent: 1.5},
			{MinVelocity: 0.5, Percent: 2.0},
			{MinVelocity: 0.2, Percent: 3.0},
		},
		VelocityFallback:       5.0,
		WidthPercent:           0.5,
		DepthPercent:           0.5,
		OtherSystematicPercent: 1.0,
		CoverageFactor:         2,
		GradeTiers: []GradeTier{
			{MaxPercent: 5, Grade: GradeExcellent},
			{MaxPercent: 8, Grade: GradeGood},
			{MaxPercent: 10, Grade: GradeFair},
		},
	}
}

// Uncertainty is the budget of a discharge measurement. Component values
// are relative standard uncertainties in percent.
type Uncertainty struct {
	Xm float64 `json:"xm"`
	Xp float64 `json:"xp"`
	Xc float64 `json:"xc"`
	Xe float64 `json:"xe"`

	Random     float64 `json:"x1q"`
	Systematic float64 `json:"x2q"`
	Combined   float64 `json:"combined"`
	Expanded   float64 `json:"expanded"`
	Absolute   float64 `json:"absolute"` // m³/s at the expanded level
}

// VerticalCountPercent returns Xm for n active verticals.
func (p UncertaintyPolicy) VerticalCountPercent(n int) float64 {
	for _, tier := range p.VerticalTiers {
		if n >= tier.MinVerticals {
			return tier.Percent
		}
	}
	return p.VerticalFallback
}

// VelocityPercent returns Xe for a mean section velocity.
func (p UncertaintyPolicy) VelocityPercent(meanVelocity float64) float64 {
	for _, band := range p.VelocityBands {
		if meanVelocity >= band.MinVelocity {
			return band.Percent
		}
	}
	return p.VelocityFallback
}

// methodPercent returns the point-count uncertainty for one method.
func (p UncertaintyPolicy) methodPercent(m Method) float64 {
	if v, ok := p.MethodPercent[m]; ok {
		return v
	}
	return p.MethodFallback
}

// SystematicPercent returns X2Q.
func (p UncertaintyPolicy) SystematicPercent() float64 {
	return math.Sqrt(p.WidthPercent*p.WidthPercent + p.DepthPercent*p.DepthPercent +
		p.OtherSystematicPercent*p.OtherSystematicPercent)
}

// Grade maps an expanded uncertainty to a quality grade. Tier bounds are
// inclusive.
func (p UncertaintyPolicy) Grade(expandedPercent float64) Grade {
	for _, tier := range p.GradeTiers {
		if expandedPercent <= tier.MaxPercent {
			return tier.Grade
		}
	}
	return GradePoor
}

// GradeFor classifies an expanded uncertainty with the default policy.
func GradeFor(expandedPercent float64) Grade {
	return DefaultUncertaintyPolicy().Grade(expandedPercent)
}

// budget evaluates the uncertainty of a session from its active verticals.
// It returns a zero budget when there are no active verticals.
func (p UncertaintyPolicy) budget(active []VerticalResult, meanVelocity, discharge float64) Uncertainty {
	n := len(active)
	if n == 0 {
		return Uncertainty{}
	}

	var sumXp, sumXc float64
	for _, v := range active {
		sumXp += p.methodPercent(v.Method)
		sumXc += v.MeterUncertainty
	}

	u := Uncertainty{
		Xm: p.VerticalCountPercent(n),
		Xp: sumXp / float64(n),
		Xc: sumXc / float64(n),
		Xe: p.VelocityPercent(meanVelocity),
	}
	u.Random = math.Sqrt(u.Xm*u.Xm + (u.Xe*u.Xe+u.Xp*u.Xp+u.Xc*u.Xc)/float64(n))
	u.Systematic = p.SystematicPercent()
	u.Combined = math.Sqrt(u.Random*u.Random + u.Systematic*u.Systematic)
	u.Expanded = p.CoverageFactor * u.Combined
	u.Absolute = discharge * u.Expanded / 100
	return u
}
