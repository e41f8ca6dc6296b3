// Package domain implements the hydrological computation engine: current-meter
// velocity reduction, mid-section discharge integration with an uncertainty
// budget, stage-discharge (rating) curve fitting and application, and
// recursive digital-filter baseflow separation.
//
// Every computation is a pure function of its arguments. Nothing in this
// package performs I/O, logs, or holds mutable package state, so callers may
// run any number of computations concurrently.
//
// # Field Data Conventions
//
// Units:
//
//	distance, depth, stage  meters
//	velocity                m/s
//	discharge               m³/s
//	uncertainty             percent
//	angles                  degrees on input, radians internally
//
// Velocity sampling depths (fractions of the vertical depth D):
//
//	single-point  0.6D                 V = V0.6
//	two-point     0.2D, 0.8D           V = (V0.2 + V0.8) / 2
//	three-point   0.2D, 0.6D, 0.8D     V = (V0.2 + 2·V0.6 + V0.8) / 4
//	left-edge / right-edge             bank anchors, velocity 0 by convention
//
// Field sheets historically encode the method as "1", "2" or "3"; these are
// accepted by [ParseMethod] alongside the canonical names.
//
// Current meter equation:
//
//	V = a + b·(N/T)    N revolutions counted over T seconds
//
// A reading with N or T absent or zero registers no current and yields 0.
//
// # Uncertainty Budget
//
// The budget follows the ISO 748 structure. The tier tables below are a
// domain policy kept for backward-compatible report values; see
// [UncertaintyPolicy] to override them.
//
//	Xm  verticals:  n≥25 0.5% | n≥20 1.0% | n≥15 1.5% | n≥10 2.0% | n≥5 3.0% | else 5.0%
//	Xp  method:     three-point 6.33% | two-point 7.0% | single-point 15.0%
//	Xc  meter:      calibration uncertainty, 1.0% when no meter is referenced
//	Xe  velocity:   v≥1.0 1.5% | v≥0.5 2.0% | v≥0.2 3.0% | else 5.0%
//
//	X1Q = sqrt(Xm² + (Xe² + Xp² + Xc²)/n)
//	X2Q = sqrt(0.5² + 0.5² + 1.0²) ≈ 1.22%
//	U(Q) = 2·sqrt(X1Q² + X2Q²)
//
// Quality grade from U(Q): ≤5% Excellent | ≤8% Good | ≤10% Fair | else Poor.
//
// # Rating Curves
//
//	Q = a·(h − h0)^b    valid for HMin ≤ h ≤ HMax
//
// Stages outside the fitted range are extrapolation and are flagged, never
// silently accepted.
//
// # Baseflow Filters
//
//	Lyne-Hollick  b0 = 0.5·Q0
//	              bi = α·bi-1 + (1−α)/2·(Qi + Qi-1)
//	Eckhardt      b0 = BFImax·Q0
//	              bi = [(1−BFImax)·α·bi-1 + (1−α)·BFImax·Qi] / (1 − α·BFImax)
//
// Both are clamped so that 0 ≤ bi ≤ Qi. The recursions run forward in caller
// order; input must already be chronological.
package domain
