package domain

import "math"

// PointVelocity converts one meter reading to a point velocity with the
// linear meter equation. A reading with no revolutions or no elapsed time
// registers no current and returns 0.
func PointVelocity(r Reading, cal MeterCalibration) float64 {
	if r.Revolutions <= 0 || r.Seconds <= 0 {
		return 0
	}
	return cal.A + cal.B*(r.Revolutions/r.Seconds)
}

// VerticalVelocity combines the point velocities required by the vertical's
// method and applies direction correction. measured is false when any
// required reading is missing or the vertical is a bank anchor; the velocity
// is then 0.
func VerticalVelocity(v Vertical, cal MeterCalibration) (velocity float64, measured bool) {
	switch v.Method {
	case MethodSinglePoint, "":
		if v.At06 == nil {
			return 0, false
		}
		velocity = PointVelocity(*v.At06, cal)
	case MethodTwoPoint:
		if v.At02 == nil || v.At08 == nil {
			return 0, false
		}
		velocity = (PointVelocity(*v.At02, cal) + PointVelocity(*v.At08, cal)) / 2
	case MethodThreePoint:
		if v.At02 == nil || v.At06 == nil || v.At08 == nil {
			return 0, false
		}
		velocity = (PointVelocity(*v.At02, cal) + 2*PointVelocity(*v.At06, cal) + PointVelocity(*v.At08, cal)) / 4
	default:
		return 0, false
	}

	if velocity != 0 {
		velocity *= DirectionIndex(v.AngleDegrees, v.IndexValue)
	}
	return velocity, true
}

// DirectionIndex returns the multiplicative correction for flow that is not
// perpendicular to the section. A positive angle takes precedence over the
// supplied index; a non-positive index means no correction.
func DirectionIndex(angleDegrees, indexValue float64) float64 {
	if angleDegrees > 0 {
		return math.Cos(angleDegrees * math.Pi / 180)
	}
	if indexValue > 0 {
		return indexValue
	}
	return 1.0
}
