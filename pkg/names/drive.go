package names

import "math"

// Omniwheel describes a drive with omni wheels placed around the robot center.
type Omniwheel struct {
	WheelRadius float64
	RobotRadius float64
	// Angles are the wheel positions around the center, in radians.
	Angles              [NumWheels]float64
	ForwardsIsClockwise [NumWheels]bool
}

func (o Omniwheel) forwardDir(m int) float64 {
	if o.ForwardsIsClockwise[m] {
		return o.Angles[m] - math.Pi/2
	}
	return o.Angles[m] + math.Pi/2
}

// MotorSpeeds computes the angular speed of each wheel, in radians per
// second, for a body velocity (vx, vy) and angular velocity w.
func (o Omniwheel) MotorSpeeds(vx, vy, w float64) [NumWheels]float64 {
	var speeds [NumWheels]float64
	spin := w * o.RobotRadius / o.WheelRadius
	mag := math.Hypot(vx, vy)
	dir := math.Atan2(vy, vx)
	for m := range speeds {
		contribution := math.Cos(dir - o.forwardDir(m))
		speeds[m] = contribution * mag / o.WheelRadius
		if o.ForwardsIsClockwise[m] {
			speeds[m] -= spin
		} else {
			speeds[m] += spin
		}
	}
	return speeds
}

// Velocity is the inverse of MotorSpeeds: it estimates the body velocity
// from measured wheel speeds.
func (o Omniwheel) Velocity(speeds [NumWheels]float64) (vx, vy, w float64) {
	for m := range speeds {
		rim := speeds[m] * o.WheelRadius
		fd := o.forwardDir(m)
		vx += rim * math.Cos(fd)
		vy += rim * math.Sin(fd)
		if o.ForwardsIsClockwise[m] {
			w -= rim
		} else {
			w += rim
		}
	}
	vx *= 2.0 / NumWheels
	vy *= 2.0 / NumWheels
	w /= NumWheels * o.RobotRadius
	return
}
