package robot

import "math"

// WheelCalibration maps normalized wheel commands to joint velocities.
type WheelCalibration struct {
	MaxSpeed float64 `json:"max_speed" yaml:"max_speed"` // rad/s at full command
	Invert   bool    `json:"invert" yaml:"invert"`
}

// DefaultWheelCalibration returns the calibration of the standard scene.
func DefaultWheelCalibration() WheelCalibration {
	return WheelCalibration{MaxSpeed: 5}
}

// Normalize converts a joint velocity to a command in the range [-100, 100].
func (c WheelCalibration) Normalize(speed float64) float64 {
	if c.MaxSpeed == 0 {
		return 0
	}
	norm := clamp(speed/c.MaxSpeed*100, 100)
	if c.Invert {
		norm = -norm
	}
	return norm
}

// Denormalize converts a command in the range [-100, 100] to a joint velocity.
// Commands outside the range are clamped.
func (c WheelCalibration) Denormalize(norm float64) float64 {
	speed := clamp(norm, 100) / 100 * c.MaxSpeed
	if c.Invert {
		speed = -speed
	}
	return speed
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
