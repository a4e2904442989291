package robot

import (
	"math"
	"testing"
)

func TestWheelCalibration_Normalize(t *testing.T) {
	cal := WheelCalibration{MaxSpeed: 4}

	tests := []struct {
		speed    float64
		expected float64
	}{
		{-4, -100},
		{4, 100},
		{0, 0},
		{-2, -50},
		{2, 50},
		{8, 100}, // clamped
	}

	for _, tt := range tests {
		got := cal.Normalize(tt.speed)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%f) = %f, want %f", tt.speed, got, tt.expected)
		}
	}
}

func TestWheelCalibration_Denormalize(t *testing.T) {
	cal := WheelCalibration{MaxSpeed: 4}

	tests := []struct {
		norm     float64
		expected float64
	}{
		{-100, -4},
		{100, 4},
		{0, 0},
		{-50, -2},
		{50, 2},
		{250, 4}, // clamped
	}

	for _, tt := range tests {
		got := cal.Denormalize(tt.norm)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Denormalize(%f) = %f, want %f", tt.norm, got, tt.expected)
		}
	}
}

func TestWheelCalibration_Invert(t *testing.T) {
	cal := WheelCalibration{MaxSpeed: 2, Invert: true}

	if got := cal.Denormalize(100); got != -2 {
		t.Errorf("Denormalize(100) = %f, want -2", got)
	}
	if got := cal.Normalize(-2); got != 100 {
		t.Errorf("Normalize(-2) = %f, want 100", got)
	}
}

func TestWheelCalibration_RoundTrip(t *testing.T) {
	cal := WheelCalibration{MaxSpeed: 7.5}

	// command -> speed -> command
	for norm := -100.0; norm <= 100; norm += 12.5 {
		speed := cal.Denormalize(norm)
		back := cal.Normalize(speed)
		if math.Abs(back-norm) > 0.001 {
			t.Errorf("Round-trip failed: %f -> %f -> %f", norm, speed, back)
		}
	}
}

func TestWheelCalibration_ZeroMaxSpeed(t *testing.T) {
	var cal WheelCalibration
	if got := cal.Normalize(3); got != 0 {
		t.Errorf("Normalize(3) = %f, want 0", got)
	}
	if got := cal.Denormalize(50); got != 0 {
		t.Errorf("Denormalize(50) = %f, want 0", got)
	}
}
