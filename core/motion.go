package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MotionIntegrator turns the displacement (dx, dy) covered during one
// simulation step of dt seconds into a velocity and an acceleration.
type MotionIntegrator interface {
	Integrate(dx, dy, dt, previousSpeed float64) (velocity mgl64.Vec2, acceleration float64)
}

// MotionIntegratorFunc adapts a function to a MotionIntegrator.
type MotionIntegratorFunc func(dx, dy, dt, previousSpeed float64) (mgl64.Vec2, float64)

// Integrate calls f.
func (f MotionIntegratorFunc) Integrate(dx, dy, dt, previousSpeed float64) (mgl64.Vec2, float64) {
	return f(dx, dy, dt, previousSpeed)
}

// FiniteDifferenceIntegrator derives speed as distance over time and
// acceleration as the speed change over time.
type FiniteDifferenceIntegrator struct{}

// Integrate implements MotionIntegrator. A non-positive dt yields a zero
// kinetic state.
func (FiniteDifferenceIntegrator) Integrate(dx, dy, dt, previousSpeed float64) (mgl64.Vec2, float64) {
	if dt <= 0 {
		return mgl64.Vec2{}, 0
	}
	speed := math.Hypot(dx, dy) / dt
	accel := (speed - previousSpeed) / dt
	return scaledDirection(dx, dy, speed), accel
}

// SpeedLimitedIntegrator caps the reported speed and acceleration of
// another integrator. Zero limits disable capping.
type SpeedLimitedIntegrator struct {
	Inner           MotionIntegrator
	MaxSpeed        float64
	MaxAcceleration float64
}

// Integrate implements MotionIntegrator.
func (s SpeedLimitedIntegrator) Integrate(dx, dy, dt, previousSpeed float64) (mgl64.Vec2, float64) {
	inner := s.Inner
	if inner == nil {
		inner = FiniteDifferenceIntegrator{}
	}
	v, a := inner.Integrate(dx, dy, dt, previousSpeed)
	if s.MaxSpeed > 0 && v.Len() > s.MaxSpeed {
		v = v.Normalize().Mul(s.MaxSpeed)
	}
	if s.MaxAcceleration > 0 {
		a = math.Max(-s.MaxAcceleration, math.Min(a, s.MaxAcceleration))
	}
	return v, a
}

func scaledDirection(dx, dy, magnitude float64) mgl64.Vec2 {
	v := mgl64.Vec2{dx, dy}
	if v.Len() == 0 {
		return v
	}
	return v.Normalize().Mul(magnitude)
}
