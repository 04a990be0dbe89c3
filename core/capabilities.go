package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Influencable entities are attached to the environment they emit
// influences into. A zero handle detaches them.
type Influencable interface {
	SetEnvironment(env PlaceHandle)
	Environment() (PlaceHandle, bool)
}

// Kinematic entities expose their linear motion state.
type Kinematic interface {
	LinearSpeed() float64
	LinearAcceleration() float64
	LinearVelocity1D5() mgl64.Vec2
}

// Steering entities expose the limits a driver must respect.
type Steering interface {
	MaxLinearSpeed() float64
	MaxLinearAcceleration() float64
	MaxLinearDeceleration() float64
}

// Capabilities is the closed set of optional traits an entity declares at
// construction.
type Capabilities struct {
	influencable Influencable
	kinematic    Kinematic
	steering     Steering
}

// CapabilitiesOf probes owner for each capability interface.
func CapabilitiesOf(owner any) Capabilities {
	var c Capabilities
	if v, ok := owner.(Influencable); ok {
		c.influencable = v
	}
	if v, ok := owner.(Kinematic); ok {
		c.kinematic = v
	}
	if v, ok := owner.(Steering); ok {
		c.steering = v
	}
	return c
}

// IsInfluencable reports whether the entity accepts an environment
// back-reference.
func (c Capabilities) IsInfluencable() bool { return c.influencable != nil }

// IsKinematic reports whether the entity moves along the network.
func (c Capabilities) IsKinematic() bool { return c.kinematic != nil }

// IsSteering reports whether the entity has speed and acceleration limits.
func (c Capabilities) IsSteering() bool { return c.steering != nil }

func (c Capabilities) Influencable() (Influencable, bool) { return c.influencable, c.influencable != nil }
func (c Capabilities) Kinematic() (Kinematic, bool)       { return c.kinematic, c.kinematic != nil }
func (c Capabilities) Steering() (Steering, bool)         { return c.steering, c.steering != nil }

// ToInfluencable fails with ErrCapabilityAbsent when the capability is
// not declared.
func (c Capabilities) ToInfluencable() (Influencable, error) {
	if c.influencable == nil {
		return nil, fmt.Errorf("%w: influencable", ErrCapabilityAbsent)
	}
	return c.influencable, nil
}

// ToKinematic fails with ErrCapabilityAbsent when the capability is not
// declared.
func (c Capabilities) ToKinematic() (Kinematic, error) {
	if c.kinematic == nil {
		return nil, fmt.Errorf("%w: kinematic", ErrCapabilityAbsent)
	}
	return c.kinematic, nil
}

// ToSteering fails with ErrCapabilityAbsent when the capability is not
// declared.
func (c Capabilities) ToSteering() (Steering, error) {
	if c.steering == nil {
		return nil, fmt.Errorf("%w: steering", ErrCapabilityAbsent)
	}
	return c.steering, nil
}
