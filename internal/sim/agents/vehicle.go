// Package agents provides the concrete bodies and props placed on a road
// network, and the drivers that decide how vehicles move each tick.
package agents

import (
	"fmt"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/model"
	"github.com/signalsfoundry/roadsim/roadnet"
)

const (
	// VehicleSemantic is the type of every Vehicle.
	VehicleSemantic model.Semantic = "vehicle"
	// LandmarkSemantic is the default type of a Landmark.
	LandmarkSemantic model.Semantic = "landmark"
)

// VehicleSpec holds the physical size and steering limits of a vehicle.
type VehicleSpec struct {
	Length          float64
	Width           float64
	MaxSpeed        float64 // m/s
	MaxAcceleration float64 // m/s²
	MaxDeceleration float64 // m/s², positive
}

// DefaultVehicleSpec is a passenger car.
var DefaultVehicleSpec = VehicleSpec{
	Length:          4.5,
	Width:           1.8,
	MaxSpeed:        14,
	MaxAcceleration: 2.5,
	MaxDeceleration: 6,
}

// Validate rejects non-positive sizes and limits.
func (s VehicleSpec) Validate() error {
	switch {
	case s.Length <= 0 || s.Width <= 0:
		return fmt.Errorf("vehicle size must be positive, got %gx%g", s.Length, s.Width)
	case s.MaxSpeed <= 0:
		return fmt.Errorf("vehicle max speed must be positive, got %g", s.MaxSpeed)
	case s.MaxAcceleration <= 0 || s.MaxDeceleration <= 0:
		return fmt.Errorf("vehicle acceleration limits must be positive, got %g/%g", s.MaxAcceleration, s.MaxDeceleration)
	}
	return nil
}

// Vehicle is an agent body that declares the steering and influencable
// capabilities on top of the kinematics of its mobile entity.
type Vehicle struct {
	*core.Body1D5

	spec VehicleSpec
	env  core.PlaceHandle
}

// NewVehicle places a vehicle centred at curviline on seg, travelling away
// from entry.
func NewVehicle(seg *roadnet.Segment, entry *roadnet.Connection, curviline, jutting float64, spec VehicleSpec, entityOpts []core.EntityOption, bodyOpts ...core.BodyOption) (*Vehicle, error) {
	if seg == nil {
		return nil, fmt.Errorf("vehicle needs a road segment")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	bounds := model.NewBoundingRect1D5(seg, curviline-spec.Length/2, curviline+spec.Length/2, jutting, spec.Width)
	opts := append([]core.EntityOption{core.WithType(VehicleSemantic)}, entityOpts...)
	v := &Vehicle{
		Body1D5: core.NewBody1D5(bounds, entry, opts, bodyOpts...),
		spec:    spec,
	}
	v.SetMotionIntegrator(core.SpeedLimitedIntegrator{MaxSpeed: spec.MaxSpeed})
	v.DeclareCapabilities(v)
	return v, nil
}

// Spec returns the physical description of the vehicle.
func (v *Vehicle) Spec() VehicleSpec { return v.spec }

func (v *Vehicle) MaxLinearSpeed() float64        { return v.spec.MaxSpeed }
func (v *Vehicle) MaxLinearAcceleration() float64 { return v.spec.MaxAcceleration }
func (v *Vehicle) MaxLinearDeceleration() float64 { return v.spec.MaxDeceleration }

// SetEnvironment attaches the vehicle to the place it influences.
func (v *Vehicle) SetEnvironment(env core.PlaceHandle) { v.env = env }

// Environment returns the attached place, if any.
func (v *Vehicle) Environment() (core.PlaceHandle, bool) { return v.env, !v.env.IsZero() }
