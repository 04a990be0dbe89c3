package core

import (
	"fmt"

	"github.com/google/uuid"
)

// EnvironmentalAction1D5 is the transform an agent asks the environment to
// apply to one mobile entity at the next commit.
type EnvironmentalAction1D5 struct {
	EntityID  uuid.UUID
	Transform Transform1D5
}

// NewEnvironmentalAction1D5 builds an action moving entity by t.
func NewEnvironmentalAction1D5(entity uuid.UUID, t Transform1D5) EnvironmentalAction1D5 {
	return EnvironmentalAction1D5{EntityID: entity, Transform: t}
}

func (a EnvironmentalAction1D5) String() string {
	return fmt.Sprintf("action[%s %s]", a.EntityID, a.Transform)
}
