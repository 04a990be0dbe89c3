package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath indicates a transform whose path does not match the
	// entity position or direction of travel. The entity does not move.
	ErrInvalidPath = errors.New("invalid path")
	// ErrPathEntryUnresolved indicates that the entry connection of the
	// destination segment cannot be derived from the path.
	ErrPathEntryUnresolved = fmt.Errorf("%w: cannot obtain the new entry point from the path", ErrInvalidPath)
	// ErrUnsupportedConfiguration indicates an agent configuration that is
	// recognised but not implemented (physical or interest filters).
	ErrUnsupportedConfiguration = errors.New("not yet supported")
	// ErrInvariantViolation indicates a NaN position after a transform.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrCapabilityAbsent indicates a capability query on an entity that
	// does not declare it.
	ErrCapabilityAbsent = errors.New("capability absent")
	// ErrEntityNotFound indicates an unknown entity or agent identifier.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrEntityExists indicates a duplicate entity registration.
	ErrEntityExists = errors.New("entity already registered")
	// ErrSegmentNotInNetwork indicates an entity located on a segment that
	// does not belong to the managed road network.
	ErrSegmentNotInNetwork = errors.New("segment not in road network")
	// ErrUnsupportedPerceptionType indicates a perception query whose
	// percept type does not match the agent's perception list.
	ErrUnsupportedPerceptionType = errors.New("unsupported perception type")
)
