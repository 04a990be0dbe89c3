package simserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/roadsim/core"
	"github.com/signalsfoundry/roadsim/internal/sim/state"
)

// ErrInvalidArgument marks malformed requests.
var ErrInvalidArgument = errors.New("invalid argument")

// ToStatusError maps simulator errors onto gRPC status codes. Errors that
// already carry a status are returned unchanged.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	case errors.Is(err, state.ErrPlaceNotFound),
		errors.Is(err, core.ErrEntityNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidPath),
		errors.Is(err, core.ErrSegmentNotInNetwork):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrCapabilityAbsent),
		errors.Is(err, state.ErrDriverMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, state.ErrPlaceExists),
		errors.Is(err, core.ErrEntityExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, core.ErrUnsupportedConfiguration),
		errors.Is(err, core.ErrUnsupportedPerceptionType):
		return status.Error(codes.Unimplemented, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
