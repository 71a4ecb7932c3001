package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/command"
	"github.com/signalsfoundry/siege-simulator/internal/persist"
)

// ToStatusError maps game and command errors onto gRPC status codes.
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

	case errors.Is(err, command.ErrUnknownCommand),
		errors.Is(err, persist.ErrNotFound),
		errors.Is(err, command.ErrUnknownPlayer):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, command.ErrUsage),
		errors.Is(err, command.ErrNotANumber),
		errors.Is(err, command.ErrInvalidTeam),
		errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, command.ErrNotAPlayer),
		errors.Is(err, core.ErrInvalidState),
		errors.Is(err, core.ErrMissingConfiguration):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, core.ErrAlreadyRunning):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, core.ErrConfigurationCorrupt):
		return status.Error(codes.DataLoss, err.Error())

	case errors.Is(err, command.ErrNoStore):
		return status.Error(codes.Unimplemented, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
