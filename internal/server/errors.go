package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/internal/origin"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
)

// statusCode maps a ledger error to the gRPC code clients see.
func statusCode(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, arcerrors.ErrBadOrigin),
		errors.Is(err, origin.ErrStaleNonce),
		errors.Is(err, origin.ErrFutureNonce):
		return codes.Unauthenticated
	case errors.Is(err, ledger.ErrNotAuthorized):
		return codes.PermissionDenied
	case errors.Is(err, arcerrors.ErrNotFound),
		errors.Is(err, guild.ErrNoGuildFound),
		errors.Is(err, assetclass.ErrClassNotFound),
		errors.Is(err, delegation.ErrDelegateNotFound):
		return codes.NotFound
	case errors.Is(err, arcerrors.ErrAlreadyExists),
		errors.Is(err, delegation.ErrDuplicateDelegate):
		return codes.AlreadyExists
	case errors.Is(err, arcerrors.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrNotInitialized),
		errors.Is(err, ledger.ErrChainMismatch),
		errors.Is(err, ledger.ErrParamsMismatch):
		return codes.FailedPrecondition
	case errors.Is(err, arcerrors.ErrOverflow),
		errors.Is(err, assetclass.ErrNoAvailableClassID),
		errors.Is(err, delegation.ErrTooManyDelegates):
		return codes.ResourceExhausted
	case errors.Is(err, arcerrors.ErrInvalidInput),
		errors.Is(err, assetclass.ErrMetadataTooLong),
		errors.Is(err, delegation.ErrSelfDelegation):
		return codes.InvalidArgument
	}
	return codes.Internal
}

func toStatus(err error, what string) error {
	if err == nil {
		return nil
	}
	return status.Errorf(statusCode(err), "%s: %v", what, err)
}
