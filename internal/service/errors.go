package service

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/logging"
)

// ErrValidation marks a request rejected before reaching storage.
var ErrValidation = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// connectCode maps domain errors to Connect codes.
func connectCode(err error) connect.Code {
	switch {
	case errors.Is(err, ErrValidation):
		return connect.CodeInvalidArgument
	case errors.Is(err, storage.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, storage.ErrConflict):
		return connect.CodeFailedPrecondition
	case errors.Is(err, auth.ErrEmailExists):
		return connect.CodeAlreadyExists
	case errors.Is(err, auth.ErrWeakPassword):
		return connect.CodeInvalidArgument
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return connect.CodeUnauthenticated
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

// fail logs a failed operation and converts err to a Connect error.
// Client errors log at WARN, everything else at ERROR.
func fail(ctx context.Context, op string, err error, attrs ...any) *connect.Error {
	code := connectCode(err)
	logger := logging.FromContext(ctx)
	args := append([]any{"error", err}, attrs...)
	if code == connect.CodeInternal {
		logger.Error(op+" failed", args...)
	} else {
		logger.Warn(op+" failed", args...)
	}
	return connect.NewError(code, err)
}
