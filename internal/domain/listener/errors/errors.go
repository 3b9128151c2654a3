package errors

import (
	pkgerrors "github.com/Conte777/NewsFlow/services/listener-service/pkg/errors"
)

var (
	ErrAccountNotFound  = pkgerrors.NewNotFoundError("account not found")
	ErrInvalidAccountID = pkgerrors.NewValidationError("invalid account id")
	ErrNoSession        = pkgerrors.NewValidationError("no valid session for account, create a session first")
	ErrSessionInvalid   = pkgerrors.NewUnauthorizedError("session is not authorized")
	ErrWriteFailure     = pkgerrors.NewInternalError("failed to persist data")
	ErrStoreUnavailable = pkgerrors.NewServiceUnavailableError("account store unavailable")
	ErrConnectFailed    = pkgerrors.NewServiceUnavailableError("failed to connect to backend")
	ErrStreamClosed     = pkgerrors.NewInternalError("event stream closed")
	ErrConnectionLost   = pkgerrors.NewInternalError("backend connection lost")
	ErrListenerPanic    = pkgerrors.NewInternalError("listener panicked")
	ErrShuttingDown     = pkgerrors.NewServiceUnavailableError("service is shutting down")
)
