package errors

import (
	pkgerrors "github.com/Conte777/NewsFlow/services/listener-service/pkg/errors"
)

var (
	ErrLoginNotFound    = pkgerrors.NewNotFoundError("no pending login for this phone, call /session/init first")
	ErrLoginExpired     = pkgerrors.NewNotFoundError("pending login expired, call /session/init again")
	ErrTooManyLogins    = pkgerrors.NewServiceUnavailableError("too many pending logins")
	ErrPasswordRequired = pkgerrors.NewUnauthorizedError("2fa password required")
	ErrInvalidPassword  = pkgerrors.NewUnauthorizedError("invalid 2fa password")
	ErrInvalidCode      = pkgerrors.NewValidationError("invalid login code")
	ErrCodeExpired      = pkgerrors.NewValidationError("login code expired, call /session/init again")
	ErrInvalidPhone     = pkgerrors.NewValidationError("invalid phone number")
	ErrMissingAPIKeys   = pkgerrors.NewValidationError("api_id and api_hash are required")
	ErrTelegramConnect  = pkgerrors.NewServiceUnavailableError("failed to connect to telegram")
	ErrSendCodeFailed   = pkgerrors.NewServiceUnavailableError("failed to send login code")
	ErrSignInFailed     = pkgerrors.NewUnauthorizedError("sign in failed")
)
