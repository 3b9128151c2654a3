package business

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	listenererrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/deps"
	sessionerrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// Results of session operations
const (
	StatusCodeSent = "code_sent"
	StatusOK       = "ok"
	StatusCleared  = "cleared"
)

// UseCase implements server-owned session establishment
type UseCase struct {
	login     deps.LoginFlow
	store     deps.AccountStore
	listeners deps.ListenerStopper
	logger    zerolog.Logger
}

// NewUseCase creates a new session use case
func NewUseCase(
	login deps.LoginFlow,
	store deps.AccountStore,
	listeners deps.ListenerStopper,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		login:     login,
		store:     store,
		listeners: listeners,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

// Init sends a login code to phone and remembers the API credentials for it.
// A login already pending for the phone is replaced.
func (u *UseCase) Init(ctx context.Context, phoneNumber string, apiID int, apiHash string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	apiHash = strings.TrimSpace(apiHash)

	if phoneNumber == "" || apiID <= 0 || apiHash == "" {
		return "", sessionerrors.ErrMissingAPIKeys
	}
	if !phone.IsValidAccountID(phoneNumber) {
		return "", sessionerrors.ErrInvalidPhone
	}

	log := u.logger.With().Str("phone", phone.Mask(phoneNumber)).Logger()

	if err := u.login.SendCode(ctx, phoneNumber, apiID, apiHash); err != nil {
		log.Warn().Err(err).Msg("failed to send login code")
		return "", err
	}

	if _, err := u.store.Upsert(ctx, phoneNumber, entities.AccountPatch{APIID: &apiID, APIHash: &apiHash}); err != nil {
		log.Error().Err(err).Msg("failed to persist api credentials")
		u.login.Cancel(phoneNumber)
		return "", err
	}

	log.Info().Msg("login code sent")
	return StatusCodeSent, nil
}

// Complete signs the pending login in and stores the resulting session token
func (u *UseCase) Complete(ctx context.Context, phoneNumber, code, password string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	code = strings.TrimSpace(code)

	if !phone.IsValidAccountID(phoneNumber) {
		return "", sessionerrors.ErrInvalidPhone
	}
	if code == "" {
		return "", sessionerrors.ErrInvalidCode
	}

	log := u.logger.With().Str("phone", phone.Mask(phoneNumber)).Logger()

	token, err := u.login.SignIn(ctx, phoneNumber, code, password)
	if err != nil {
		log.Warn().Err(err).Msg("sign in failed")
		return "", err
	}

	if _, err := u.store.Upsert(ctx, phoneNumber, entities.AccountPatch{SessionToken: &token}); err != nil {
		log.Error().Err(err).Msg("failed to persist session")
		return "", err
	}

	log.Info().Msg("session established")
	return StatusOK, nil
}

// HasSession reports whether a session token is stored for phone
func (u *UseCase) HasSession(ctx context.Context, phoneNumber string) (bool, error) {
	if !phone.IsValidAccountID(phoneNumber) {
		return false, sessionerrors.ErrInvalidPhone
	}

	cfg, err := u.store.Get(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, listenererrors.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	return cfg.HasSession(), nil
}

// Logout forgets the session token, drops a pending login and stops the listener
func (u *UseCase) Logout(ctx context.Context, phoneNumber string) (string, error) {
	if !phone.IsValidAccountID(phoneNumber) {
		return "", sessionerrors.ErrInvalidPhone
	}

	log := u.logger.With().Str("phone", phone.Mask(phoneNumber)).Logger()

	u.login.Cancel(phoneNumber)

	_, err := u.store.Get(ctx, phoneNumber)
	switch {
	case err == nil:
		empty := ""
		if _, err := u.store.Upsert(ctx, phoneNumber, entities.AccountPatch{SessionToken: &empty}); err != nil {
			log.Error().Err(err).Msg("failed to clear session")
			return "", err
		}
	case errors.Is(err, listenererrors.ErrAccountNotFound):
	default:
		return "", err
	}

	if _, err := u.listeners.Stop(ctx, phoneNumber); err != nil {
		log.Warn().Err(err).Msg("failed to stop listener on logout")
	}

	log.Info().Msg("session cleared")
	return StatusCleared, nil
}
