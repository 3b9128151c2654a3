package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	sessionerrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// pendingLogin is a connected client waiting for the login code of one phone
type pendingLogin struct {
	phone        string
	runner       *runner
	storage      *MemorySessionStorage
	codeHash     string
	needPassword bool
	expiresAt    time.Time

	// serializes sign-in attempts for one phone
	mu sync.Mutex
}

func (p *pendingLogin) isExpired(now time.Time) bool {
	return now.After(p.expiresAt)
}

// LoginManager runs phone-code logins and keeps pending clients in memory
type LoginManager struct {
	ttl            time.Duration
	sweepInterval  time.Duration
	maxPending     int
	connectTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingLogin

	stopOnce    sync.Once
	stopCleanup chan struct{}
	logger      zerolog.Logger
}

// NewLoginManager creates a login manager; call Start to run the expiry sweeper
func NewLoginManager(cfg *config.SessionConfig, logger zerolog.Logger) *LoginManager {
	return &LoginManager{
		ttl:            cfg.LoginTTL,
		sweepInterval:  cfg.SweepInterval,
		maxPending:     cfg.MaxPending,
		connectTimeout: cfg.ConnectTimeout,
		pending:        make(map[string]*pendingLogin),
		stopCleanup:    make(chan struct{}),
		logger:         logger.With().Str("component", "login_manager").Logger(),
	}
}

// SendCode connects a fresh client and asks Telegram to send a login code to phoneNumber.
// A previous pending login for the same phone is disposed.
func (m *LoginManager) SendCode(ctx context.Context, phoneNumber string, apiID int, apiHash string) error {
	log := m.logger.With().Str("phone", phone.Mask(phoneNumber)).Logger()

	m.Cancel(phoneNumber)

	m.mu.Lock()
	if m.maxPending > 0 && len(m.pending) >= m.maxPending {
		m.mu.Unlock()
		return sessionerrors.ErrTooManyLogins
	}
	m.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	storage := NewMemorySessionStorage()
	client := telegram.NewClient(apiID, apiHash, telegram.Options{SessionStorage: storage})
	r, err := startClient(connectCtx, client, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to connect login client")
		return sessionerrors.ErrTelegramConnect.Wrap(err)
	}

	sent, err := client.Auth().SendCode(connectCtx, phoneNumber, auth.SendCodeOptions{})
	if err != nil {
		m.dispose(r)
		log.Error().Err(err).Msg("failed to send login code")
		if tgerr.Is(err, "PHONE_NUMBER_INVALID") {
			return sessionerrors.ErrInvalidPhone.Wrap(err)
		}
		return sessionerrors.ErrSendCodeFailed.Wrap(err)
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		m.dispose(r)
		return sessionerrors.ErrSendCodeFailed.Wrap(fmt.Errorf("unexpected sent code type %T", sent))
	}

	p := &pendingLogin{
		phone:     phoneNumber,
		runner:    r,
		storage:   storage,
		codeHash:  code.PhoneCodeHash,
		expiresAt: time.Now().Add(m.ttl),
	}

	m.mu.Lock()
	if old, exists := m.pending[phoneNumber]; exists {
		// a concurrent init for the same phone won the race
		go m.dispose(old.runner)
	}
	m.pending[phoneNumber] = p
	m.mu.Unlock()

	log.Info().Dur("ttl", m.ttl).Msg("login code sent")
	return nil
}

// SignIn completes a pending login and returns the exported session token.
// When the account has 2FA enabled and password is empty, ErrPasswordRequired is
// returned and the login stays pending for a retry with the password.
func (m *LoginManager) SignIn(ctx context.Context, phoneNumber, code, password string) (string, error) {
	p, err := m.load(phoneNumber)
	if err != nil {
		return "", err
	}
	log := m.logger.With().Str("phone", phone.Mask(phoneNumber)).Logger()

	p.mu.Lock()
	defer p.mu.Unlock()

	client := p.runner.client

	if !p.needPassword {
		_, err = client.Auth().SignIn(ctx, phoneNumber, code, p.codeHash)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrPasswordAuthNeeded):
			p.needPassword = true
		case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY"):
			log.Warn().Msg("invalid login code")
			return "", sessionerrors.ErrInvalidCode
		case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
			m.remove(phoneNumber, p)
			return "", sessionerrors.ErrCodeExpired
		default:
			m.remove(phoneNumber, p)
			log.Error().Err(err).Msg("sign in failed")
			return "", sessionerrors.ErrSignInFailed.Wrap(err)
		}
	}

	if p.needPassword {
		if password == "" {
			return "", sessionerrors.ErrPasswordRequired
		}
		if _, err := client.Auth().Password(ctx, password); err != nil {
			if errors.Is(err, auth.ErrPasswordInvalid) || tgerr.Is(err, "PASSWORD_HASH_INVALID") {
				log.Warn().Msg("invalid 2fa password")
				return "", sessionerrors.ErrInvalidPassword
			}
			m.remove(phoneNumber, p)
			log.Error().Err(err).Msg("2FA authentication failed")
			return "", sessionerrors.ErrSignInFailed.Wrap(err)
		}
	}

	token := p.storage.Token()
	m.remove(phoneNumber, p)

	if token == "" {
		return "", sessionerrors.ErrSignInFailed.Wrap(fmt.Errorf("no session data stored"))
	}

	log.Info().Msg("login completed")
	return token, nil
}

// Cancel disposes the pending login of phoneNumber, if any
func (m *LoginManager) Cancel(phoneNumber string) {
	m.mu.Lock()
	p, ok := m.pending[phoneNumber]
	delete(m.pending, phoneNumber)
	m.mu.Unlock()

	if ok {
		m.dispose(p.runner)
		m.logger.Debug().Str("phone", phone.Mask(phoneNumber)).Msg("pending login disposed")
	}
}

// Count returns the number of pending logins
func (m *LoginManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Cleanup removes expired logins and returns how many were removed
func (m *LoginManager) Cleanup() int {
	now := time.Now()

	m.mu.Lock()
	var expired []*pendingLogin
	for phoneNumber, p := range m.pending {
		if p.isExpired(now) {
			expired = append(expired, p)
			delete(m.pending, phoneNumber)
		}
	}
	m.mu.Unlock()

	for _, p := range expired {
		m.dispose(p.runner)
	}

	if len(expired) > 0 {
		m.logger.Info().Int("removed", len(expired)).Msg("cleaned up expired logins")
	}
	return len(expired)
}

// Start runs the expiry sweeper
func (m *LoginManager) Start() {
	go m.runCleanup()
}

// Stop stops the sweeper and disposes every pending login
func (m *LoginManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})

	m.mu.Lock()
	all := m.pending
	m.pending = make(map[string]*pendingLogin)
	m.mu.Unlock()

	for _, p := range all {
		m.dispose(p.runner)
	}
}

func (m *LoginManager) runCleanup() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	m.logger.Info().
		Dur("interval", m.sweepInterval).
		Dur("ttl", m.ttl).
		Msg("login cleanup started")

	for {
		select {
		case <-m.stopCleanup:
			m.logger.Info().Msg("login cleanup stopped")
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

func (m *LoginManager) load(phoneNumber string) (*pendingLogin, error) {
	m.mu.Lock()
	p, ok := m.pending[phoneNumber]
	m.mu.Unlock()

	if !ok {
		return nil, sessionerrors.ErrLoginNotFound
	}
	if p.isExpired(time.Now()) {
		m.remove(phoneNumber, p)
		return nil, sessionerrors.ErrLoginExpired
	}
	return p, nil
}

// remove drops p if it is still the pending login of phoneNumber
func (m *LoginManager) remove(phoneNumber string, p *pendingLogin) {
	m.mu.Lock()
	if m.pending[phoneNumber] == p {
		delete(m.pending, phoneNumber)
	}
	m.mu.Unlock()
	m.dispose(p.runner)
}

func (m *LoginManager) dispose(r *runner) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.stop(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("login client did not stop cleanly")
	}
}
