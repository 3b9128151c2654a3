package deps

import (
	"context"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

// LoginFlow establishes backend sessions for phone numbers
type LoginFlow interface {
	// SendCode starts a login and sends the code to the phone
	SendCode(ctx context.Context, phone string, apiID int, apiHash string) error

	// SignIn finishes the pending login and returns the session token
	SignIn(ctx context.Context, phone, code, password string) (string, error)

	// Cancel drops a pending login
	Cancel(phone string)
}

// AccountStore is the part of the account store sessions need
type AccountStore interface {
	Get(ctx context.Context, accountID string) (*entities.AccountConfig, error)
	Upsert(ctx context.Context, accountID string, patch entities.AccountPatch) (*entities.AccountConfig, error)
}

// ListenerStopper stops the listener of an account on logout
type ListenerStopper interface {
	Stop(ctx context.Context, accountID string) (string, error)
}
