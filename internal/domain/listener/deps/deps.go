package deps

import (
	"context"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

// AccountStore persists account credentials and group selection
type AccountStore interface {
	// Get returns the account or ErrAccountNotFound
	Get(ctx context.Context, accountID string) (*entities.AccountConfig, error)

	// Upsert merges patch into the account, creating it if absent, and persists it
	Upsert(ctx context.Context, accountID string, patch entities.AccountPatch) (*entities.AccountConfig, error)

	// List returns all accounts ordered by id
	List(ctx context.Context) ([]entities.AccountConfig, error)
}

// MessageSink is the deduplicating per-account message log
type MessageSink interface {
	// Append adds msg unless its dedup key is already present; appended is false for duplicates
	Append(ctx context.Context, accountID string, msg entities.CapturedMessage) (appended bool, err error)

	// ReadAll returns the log in insertion order, empty when missing or unreadable
	ReadAll(ctx context.Context, accountID string) ([]entities.CapturedMessage, error)
}

// CapturePublisher forwards newly captured messages to downstream consumers
type CapturePublisher interface {
	PublishCaptured(ctx context.Context, msg entities.CapturedMessage) error
}

// Backend opens connections to the messaging backend
type Backend interface {
	Connect(ctx context.Context, creds entities.Credentials) (BackendSession, error)
}

// BackendSession is one open, possibly authorized, backend connection
type BackendSession interface {
	IsAuthorized(ctx context.Context) (bool, error)
	ListDialogs(ctx context.Context) ([]entities.Chat, error)
	ResolveEntity(ctx context.Context, ref entities.GroupRef) (entities.Chat, error)
	Subscribe(ctx context.Context, chats []entities.Chat) (Subscription, error)

	// Done is closed when the connection is gone
	Done() <-chan struct{}
	// Err reports why the connection is gone
	Err() error
	Close(ctx context.Context) error
}

// Subscription is a lazy stream of new-message events
type Subscription interface {
	// Events is closed when the stream ends
	Events() <-chan entities.Event
	Err() error
	Close()
}

// GroupResolver turns references into listenable chats
type GroupResolver interface {
	Resolve(ctx context.Context, session BackendSession, refs []entities.GroupRef) []entities.ResolvedGroup
}

// Task is a running listener
type Task interface {
	ID() string
	State() entities.ListenerState
	Resolved() int
	// Done is closed once the task reached ended or failed
	Done() <-chan struct{}
	Err() error
	// Stop requests cooperative cancellation
	Stop()
	// ForceClose tears down the backend connection without waiting for the task
	ForceClose()
}

// TaskFactory creates and launches listener tasks
type TaskFactory interface {
	Spawn(ctx context.Context, cfg entities.AccountConfig, refs []entities.GroupRef) Task
}

// ListenerRegistry is the control surface of running listeners
type ListenerRegistry interface {
	Start(ctx context.Context, accountID string, refs []entities.GroupRef) (string, error)
	Stop(ctx context.Context, accountID string) (string, error)
	Status(accountID string) entities.ListenerStatus
	Running() int
}

// SnapshotUploader stores a copy of an account's message log off-host
type SnapshotUploader interface {
	UploadSnapshot(ctx context.Context, accountID string, data []byte) error
}
