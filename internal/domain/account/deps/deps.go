package deps

import (
	"context"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

// AccountLister lists configured accounts
type AccountLister interface {
	List(ctx context.Context) ([]entities.AccountConfig, error)
}

// ListenerStatusReader reports listener state per account
type ListenerStatusReader interface {
	Status(accountID string) entities.ListenerStatus
	Running() int
}
