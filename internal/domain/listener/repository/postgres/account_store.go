package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	listenererrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/database"
)

// accountModel is the accounts table row
type accountModel struct {
	AccountID    string   `gorm:"column:account_id;primaryKey"`
	APIID        int      `gorm:"column:api_id"`
	APIHash      string   `gorm:"column:api_hash"`
	SessionToken string   `gorm:"column:session_token"`
	Groups       []int64  `gorm:"column:groups;serializer:json"`
	GroupAliases []string `gorm:"column:group_aliases;serializer:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (accountModel) TableName() string {
	return "accounts"
}

func (m *accountModel) toEntity() *entities.AccountConfig {
	cfg := entities.AccountConfig{
		AccountID:    m.AccountID,
		APIID:        m.APIID,
		APIHash:      m.APIHash,
		SessionToken: m.SessionToken,
		Groups:       m.Groups,
		GroupAliases: m.GroupAliases,
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if cfg.Groups == nil {
		cfg.Groups = []int64{}
	}
	return &cfg
}

func modelOf(cfg *entities.AccountConfig) *accountModel {
	return &accountModel{
		AccountID:    cfg.AccountID,
		APIID:        cfg.APIID,
		APIHash:      cfg.APIHash,
		SessionToken: cfg.SessionToken,
		Groups:       cfg.Groups,
		GroupAliases: cfg.GroupAliases,
	}
}

// AccountStore keeps accounts in the accounts table.
// Upserts are serialized in-process; the row lock only covers existing rows.
type AccountStore struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// Open connects to PostgreSQL and brings the schema up to date.
// A failed migration is returned as an error.
func Open(cfg *config.DatabaseConfig, logger zerolog.Logger) (*AccountStore, error) {
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		return nil, err
	}

	if err := database.RunMigrations(db, cfg); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to migrate accounts schema: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Str("database", cfg.DBName).
		Msg("postgres account store ready")
	return NewAccountStore(db), nil
}

// Close releases the connection pool
func (s *AccountStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *AccountStore) Get(ctx context.Context, accountID string) (*entities.AccountConfig, error) {
	var m accountModel
	result := s.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, listenererrors.ErrAccountNotFound
		}
		return nil, listenererrors.ErrStoreUnavailable.Wrap(result.Error)
	}
	return m.toEntity(), nil
}

// Upsert reads the row, applies the patch and writes it back under the store lock
func (s *AccountStore) Upsert(ctx context.Context, accountID string, patch entities.AccountPatch) (*entities.AccountConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved *entities.AccountConfig

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg := entities.AccountConfig{AccountID: accountID}

		var m accountModel
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).
			Take(&m)
		switch {
		case result.Error == nil:
			cfg = *m.toEntity()
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
		default:
			return result.Error
		}

		patch.Apply(&cfg)

		row := modelOf(&cfg)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"api_id", "api_hash", "session_token", "groups", "group_aliases", "updated_at"}),
		}).Create(row).Error; err != nil {
			return err
		}

		saved = row.toEntity()
		return nil
	})
	if err != nil {
		return nil, listenererrors.ErrWriteFailure.Wrap(err)
	}
	return saved, nil
}

func (s *AccountStore) List(ctx context.Context) ([]entities.AccountConfig, error) {
	var rows []accountModel
	result := s.db.WithContext(ctx).Order("account_id ASC").Find(&rows)
	if result.Error != nil {
		return nil, listenererrors.ErrStoreUnavailable.Wrap(result.Error)
	}

	accounts := make([]entities.AccountConfig, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *rows[i].toEntity())
	}
	return accounts, nil
}

// Ensure AccountStore implements deps.AccountStore interface
var _ deps.AccountStore = (*AccountStore)(nil)
