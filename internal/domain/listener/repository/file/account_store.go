package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	listenererrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/fsutil"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/jsonutil"
)

// AccountsFileName is the store document inside the data directory
const AccountsFileName = "database.json"

// accountRecord is the on-disk shape of one account
type accountRecord struct {
	APIID        jsonutil.FlexInt `json:"api_id"`
	APIHash      string           `json:"api_hash"`
	SessionToken string           `json:"session_string,omitempty"`
	Groups       []int64          `json:"groups"`
	GroupAliases []string         `json:"group_aliases,omitempty"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
}

func recordOf(cfg entities.AccountConfig) accountRecord {
	rec := accountRecord{
		APIID:        jsonutil.FlexInt(cfg.APIID),
		APIHash:      cfg.APIHash,
		SessionToken: cfg.SessionToken,
		Groups:       cfg.Groups,
		GroupAliases: cfg.GroupAliases,
	}
	if rec.Groups == nil {
		rec.Groups = []int64{}
	}
	if !cfg.UpdatedAt.IsZero() {
		t := cfg.UpdatedAt.UTC()
		rec.UpdatedAt = &t
	}
	return rec
}

func (r accountRecord) toEntity(accountID string) entities.AccountConfig {
	cfg := entities.AccountConfig{
		AccountID:    accountID,
		APIID:        int(r.APIID),
		APIHash:      r.APIHash,
		SessionToken: r.SessionToken,
		Groups:       r.Groups,
		GroupAliases: r.GroupAliases,
	}
	if cfg.Groups == nil {
		cfg.Groups = []int64{}
	}
	if r.UpdatedAt != nil {
		cfg.UpdatedAt = *r.UpdatedAt
	}
	return cfg
}

// AccountStore keeps all accounts in one JSON document.
// The in-memory map is authoritative and only changes after the file was replaced.
type AccountStore struct {
	mu       sync.Mutex
	path     string
	accounts map[string]entities.AccountConfig
	logger   zerolog.Logger
}

// NewAccountStore loads dataDir/database.json, creating the directory if needed.
// An unreadable document is moved aside so it is never overwritten.
func NewAccountStore(dataDir string, logger zerolog.Logger) (*AccountStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &AccountStore{
		path:     filepath.Join(dataDir, AccountsFileName),
		accounts: make(map[string]entities.AccountConfig),
		logger:   logger.With().Str("component", "account_store").Logger(),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AccountStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read account store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var records map[string]accountRecord
	if err := json.Unmarshal(data, &records); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		s.logger.Error().Err(err).Str("backup", backup).Msg("account store is corrupt, starting empty")
		if err := os.Rename(s.path, backup); err != nil {
			return fmt.Errorf("failed to move corrupt account store aside: %w", err)
		}
		return nil
	}

	for id, rec := range records {
		s.accounts[id] = rec.toEntity(id)
	}
	s.logger.Info().Int("accounts", len(s.accounts)).Msg("account store loaded")
	return nil
}

// Get returns a copy of the account
func (s *AccountStore) Get(ctx context.Context, accountID string) (*entities.AccountConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.accounts[accountID]
	if !ok {
		return nil, listenererrors.ErrAccountNotFound
	}
	c := cfg.Clone()
	return &c, nil
}

// Upsert merges patch into the account and persists the whole document
func (s *AccountStore) Upsert(ctx context.Context, accountID string, patch entities.AccountPatch) (*entities.AccountConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.accounts[accountID]
	if ok {
		cfg = cfg.Clone()
	} else {
		cfg = entities.AccountConfig{AccountID: accountID}
	}
	patch.Apply(&cfg)
	cfg.UpdatedAt = time.Now().UTC()

	records := make(map[string]accountRecord, len(s.accounts)+1)
	for id, existing := range s.accounts {
		records[id] = recordOf(existing)
	}
	records[accountID] = recordOf(cfg)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, listenererrors.ErrWriteFailure.Wrap(err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist account store")
		return nil, listenererrors.ErrWriteFailure.Wrap(err)
	}

	s.accounts[accountID] = cfg
	c := cfg.Clone()
	return &c, nil
}

// List returns all accounts ordered by id
func (s *AccountStore) List(ctx context.Context) ([]entities.AccountConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]entities.AccountConfig, 0, len(s.accounts))
	for _, cfg := range s.accounts {
		result = append(result, cfg.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountID < result[j].AccountID })
	return result, nil
}
