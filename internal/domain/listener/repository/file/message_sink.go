package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	listenererrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/fsutil"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// accountLog is the cached view of one account's log file
type accountLog struct {
	mu       sync.Mutex
	loaded   bool
	corrupt  bool
	messages []entities.CapturedMessage
	seen     map[entities.DedupKey]struct{}
}

// MessageSink stores captured messages as one JSON array per account.
// Appends for one account are serialized; different accounts proceed independently.
type MessageSink struct {
	dir       string
	publisher deps.CapturePublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu   sync.Mutex
	logs map[string]*accountLog

	readFile  func(name string) ([]byte, error)
	writeFile func(path string, data []byte, perm os.FileMode) error
}

// NewMessageSink creates a sink writing data_<accountId>.json files into dir
func NewMessageSink(dir string, publisher deps.CapturePublisher, m *metrics.Metrics, logger zerolog.Logger) (*MessageSink, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &MessageSink{
		dir:       dir,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With().Str("component", "message_sink").Logger(),
		logs:      make(map[string]*accountLog),
		readFile:  os.ReadFile,
		writeFile: fsutil.WriteFileAtomic,
	}, nil
}

// LogPath returns the log file of accountID
func (s *MessageSink) LogPath(accountID string) string {
	return filepath.Join(s.dir, "data_"+accountID+".json")
}

func (s *MessageSink) logFor(accountID string) *accountLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[accountID]
	if !ok {
		l = &accountLog{}
		s.logs[accountID] = l
	}
	return l
}

// ensureLoaded reads the file once; the caller holds l.mu.
// Read errors leave the log unloaded so the next call retries; only
// undecodable content marks it corrupt.
func (s *MessageSink) ensureLoaded(accountID string, l *accountLog) error {
	if l.loaded {
		return nil
	}

	log := s.logger.With().Str("phone", phone.Mask(accountID)).Logger()

	data, err := s.readFile(s.LogPath(accountID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Msg("failed to read message log")
		return fmt.Errorf("failed to read message log: %w", err)
	}

	l.loaded = true
	l.corrupt = false
	l.messages = nil
	l.seen = make(map[entities.DedupKey]struct{})
	if err != nil {
		return nil
	}

	var messages []entities.CapturedMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		log.Error().Err(err).Msg("message log is corrupt, treating as empty")
		l.corrupt = true
		return nil
	}

	for _, m := range messages {
		m.AccountID = accountID
		l.messages = append(l.messages, m)
		l.seen[m.Key()] = struct{}{}
	}
	log.Debug().Int("messages", len(l.messages)).Msg("message log loaded")
	return nil
}

// Append adds msg to the log of accountID unless its (chat_id, message_id) is already there.
// The file is replaced atomically; on failure the cached log is left unchanged.
func (s *MessageSink) Append(ctx context.Context, accountID string, msg entities.CapturedMessage) (bool, error) {
	if !phone.IsValidAccountID(accountID) {
		return false, listenererrors.ErrInvalidAccountID
	}

	start := time.Now()
	msg.AccountID = accountID

	l := s.logFor(accountID)
	l.mu.Lock()

	if err := s.ensureLoaded(accountID, l); err != nil {
		l.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordSinkError()
		}
		return false, listenererrors.ErrWriteFailure.Wrap(err)
	}

	if _, dup := l.seen[msg.Key()]; dup {
		l.mu.Unlock()
		s.record(false, start)
		return false, nil
	}

	if err := s.persist(accountID, l, msg); err != nil {
		l.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordSinkError()
		}
		s.logger.Error().
			Err(err).
			Str("phone", phone.Mask(accountID)).
			Int64("chat_id", msg.ChatID).
			Int64("message_id", msg.MessageID).
			Msg("failed to append message")
		return false, listenererrors.ErrWriteFailure.Wrap(err)
	}
	l.mu.Unlock()

	s.record(true, start)

	if s.publisher != nil {
		if err := s.publisher.PublishCaptured(ctx, msg); err != nil {
			s.logger.Warn().Err(err).Str("phone", phone.Mask(accountID)).Msg("failed to publish captured message")
		}
	}
	return true, nil
}

// persist writes the log with msg appended and updates the cache; the caller holds l.mu.
// A corrupt log is moved aside first and put back if the write fails.
func (s *MessageSink) persist(accountID string, l *accountLog, msg entities.CapturedMessage) error {
	path := s.LogPath(accountID)

	next := make([]entities.CapturedMessage, len(l.messages), len(l.messages)+1)
	copy(next, l.messages)
	next = append(next, msg)

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal message log: %w", err)
	}

	backup := ""
	if l.corrupt {
		backup = fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
		if err := os.Rename(path, backup); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to move corrupt log aside: %w", err)
			}
			backup = ""
		}
	}

	if err := s.writeFile(path, data, 0o600); err != nil {
		if backup != "" {
			if rerr := os.Rename(backup, path); rerr != nil {
				s.logger.Error().Err(rerr).Str("backup", backup).Msg("failed to restore corrupt message log")
			}
		}
		return err
	}

	if backup != "" {
		s.logger.Warn().Str("phone", phone.Mask(accountID)).Str("backup", backup).Msg("corrupt message log moved aside")
	}
	l.corrupt = false
	l.messages = next
	l.seen[msg.Key()] = struct{}{}
	return nil
}

func (s *MessageSink) record(appended bool, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordAppend(appended, time.Since(start).Seconds())
	}
}

// ReadAll returns the log of accountID in insertion order.
// A missing, corrupt or currently unreadable log reads as empty.
func (s *MessageSink) ReadAll(ctx context.Context, accountID string) ([]entities.CapturedMessage, error) {
	if !phone.IsValidAccountID(accountID) {
		return nil, listenererrors.ErrInvalidAccountID
	}

	l := s.logFor(accountID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := s.ensureLoaded(accountID, l); err != nil {
		return []entities.CapturedMessage{}, nil
	}

	result := make([]entities.CapturedMessage, len(l.messages))
	copy(result, l.messages)
	return result, nil
}

// Ensure MessageSink implements deps.MessageSink interface
var _ deps.MessageSink = (*MessageSink)(nil)
