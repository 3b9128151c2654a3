package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogTimeLayout is the timestamp format of message logs: UTC without zone suffix
const LogTimeLayout = "2006-01-02T15:04:05"

// LogTime is a UTC instant serialized without a zone suffix
type LogTime struct {
	time.Time
}

// NewLogTime normalizes t to UTC with second precision
func NewLogTime(t time.Time) LogTime {
	return LogTime{Time: t.UTC().Truncate(time.Second)}
}

func (t LogTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(LogTimeLayout))
}

// UnmarshalJSON accepts the naive layout (with optional fraction) and RFC 3339
func (t *LogTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range []string{LogTimeLayout, "2006-01-02T15:04:05.999999999", time.RFC3339Nano} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// CapturedMessage is one entry of an account's message log
type CapturedMessage struct {
	AccountID string  `json:"-"`
	Timestamp LogTime `json:"timestamp"`
	Text      string  `json:"text"`
	ChatID    int64   `json:"chat_id"`
	MessageID int64   `json:"message_id"`
}

// DedupKey identifies a message within one account's log
type DedupKey struct {
	ChatID    int64
	MessageID int64
}

// Key returns the dedup key of the message
func (m CapturedMessage) Key() DedupKey {
	return DedupKey{ChatID: m.ChatID, MessageID: m.MessageID}
}

// MessageFromEvent builds the log entry for a delivered event
func MessageFromEvent(accountID string, ev Event) CapturedMessage {
	return CapturedMessage{
		AccountID: accountID,
		Timestamp: NewLogTime(ev.Timestamp),
		Text:      ev.Text,
		ChatID:    ev.ChatID,
		MessageID: ev.MessageID,
	}
}
