package kafka

// CapturedMessageEvent is published for every message newly appended to a log
type CapturedMessageEvent struct {
	AccountID string `json:"account_id"`
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}
