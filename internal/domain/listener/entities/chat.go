package entities

import "time"

// ChatKind distinguishes basic groups from channels and supergroups
type ChatKind string

const (
	ChatKindChat    ChatKind = "chat"
	ChatKindChannel ChatKind = "channel"
)

// channelIDOffset is the Bot API offset of marked channel ids (-100...)
const channelIDOffset int64 = 1_000_000_000_000

// Chat is a listenable entity as reported by the backend
type Chat struct {
	RawID      int64
	AccessHash int64
	Kind       ChatKind
	Title      string
	Username   string
}

// MarkedID returns the Bot API style id: -100<id> for channels, -<id> for chats
func (c Chat) MarkedID() int64 {
	return MarkID(c.Kind, c.RawID)
}

// MarkID converts a raw id of the given kind into its marked form
func MarkID(kind ChatKind, raw int64) int64 {
	if kind == ChatKindChannel {
		return -channelIDOffset - raw
	}
	return -raw
}

// UnmarkID reports the kind and raw id of a marked id.
// Positive ids are returned as-is with an empty kind.
func UnmarkID(id int64) (ChatKind, int64) {
	switch {
	case id < -channelIDOffset:
		return ChatKindChannel, -id - channelIDOffset
	case id < 0:
		return ChatKindChat, -id
	default:
		return "", id
	}
}

// ResolvedGroup ties a requested reference to the chat it resolved to
type ResolvedGroup struct {
	Ref  GroupRef
	Chat Chat
}

// Event is a new message delivered by a subscription
type Event struct {
	ChatID    int64
	MessageID int64
	Timestamp time.Time
	Text      string
}
