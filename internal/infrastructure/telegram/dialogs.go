package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

const (
	dialogsPageSize = 100
	// maxDialogPages bounds the bulk listing for accounts with huge dialog lists
	maxDialogPages = 50
)

// ListDialogs returns every group and channel the account is a member of
func (s *Session) ListDialogs(ctx context.Context) ([]entities.Chat, error) {
	var result []entities.Chat
	seen := make(map[int64]struct{})

	req := &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      dialogsPageSize,
	}

	for page := 0; page < maxDialogPages; page++ {
		res, err := s.api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to get dialogs: %w", err)
		}

		var (
			dialogs  []tg.DialogClass
			messages []tg.MessageClass
			chats    []tg.ChatClass
			users    []tg.UserClass
			complete bool
		)
		switch d := res.(type) {
		case *tg.MessagesDialogs:
			dialogs, messages, chats, users = d.Dialogs, d.Messages, d.Chats, d.Users
			complete = true
		case *tg.MessagesDialogsSlice:
			dialogs, messages, chats, users = d.Dialogs, d.Messages, d.Chats, d.Users
		case *tg.MessagesDialogsNotModified:
			complete = true
		default:
			return nil, fmt.Errorf("unexpected dialogs type %T", res)
		}

		for _, c := range chats {
			chat, ok := chatFromTG(c)
			if !ok {
				continue
			}
			if _, dup := seen[chat.MarkedID()]; dup {
				continue
			}
			seen[chat.MarkedID()] = struct{}{}
			result = append(result, chat)
		}

		if complete || len(dialogs) < dialogsPageSize {
			break
		}

		next, ok := nextDialogsOffset(dialogs, messages, chats, users)
		if !ok {
			break
		}
		req.OffsetID = next.id
		req.OffsetDate = next.date
		req.OffsetPeer = next.peer
	}

	s.logger.Debug().Int("chats", len(result)).Msg("fetched dialogs")
	return result, nil
}

type dialogsOffset struct {
	id   int
	date int
	peer tg.InputPeerClass
}

// nextDialogsOffset computes the pagination offset from the last dialog of a page
func nextDialogsOffset(dialogs []tg.DialogClass, messages []tg.MessageClass, chats []tg.ChatClass, users []tg.UserClass) (dialogsOffset, bool) {
	var last *tg.Dialog
	for i := len(dialogs) - 1; i >= 0; i-- {
		if d, ok := dialogs[i].(*tg.Dialog); ok {
			last = d
			break
		}
	}
	if last == nil {
		return dialogsOffset{}, false
	}

	peer, ok := inputPeer(last.Peer, chats, users)
	if !ok {
		return dialogsOffset{}, false
	}

	lastPeerID, _ := markedPeerID(last.Peer)
	offset := dialogsOffset{id: last.TopMessage, peer: peer}
	for _, m := range messages {
		var id, date int
		var peerID tg.PeerClass
		switch msg := m.(type) {
		case *tg.Message:
			id, date, peerID = msg.ID, msg.Date, msg.PeerID
		case *tg.MessageService:
			id, date, peerID = msg.ID, msg.Date, msg.PeerID
		default:
			continue
		}
		if pid, _ := markedPeerID(peerID); id == last.TopMessage && pid == lastPeerID {
			offset.date = date
			break
		}
	}
	return offset, true
}

// ResolveEntity looks up a single reference: usernames via contacts.resolveUsername,
// numeric ids via messages.getChats or channels.getChannels
func (s *Session) ResolveEntity(ctx context.Context, ref entities.GroupRef) (entities.Chat, error) {
	if ref.IsAlias() {
		resolved, err := s.api.ContactsResolveUsername(ctx, ref.Username)
		if err != nil {
			return entities.Chat{}, fmt.Errorf("failed to resolve username: %w", err)
		}
		target, _ := markedPeerID(resolved.Peer)
		for _, c := range resolved.Chats {
			if chat, ok := chatFromTG(c); ok && chat.MarkedID() == target {
				return chat, nil
			}
		}
		return entities.Chat{}, fmt.Errorf("%s is not a group or channel", ref)
	}

	kind, raw := entities.UnmarkID(ref.ID)
	var lastErr error

	if kind != entities.ChatKindChat {
		res, err := s.api.ChannelsGetChannels(ctx, []tg.InputChannelClass{
			&tg.InputChannel{ChannelID: raw},
		})
		if err == nil {
			if chat, ok := firstChat(res.GetChats(), raw); ok {
				return chat, nil
			}
		} else {
			lastErr = err
		}
	}

	if kind != entities.ChatKindChannel {
		res, err := s.api.MessagesGetChats(ctx, []int64{raw})
		if err == nil {
			if chat, ok := firstChat(res.GetChats(), raw); ok {
				return chat, nil
			}
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return entities.Chat{}, fmt.Errorf("failed to resolve %s: %w", ref, lastErr)
	}
	return entities.Chat{}, fmt.Errorf("chat %s not found", ref)
}

func firstChat(chats []tg.ChatClass, raw int64) (entities.Chat, bool) {
	for _, c := range chats {
		if chat, ok := chatFromTG(c); ok && chat.RawID == raw {
			return chat, true
		}
	}
	return entities.Chat{}, false
}

// chatFromTG converts listenable chat kinds, forbidden and empty chats are skipped
func chatFromTG(c tg.ChatClass) (entities.Chat, bool) {
	switch chat := c.(type) {
	case *tg.Chat:
		return entities.Chat{
			RawID: chat.ID,
			Kind:  entities.ChatKindChat,
			Title: chat.Title,
		}, true
	case *tg.Channel:
		return entities.Chat{
			RawID:      chat.ID,
			AccessHash: chat.AccessHash,
			Kind:       entities.ChatKindChannel,
			Title:      chat.Title,
			Username:   chat.Username,
		}, true
	default:
		return entities.Chat{}, false
	}
}

// markedPeerID returns the Bot API style id of a chat or channel peer; users are not chats
func markedPeerID(p tg.PeerClass) (int64, bool) {
	switch peer := p.(type) {
	case *tg.PeerChannel:
		return entities.MarkID(entities.ChatKindChannel, peer.ChannelID), true
	case *tg.PeerChat:
		return entities.MarkID(entities.ChatKindChat, peer.ChatID), true
	case *tg.PeerUser:
		return peer.UserID, false
	default:
		return 0, false
	}
}

func inputPeer(p tg.PeerClass, chats []tg.ChatClass, users []tg.UserClass) (tg.InputPeerClass, bool) {
	switch peer := p.(type) {
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: peer.ChatID}, true
	case *tg.PeerChannel:
		for _, c := range chats {
			if ch, ok := c.(*tg.Channel); ok && ch.ID == peer.ChannelID {
				return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, true
			}
		}
	case *tg.PeerUser:
		for _, u := range users {
			if user, ok := u.(*tg.User); ok && user.ID == peer.UserID {
				return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, true
			}
		}
	}
	return nil, false
}
