// Package resolver maps group references onto chats the account can listen to.
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
)

// Resolver resolves references against the dialog list first and falls back
// to per-reference lookups for whatever the dialogs did not contain.
type Resolver struct {
	rate    rate.Limit
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewResolver(cfg *config.ListenerConfig, m *metrics.Metrics, logger zerolog.Logger) *Resolver {
	return &Resolver{
		rate:    rate.Limit(cfg.ResolveRate),
		metrics: m,
		logger:  logger.With().Str("component", "group_resolver").Logger(),
	}
}

// dialogIndex looks chats up by raw id, marked id and lower-cased username
type dialogIndex struct {
	byID       map[int64]entities.Chat
	byUsername map[string]entities.Chat
}

func newDialogIndex(chats []entities.Chat) *dialogIndex {
	idx := &dialogIndex{
		byID:       make(map[int64]entities.Chat, len(chats)*2),
		byUsername: make(map[string]entities.Chat),
	}
	for _, c := range chats {
		idx.byID[c.MarkedID()] = c
		if _, taken := idx.byID[c.RawID]; !taken {
			idx.byID[c.RawID] = c
		}
		if c.Username != "" {
			idx.byUsername[strings.ToLower(c.Username)] = c
		}
	}
	return idx
}

func (idx *dialogIndex) lookup(ref entities.GroupRef) (entities.Chat, bool) {
	if idx == nil {
		return entities.Chat{}, false
	}
	if ref.IsAlias() {
		c, ok := idx.byUsername[strings.ToLower(ref.Username)]
		return c, ok
	}
	c, ok := idx.byID[ref.ID]
	return c, ok
}

// Resolve never fails: unresolvable references are logged and skipped.
// The result holds at most one entry per chat, in reference order.
func (r *Resolver) Resolve(ctx context.Context, session deps.BackendSession, refs []entities.GroupRef) []entities.ResolvedGroup {
	start := time.Now()
	refs = entities.NormalizeRefs(refs)

	var idx *dialogIndex
	if len(refs) > 0 {
		dialogs, err := session.ListDialogs(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to list dialogs, resolving references one by one")
		} else {
			idx = newDialogIndex(dialogs)
		}
	}

	limiter := rate.NewLimiter(r.rate, 1)
	seen := make(map[int64]struct{}, len(refs))
	resolved := make([]entities.ResolvedGroup, 0, len(refs))
	unresolved := 0

	for _, ref := range refs {
		chat, ok := idx.lookup(ref)
		if !ok {
			if err := limiter.Wait(ctx); err != nil {
				r.logger.Warn().Err(err).Str("group", ref.String()).Msg("group resolution interrupted")
				unresolved++
				continue
			}
			c, err := session.ResolveEntity(ctx, ref)
			if err != nil {
				r.logger.Warn().Err(err).Str("group", ref.String()).Msg("could not resolve group")
				unresolved++
				continue
			}
			chat = c
		}

		if _, dup := seen[chat.MarkedID()]; dup {
			r.logger.Debug().Str("group", ref.String()).Int64("chat_id", chat.MarkedID()).Msg("group already resolved")
			continue
		}
		seen[chat.MarkedID()] = struct{}{}
		resolved = append(resolved, entities.ResolvedGroup{Ref: ref, Chat: chat})
	}

	if r.metrics != nil {
		r.metrics.RecordResolution(unresolved, time.Since(start).Seconds())
	}
	r.logger.Info().
		Int("requested", len(refs)).
		Int("resolved", len(resolved)).
		Int("unresolved", unresolved).
		Msg("groups resolved")

	return resolved
}

// Ensure Resolver implements deps.GroupResolver interface
var _ deps.GroupResolver = (*Resolver)(nil)
