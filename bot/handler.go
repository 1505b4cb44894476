// Package bot routes Telegram updates to the conversation engine, the
// inline searcher and the user directory, and sends back localized replies.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/flow"
	"github.com/poiesic/mediastash/i18n"
	"github.com/poiesic/mediastash/search"
	"github.com/poiesic/mediastash/storage"
	"github.com/poiesic/mediastash/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message key of the notice sent when an update fails.
const replyError = "error"

// Message key of the button shown when an inline search finds nothing.
const replyEmpty = "empty"

// StartParameter is sent with /start when the user follows the empty-results button.
const StartParameter = "default"

var updatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mediastash_bot_updates_total",
		Help: "Updates handled by the bot, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// Messenger is the part of the Bot API the handler talks to.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	AnswerInlineQuery(ctx context.Context, answer telegram.AnswerInlineQuery) error
}

// Handler dispatches updates.
type Handler struct {
	engine    *flow.Engine
	searcher  *search.Searcher
	users     storage.UserRepository
	messenger Messenger
	logger    *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) error {
		if logger == nil {
			logger = slog.Default()
		}
		h.logger = logger
		return nil
	}
}

// NewHandler creates an update handler.
func NewHandler(
	engine *flow.Engine,
	searcher *search.Searcher,
	users storage.UserRepository,
	messenger Messenger,
	opts ...Option,
) (*Handler, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if users == nil {
		return nil, ErrUserRepositoryRequired
	}
	if messenger == nil {
		return nil, ErrMessengerRequired
	}

	h := &Handler{
		engine:    engine,
		searcher:  searcher,
		users:     users,
		messenger: messenger,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// HandleUpdate processes one update. Failures are logged and the user is told
// something went wrong; only corrupt conversation state is returned, since
// it will fail the same way until the user cancels.
func (h *Handler) HandleUpdate(ctx context.Context, update *telegram.Update) error {
	sender, ok := update.Sender()
	if !ok {
		h.logger.Debug("ignoring update", "update_id", update.UpdateID)
		updatesTotal.WithLabelValues("other", "ignored").Inc()
		return nil
	}

	var (
		kind string
		err  error
	)
	notify := true
	switch {
	case update.Message != nil:
		kind = "message"
		err = h.handleMessage(ctx, update.Message)
	case update.InlineQuery != nil:
		kind = "inline_query"
		err = h.handleInlineQuery(ctx, update.InlineQuery)
	case update.MyChatMember != nil:
		kind = "my_chat_member"
		// A user who blocked the bot cannot be told anything.
		notify = update.MyChatMember.NewChatMember.Status != telegram.MemberStatusKicked
		err = h.handleChatMember(ctx, update.MyChatMember)
	}

	if err == nil {
		updatesTotal.WithLabelValues(kind, "ok").Inc()
		return nil
	}
	updatesTotal.WithLabelValues(kind, "error").Inc()

	h.logger.Error("couldn't process update", "update_id", update.UpdateID, "kind", kind, "user_id", sender.ID, "err", err)
	if notify {
		h.notifyError(ctx, sender)
	}
	if errors.Is(err, flow.ErrCorruptState) {
		return err
	}
	return nil
}

func (h *Handler) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || msg.Chat.Type != "private" {
		h.logger.Debug("ignoring message outside a private chat", "chat_id", msg.Chat.ID, "chat_type", msg.Chat.Type)
		return nil
	}

	reply, err := h.engine.Handle(ctx, flow.Input{
		UserID:   core.UserID(msg.From.ID),
		Username: msg.From.DisplayName(),
		Text:     msg.Text,
		Media:    telegram.MediaFromMessage(msg),
	})
	if err != nil {
		return err
	}

	text := i18n.Translate(msg.From.LanguageCode, reply.Key, reply.Values)
	_, err = h.messenger.SendMessage(ctx, msg.Chat.ID, text)
	return err
}

func (h *Handler) handleInlineQuery(ctx context.Context, query *telegram.InlineQuery) error {
	userID := core.UserID(query.From.ID)
	page, err := h.searcher.Page(ctx, userID, query.Query, query.Offset)
	if err != nil {
		return err
	}

	answer := telegram.AnswerInlineQuery{
		InlineQueryID: query.ID,
		IsPersonal:    true,
	}
	if page.Empty() {
		answer.Button = &telegram.InlineQueryResultsButton{
			Text:           i18n.Translate(query.From.LanguageCode, replyEmpty, nil),
			StartParameter: StartParameter,
		}
		return h.messenger.AnswerInlineQuery(ctx, answer)
	}

	answer.NextOffset = page.NextOffset
	answer.Results = make([]telegram.InlineQueryResult, 0, len(page.Items))
	for _, item := range page.Items {
		result, err := telegram.ResultFromItem(item)
		if err != nil {
			h.logger.Warn("skipping media without an inline form", "media_id", item.MediaID, "err", err)
			continue
		}
		answer.Results = append(answer.Results, result)
	}
	return h.messenger.AnswerInlineQuery(ctx, answer)
}

func (h *Handler) handleChatMember(ctx context.Context, member *telegram.ChatMemberUpdated) error {
	if member.Chat.Type != "private" {
		return nil
	}
	userID := core.UserID(member.From.ID)

	switch member.NewChatMember.Status {
	case telegram.MemberStatusKicked:
		deleted, err := h.users.DeleteUser(ctx, userID)
		if err != nil {
			return err
		}
		h.engine.Forget(userID)
		h.logger.Info("user blocked the bot", "user_id", userID, "deleted", deleted)
	case telegram.MemberStatusMember:
		if _, err := h.engine.Register(ctx, userID, member.From.DisplayName()); err != nil {
			return err
		}
		h.logger.Info("user unblocked the bot", "user_id", userID)
	}
	return nil
}

func (h *Handler) notifyError(ctx context.Context, user *telegram.User) {
	text := i18n.Translate(user.LanguageCode, replyError, nil)
	if _, err := h.messenger.SendMessage(ctx, user.ID, text); err != nil {
		h.logger.Error("couldn't notify user about error", "user_id", user.ID, "err", err)
		return
	}
	h.logger.Info("user notified about error", "user_id", user.ID)
}
