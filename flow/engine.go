package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultKnownUsers   = 1024
	defaultKnownUserTTL = time.Hour
)

var repliesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mediastash_flow_replies_total",
		Help: "Replies produced by the conversation engine, by message key.",
	},
	[]string{"reply"},
)

// Engine drives the multi-step conversations: add then describe, delete
// many, and check a description. It keeps no state of its own between
// calls; the current step lives in the state repository.
type Engine struct {
	users  storage.UserRepository
	media  storage.MediaRepository
	state  storage.StateRepository
	known  *expirable.LRU[core.UserID, struct{}]
	logger *slog.Logger

	knownSize int
	knownTTL  time.Duration
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithKnownUserCache sizes the cache of users already registered, which
// spares the users table a write on every message.
func WithKnownUserCache(size int, ttl time.Duration) Option {
	return func(e *Engine) error {
		if size <= 0 {
			return fmt.Errorf("known user cache size must be positive, got %d", size)
		}
		if ttl <= 0 {
			return fmt.Errorf("known user cache ttl must be positive, got %s", ttl)
		}
		e.knownSize = size
		e.knownTTL = ttl
		return nil
	}
}

// NewEngine creates a conversation engine.
func NewEngine(
	users storage.UserRepository,
	media storage.MediaRepository,
	state storage.StateRepository,
	opts ...Option,
) (*Engine, error) {
	if users == nil {
		return nil, ErrUserRepositoryRequired
	}
	if media == nil {
		return nil, ErrMediaRepositoryRequired
	}
	if state == nil {
		return nil, ErrStateRepositoryRequired
	}

	e := &Engine{
		users:     users,
		media:     media,
		state:     state,
		logger:    slog.Default(),
		knownSize: defaultKnownUsers,
		knownTTL:  defaultKnownUserTTL,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.known = expirable.NewLRU[core.UserID, struct{}](e.knownSize, nil, e.knownTTL)

	return e, nil
}

// Handle advances the user's conversation by one input and returns the reply.
// Storage failures and corrupt state are returned as errors; expected
// outcomes such as a duplicate file are replies.
func (e *Engine) Handle(ctx context.Context, in Input) (Reply, error) {
	cached, err := e.ensureUser(ctx, in)
	if err != nil {
		return Reply{}, err
	}

	reply, err := e.dispatch(ctx, in)
	if cached && errors.Is(err, storage.ErrConstraint) {
		// The user was deleted outside this process while still cached.
		e.logger.Warn("cached user missing from directory, registering again", "user_id", in.UserID, "err", err)
		e.Forget(in.UserID)
		if _, err := e.Register(ctx, in.UserID, in.Username); err != nil {
			return Reply{}, err
		}
		reply, err = e.dispatch(ctx, in)
	}
	if err != nil {
		return Reply{}, err
	}

	repliesTotal.WithLabelValues(reply.Key).Inc()
	e.logger.Debug("handled input", "user_id", in.UserID, "reply", reply.Key)
	return reply, nil
}

func (e *Engine) dispatch(ctx context.Context, in Input) (Reply, error) {
	if cmd, ok := parseCommand(in.Text); ok && in.Media == nil {
		return e.handleCommand(ctx, in.UserID, cmd)
	}
	return e.handleInput(ctx, in)
}

// Register adds the user to the directory and reports whether they were new.
func (e *Engine) Register(ctx context.Context, userID core.UserID, username string) (bool, error) {
	added, err := e.users.AddUser(ctx, &core.User{ID: userID, Username: username})
	if err != nil {
		return false, err
	}
	e.known.Add(userID, struct{}{})
	if added {
		e.logger.Info("registered user", "user_id", userID)
	}
	return added, nil
}

// Forget drops a user from the known-user cache after they were deleted.
func (e *Engine) Forget(userID core.UserID) {
	e.known.Remove(userID)
}

// Status returns the user's current flow step.
func (e *Engine) Status(ctx context.Context, userID core.UserID) (core.Status, error) {
	text, ok, err := e.state.Get(ctx, userID, core.StateKeyStatus)
	if err != nil {
		return core.StatusIdle, err
	}
	if !ok {
		return core.StatusIdle, nil
	}
	status, err := core.ParseStatus(text)
	if err != nil {
		e.logger.Error("corrupt conversation state", "user_id", userID, "status", text)
		return core.StatusIdle, fmt.Errorf("%w: user %d: %w", ErrCorruptState, userID, err)
	}
	return status, nil
}

// ensureUser registers the user unless the cache already knows them, and
// reports whether the cache answered.
func (e *Engine) ensureUser(ctx context.Context, in Input) (bool, error) {
	if e.known.Contains(in.UserID) {
		return true, nil
	}
	_, err := e.Register(ctx, in.UserID, in.Username)
	return false, err
}

func (e *Engine) handleCommand(ctx context.Context, userID core.UserID, cmd Command) (Reply, error) {
	// /done ends a delete loop; anywhere else it behaves like /cancel.
	var reply Reply
	if cmd == CommandDone {
		status, err := e.Status(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		reply = Reply{Key: ReplyCancelled}
		if status == core.StatusAwaitingDeleteTarget {
			reply = Reply{Key: ReplyFinishDeleting}
		}
	}

	// Every command starts from a clean slate, so keys of an abandoned
	// flow never leak into the next one.
	if err := e.reset(ctx, userID); err != nil {
		return Reply{}, err
	}

	switch cmd {
	case CommandStart:
		return Reply{Key: ReplyStart}, nil
	case CommandDelete:
		return Reply{Key: ReplyDelete}, e.enter(ctx, userID, core.StatusAwaitingDeleteTarget)
	case CommandDescription:
		return Reply{Key: ReplyCheckDescription}, e.enter(ctx, userID, core.StatusAwaitingDescriptionCheck)
	case CommandCancel:
		return Reply{Key: ReplyCancelled}, nil
	default:
		return reply, nil
	}
}

func (e *Engine) handleInput(ctx context.Context, in Input) (Reply, error) {
	status, err := e.Status(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}

	switch status {
	case core.StatusIdle:
		return e.startDraft(ctx, in)
	case core.StatusAwaitingDescription:
		return e.describe(ctx, in)
	case core.StatusAwaitingDeleteTarget:
		return e.deleteTarget(ctx, in)
	case core.StatusAwaitingDescriptionCheck:
		return e.checkDescription(ctx, in)
	default:
		return Reply{}, fmt.Errorf("%w: user %d: status %d", ErrCorruptState, in.UserID, status)
	}
}

// startDraft queues media, or plain text as an article, and asks for a description.
func (e *Engine) startDraft(ctx context.Context, in Input) (Reply, error) {
	draft, ok := draftFromInput(in)
	if !ok {
		return Reply{Key: ReplyNotRecognized}, nil
	}
	if err := e.reset(ctx, in.UserID); err != nil {
		return Reply{}, err
	}
	if err := e.state.SetMany(ctx, in.UserID, draft.StateValues(core.StatusAwaitingDescription)); err != nil {
		return Reply{}, err
	}
	return Reply{Key: ReplyDescribe}, nil
}

// describe finalizes the pending draft with the text as its description.
// Media arriving while an article is pending means the article text was
// meant as the description of that media, so the pair is saved at once.
// Any other media replaces the pending draft.
func (e *Engine) describe(ctx context.Context, in Input) (Reply, error) {
	values, err := e.state.GetAll(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	pending, err := core.DraftFromState(values)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: user %d: %w", ErrCorruptState, in.UserID, err)
	}

	switch {
	case in.Media != nil && pending.Type == core.MediaTypeArticle:
		return e.save(ctx, in.UserID, *in.Media, core.NormalizeDescription(pending.FileID))
	case in.Media != nil:
		return e.startDraft(ctx, in)
	}

	description := core.NormalizeDescription(in.Text)
	if description == "" {
		return Reply{Key: ReplyNotRecognized}, nil
	}
	return e.save(ctx, in.UserID, pending, description)
}

func (e *Engine) save(ctx context.Context, userID core.UserID, draft core.Draft, description string) (Reply, error) {
	inserted, id, err := e.media.AddMedia(ctx, draft.Item(userID, description))
	if err != nil {
		return Reply{}, err
	}
	if err := e.reset(ctx, userID); err != nil {
		return Reply{}, err
	}
	if !inserted {
		return Reply{Key: ReplyDuplicate}, nil
	}
	e.logger.Info("saved media", "user_id", userID, "media_id", id, "type", draft.Type)
	return Reply{Key: ReplyAdded}, nil
}

// deleteTarget removes one of the user's items and stays in the delete loop.
func (e *Engine) deleteTarget(ctx context.Context, in Input) (Reply, error) {
	fileID := in.target()
	if fileID == "" {
		return Reply{Key: ReplyNotRecognized}, nil
	}
	deleted, err := e.media.DeleteMedia(ctx, storage.Fields{
		"user_id": int64(in.UserID),
		"file_id": fileID,
	})
	if err != nil {
		return Reply{}, err
	}
	if !deleted {
		return Reply{Key: ReplyNotFound}, nil
	}
	e.logger.Info("deleted media", "user_id", in.UserID, "file_id", fileID)
	return Reply{Key: ReplyDeleted}, nil
}

// checkDescription echoes the description of one of the user's items and returns to idle.
func (e *Engine) checkDescription(ctx context.Context, in Input) (Reply, error) {
	fileID := in.target()
	if fileID == "" {
		return Reply{Key: ReplyNotRecognized}, nil
	}
	items, err := e.media.GetMedia(ctx, storage.Query{
		Conditions: storage.Fields{"user_id": int64(in.UserID), "file_id": fileID},
	})
	if err != nil {
		return Reply{}, err
	}
	if err := e.reset(ctx, in.UserID); err != nil {
		return Reply{}, err
	}
	if len(items) == 0 {
		return Reply{Key: ReplyNotFound}, nil
	}
	return Reply{
		Key:    ReplyDescription,
		Values: map[string]string{"description": items[0].Description},
	}, nil
}

func (e *Engine) enter(ctx context.Context, userID core.UserID, status core.Status) error {
	return e.state.Set(ctx, userID, core.StateKeyStatus, status.String())
}

func (e *Engine) reset(ctx context.Context, userID core.UserID) error {
	_, err := e.state.Clear(ctx, userID)
	return err
}

func draftFromInput(in Input) (core.Draft, bool) {
	if in.Media != nil {
		return *in.Media, true
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return core.Draft{}, false
	}
	return core.Draft{Type: core.MediaTypeArticle, FileID: text}, true
}
