package broadcast

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/storage"
	"github.com/poiesic/mediastash/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultPoolSize    = 4
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mediastash_broadcast_deliveries_total",
		Help: "Broadcast deliveries, by outcome.",
	},
	[]string{"outcome"},
)

// Sender delivers a text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
}

// Report summarizes a broadcast. Total counts every known user, including
// the skipped ones.
type Report struct {
	Total   int
	Sent    int
	Failed  int
	Skipped int
}

// Broadcaster fans a message out to the user directory.
type Broadcaster struct {
	users       storage.UserRepository
	sender      Sender
	pool        *ants.Pool
	progress    io.Writer
	interval    int
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster) error

// WithPoolSize sets the number of concurrent deliveries.
// Default is 4, which keeps well under the Bot API's per-second limit.
func WithPoolSize(size int) Option {
	return func(b *Broadcaster) error {
		if size < 1 {
			size = 1
		}

		if b.pool != nil {
			b.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		b.pool = pool
		return nil
	}
}

// WithProgress writes progress to w every interval deliveries.
func WithProgress(w io.Writer, interval int) Option {
	return func(b *Broadcaster) error {
		b.progress = w
		b.interval = interval
		return nil
	}
}

// WithRetry sets how often and how patiently a failed delivery is retried.
// Default is 3 attempts starting at one second.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(b *Broadcaster) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		b.maxAttempts = maxAttempts
		b.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBroadcaster creates a broadcaster. Call Release when done with it.
func NewBroadcaster(users storage.UserRepository, sender Sender, opts ...Option) (*Broadcaster, error) {
	if users == nil {
		return nil, ErrUserRepositoryRequired
	}
	if sender == nil {
		return nil, ErrSenderRequired
	}

	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, err
	}

	b := &Broadcaster{
		users:       users,
		sender:      sender,
		pool:        pool,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.Release()
			return nil, optErr
		}
	}

	return b, nil
}

// Release stops the worker pool.
func (b *Broadcaster) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// Run sends text to every known user except the given ones and waits for
// all deliveries to finish. A failed delivery does not stop the others.
// An error is returned only when the audience can't be listed or ctx ends.
func (b *Broadcaster) Run(ctx context.Context, text string, except ...core.UserID) (Report, error) {
	if strings.TrimSpace(text) == "" {
		return Report{}, ErrEmptyMessage
	}

	ids, err := b.users.ListUserIDs(ctx)
	if err != nil {
		b.logger.Error("error listing broadcast audience", "err", err)
		return Report{}, err
	}

	skip := make(map[core.UserID]bool, len(except))
	for _, id := range except {
		skip[id] = true
	}
	b.logger.Info("broadcasting message", "users", len(ids), "exceptions", len(except))

	report := Report{Total: len(ids)}
	audience := make([]core.UserID, 0, len(ids))
	for _, id := range ids {
		if skip[id] {
			report.Skipped++
			continue
		}
		audience = append(audience, id)
	}

	tracker := newProgress(b.progress, len(audience), b.interval)
	var wg sync.WaitGroup
	for _, id := range audience {
		wg.Add(1)
		submitErr := b.pool.Submit(func() {
			defer wg.Done()
			tracker.record(b.deliver(ctx, id, text))
		})
		if submitErr != nil {
			wg.Done()
			tracker.record(false)
			b.logger.Error("error submitting delivery", "user_id", id, "err", submitErr)
		}
	}
	wg.Wait()

	report.Sent, report.Failed = tracker.finish()
	b.logger.Info("broadcast finished", "sent", report.Sent, "failed", report.Failed, "skipped", report.Skipped)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (b *Broadcaster) deliver(ctx context.Context, id core.UserID, text string) bool {
	err := retryWithBackoff(ctx, func() error {
		_, err := b.sender.SendMessage(ctx, int64(id), text)
		return err
	}, isRetryable, b.maxAttempts, b.baseDelay)

	switch {
	case err == nil:
		deliveriesTotal.WithLabelValues("sent").Inc()
		return true
	case telegram.IsForbidden(err):
		deliveriesTotal.WithLabelValues("blocked").Inc()
		b.logger.Info("user blocked the bot, skipping", "user_id", id)
	default:
		deliveriesTotal.WithLabelValues("failed").Inc()
		b.logger.Warn("broadcast delivery failed", "user_id", id, "err", err)
	}
	return false
}

func isRetryable(err error) bool {
	return !telegram.IsForbidden(err)
}
