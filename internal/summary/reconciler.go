package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"guildkeep/pkg/guildkeep"
)

const (
	defaultMaxAttempts   = 2
	defaultRecentWindow  = 10
	defaultRetryInterval = 500 * time.Millisecond
	maxRetryInterval     = 5 * time.Second
)

// Strategy selects how the reconciler converges the channel onto the summary.
type Strategy string

const (
	// StrategyEditLatest edits the most recent bot-authored message in place.
	StrategyEditLatest Strategy = "edit-latest"
	// StrategyDeleteRepost deletes recent bot-authored messages and posts fresh.
	StrategyDeleteRepost Strategy = "delete-and-repost"
)

// Validate checks whether this strategy is supported.
func (s Strategy) Validate() error {
	switch s {
	case StrategyEditLatest, StrategyDeleteRepost:
		return nil
	default:
		return fmt.Errorf("validate strategy: unsupported strategy %q", s)
	}
}

// ReconcilerConfig declares one reconciler target and behavior.
type ReconcilerConfig struct {
	// ChannelID identifies the channel carrying the live summary.
	ChannelID string
	// BotAuthorID identifies this system's own messages in channel history.
	BotAuthorID string
	// Strategy selects the convergence strategy.
	Strategy Strategy
	// MaxAttempts bounds channel calls per operation.
	//
	// Zero defaults to 2: one retry on a transient failure.
	MaxAttempts int
	// RecentWindow bounds the history scan for delete-and-repost.
	//
	// Zero defaults to 10.
	RecentWindow int
}

// ReconcilerOption mutates reconciler configuration.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger injects a logger directly, bypassing service lookup.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSleep overrides the retry delay sleeper.
func WithSleep(sleep func(ctx context.Context, delay time.Duration) error) ReconcilerOption {
	return func(r *Reconciler) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// Reconciler makes exactly one channel message equal the rendered summary.
//
// The live message id is a weak reference: its absence or staleness only
// triggers a repost and never corrupts registry state. Failures classified as
// not-found or forbidden fall back to posting a new message; rate-limited and
// temporary failures get one bounded retry first.
type Reconciler struct {
	cfg     ReconcilerConfig
	channel guildkeep.Channel
	logger  *slog.Logger
	sleep   func(ctx context.Context, delay time.Duration) error

	mu            sync.Mutex
	liveMessageID string
	lastText      string
}

// NewReconciler creates a reconciler bound to one channel target.
func NewReconciler(channel guildkeep.Channel, cfg ReconcilerConfig, options ...ReconcilerOption) (*Reconciler, error) {
	if channel == nil {
		return nil, fmt.Errorf("new reconciler: nil channel")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("new reconciler: missing channel id")
	}
	if cfg.BotAuthorID == "" {
		return nil, fmt.Errorf("new reconciler: missing bot author id")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyEditLatest
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, fmt.Errorf("new reconciler: %w", err)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = defaultRecentWindow
	}

	r := &Reconciler{
		cfg:     cfg,
		channel: channel,
		logger:  slog.Default(),
		sleep:   sleepWithContext,
	}
	for _, option := range options {
		option(r)
	}

	return r, nil
}

// LiveMessageID returns the currently adopted live message id, if any.
func (r *Reconciler) LiveMessageID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.liveMessageID
}

// Reconcile converges the channel onto text and returns the live message id.
//
// A wrapped ErrChannelUnavailable means the target channel cannot be used at
// all; other errors are transient channel failures. Either way the caller's
// registry mutation has already been persisted and must not be failed.
func (r *Reconciler) Reconcile(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("reconcile: empty summary text")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		liveID string
		err    error
	)
	switch r.cfg.Strategy {
	case StrategyDeleteRepost:
		liveID, err = r.deleteAndRepost(ctx, text)
	default:
		liveID, err = r.editLatest(ctx, text)
	}
	if err != nil {
		r.liveMessageID = ""
		r.lastText = ""
		return "", err
	}

	r.liveMessageID = liveID
	r.lastText = text

	return liveID, nil
}

func (r *Reconciler) editLatest(ctx context.Context, text string) (string, error) {
	recent, err := r.listRecent(ctx, 1)
	if err != nil {
		return "", err
	}

	if len(recent) > 0 && recent[0].AuthorID == r.cfg.BotAuthorID {
		latest := recent[0]

		// Already synced: the prior live message still leads the channel and
		// carries the current text, so keep its id untouched.
		if latest.ID == r.liveMessageID && text == r.lastText {
			return latest.ID, nil
		}

		editErr := r.attempt(ctx, func(ctx context.Context) error {
			return r.channel.EditMessage(ctx, r.cfg.ChannelID, latest.ID, text)
		})
		if editErr == nil {
			return latest.ID, nil
		}
		r.logger.WarnContext(ctx, "summary edit failed, falling back to post",
			"channel", r.cfg.ChannelID,
			"message_id", latest.ID,
			"error", editErr,
		)
	}

	return r.post(ctx, text)
}

func (r *Reconciler) deleteAndRepost(ctx context.Context, text string) (string, error) {
	recent, err := r.listRecent(ctx, r.cfg.RecentWindow)
	if err != nil {
		return "", err
	}

	for _, message := range recent {
		if message.AuthorID != r.cfg.BotAuthorID {
			continue
		}
		messageID := message.ID
		deleteErr := r.attempt(ctx, func(ctx context.Context) error {
			return r.channel.DeleteMessage(ctx, r.cfg.ChannelID, messageID)
		})
		if deleteErr == nil {
			continue
		}
		if guildkeep.ChannelErrorKindOf(deleteErr) == guildkeep.ChannelErrorKindNotFound {
			continue
		}
		r.logger.WarnContext(ctx, "stale summary delete failed",
			"channel", r.cfg.ChannelID,
			"message_id", messageID,
			"error", deleteErr,
		)
	}

	return r.post(ctx, text)
}

func (r *Reconciler) post(ctx context.Context, text string) (string, error) {
	var liveID string
	err := r.attempt(ctx, func(ctx context.Context) error {
		id, postErr := r.channel.PostMessage(ctx, r.cfg.ChannelID, text)
		if postErr != nil {
			return postErr
		}
		liveID = id

		return nil
	})
	if err != nil {
		return "", r.classifyTerminal("post summary", err)
	}

	return liveID, nil
}

func (r *Reconciler) listRecent(ctx context.Context, limit int) ([]guildkeep.ChannelMessage, error) {
	var recent []guildkeep.ChannelMessage
	err := r.attempt(ctx, func(ctx context.Context) error {
		messages, listErr := r.channel.ListRecentMessages(ctx, r.cfg.ChannelID, limit)
		if listErr != nil {
			return listErr
		}
		recent = messages

		return nil
	})
	if err != nil {
		return nil, r.classifyTerminal("list summary channel", err)
	}

	return recent, nil
}

// classifyTerminal maps exhausted channel failures onto the reconciler's
// outward taxonomy: unusable channels surface as ErrChannelUnavailable,
// anything else stays a transient channel failure.
func (r *Reconciler) classifyTerminal(operation string, err error) error {
	switch guildkeep.ChannelErrorKindOf(err) {
	case guildkeep.ChannelErrorKindNotFound, guildkeep.ChannelErrorKindForbidden:
		return fmt.Errorf("%s %s: %w: %w", operation, r.cfg.ChannelID, guildkeep.ErrChannelUnavailable, err)
	default:
		return fmt.Errorf("%s %s: %w", operation, r.cfg.ChannelID, err)
	}
}

// attempt runs op under the bounded retry budget: rate-limited and temporary
// failures are retried after a short delay, everything else fails immediately.
func (r *Reconciler) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempts := 0; attempts < r.cfg.MaxAttempts; attempts++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reconcile attempt: %w", err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		delay, retryable := retryDelay(lastErr)
		if !retryable || attempts+1 >= r.cfg.MaxAttempts {
			return lastErr
		}
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("reconcile retry wait: %w", err)
		}
	}

	return lastErr
}

func retryDelay(err error) (time.Duration, bool) {
	if hint, ok := guildkeep.AsChannelRateLimit(err); ok {
		if hint <= 0 {
			return defaultRetryInterval, true
		}
		if hint > maxRetryInterval {
			return maxRetryInterval, true
		}

		return hint, true
	}
	if guildkeep.ChannelErrorKindOf(err) == guildkeep.ChannelErrorKindTemporary {
		return defaultRetryInterval, true
	}

	return 0, false
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep with context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
