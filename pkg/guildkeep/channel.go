package guildkeep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceChannel is the canonical service registry key for the channel collaborator.
const ServiceChannel = "guildkeep.channel"

// ChannelMessage identifies one message observed in a channel history window.
type ChannelMessage struct {
	// ID is the platform message identifier.
	ID string
	// AuthorID identifies the message author.
	AuthorID string
}

// Channel is the messaging collaborator consumed by the summary reconciler
// and by modules posting side-channel notices.
//
// Every operation may fail with a *ChannelError classified as not_found,
// forbidden, rate_limited, temporary or unknown. Implementations must be
// concurrency-safe.
type Channel interface {
	// PostMessage publishes a new text message and returns its message id.
	PostMessage(ctx context.Context, channelID string, text string) (string, error)
	// EditMessage replaces the text of an existing message.
	EditMessage(ctx context.Context, channelID string, messageID string, text string) error
	// DeleteMessage removes an existing message.
	DeleteMessage(ctx context.Context, channelID string, messageID string) error
	// ListRecentMessages returns up to limit messages, newest first.
	ListRecentMessages(ctx context.Context, channelID string, limit int) ([]ChannelMessage, error)
}

// ChannelOperation identifies one channel collaborator operation type.
type ChannelOperation string

const (
	// ChannelOperationPostMessage identifies PostMessage operations.
	ChannelOperationPostMessage ChannelOperation = "post_message"
	// ChannelOperationEditMessage identifies EditMessage operations.
	ChannelOperationEditMessage ChannelOperation = "edit_message"
	// ChannelOperationDeleteMessage identifies DeleteMessage operations.
	ChannelOperationDeleteMessage ChannelOperation = "delete_message"
	// ChannelOperationListRecentMessages identifies ListRecentMessages operations.
	ChannelOperationListRecentMessages ChannelOperation = "list_recent_messages"
)

// ChannelErrorKind describes coarse-grained channel failure classification.
type ChannelErrorKind string

const (
	// ChannelErrorKindNotFound indicates the message or channel is already gone.
	ChannelErrorKindNotFound ChannelErrorKind = "not_found"
	// ChannelErrorKindForbidden indicates revoked or missing permissions.
	ChannelErrorKindForbidden ChannelErrorKind = "forbidden"
	// ChannelErrorKindRateLimited indicates platform-side rate limiting.
	ChannelErrorKindRateLimited ChannelErrorKind = "rate_limited"
	// ChannelErrorKindTemporary indicates retryable transient failure.
	ChannelErrorKindTemporary ChannelErrorKind = "temporary"
	// ChannelErrorKindUnknown indicates unclassified failure.
	ChannelErrorKindUnknown ChannelErrorKind = "unknown"
)

// ChannelError carries structured metadata for one channel operation failure.
type ChannelError struct {
	// Operation identifies which channel operation failed.
	Operation ChannelOperation
	// Kind classifies whether and how callers should retry.
	Kind ChannelErrorKind
	// ChannelID identifies the target channel.
	ChannelID string
	// RetryAfter carries suggested retry delay for rate-limited failures when known.
	RetryAfter time.Duration
	// Code carries optional platform status code when known.
	Code int
	// Type carries optional platform error type token when known.
	Type string
	// Cause is the wrapped platform/transport error.
	Cause error
}

// Error returns one operator-readable failure summary.
func (e *ChannelError) Error() string {
	if e == nil {
		return "<nil>"
	}

	fields := make([]string, 0, 6)
	if operation := strings.TrimSpace(string(e.Operation)); operation != "" {
		fields = append(fields, "operation="+operation)
	}
	if kind := strings.TrimSpace(string(e.Kind)); kind != "" {
		fields = append(fields, "kind="+kind)
	}
	if channelID := strings.TrimSpace(e.ChannelID); channelID != "" {
		fields = append(fields, "channel="+channelID)
	}
	if e.RetryAfter > 0 {
		fields = append(fields, "retry_after="+e.RetryAfter.String())
	}
	if e.Code != 0 {
		fields = append(fields, fmt.Sprintf("code=%d", e.Code))
	}
	if errorType := strings.TrimSpace(e.Type); errorType != "" {
		fields = append(fields, "type="+errorType)
	}

	if len(fields) == 0 {
		if e.Cause == nil {
			return "channel error"
		}
		return fmt.Sprintf("channel error: %v", e.Cause)
	}

	if e.Cause == nil {
		return "channel error: " + strings.Join(fields, " ")
	}
	return "channel error: " + strings.Join(fields, " ") + ": " + e.Cause.Error()
}

// Unwrap returns the wrapped root cause.
func (e *ChannelError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// AsChannelError extracts one ChannelError from wrapped error chains.
func AsChannelError(err error) (*ChannelError, bool) {
	if err == nil {
		return nil, false
	}

	var channelErr *ChannelError
	if errors.As(err, &channelErr) {
		return channelErr, true
	}

	return nil, false
}

// ChannelErrorKindOf classifies one error against the channel taxonomy.
//
// Non-channel errors classify as unknown.
func ChannelErrorKindOf(err error) ChannelErrorKind {
	channelErr, ok := AsChannelError(err)
	if !ok || channelErr == nil || channelErr.Kind == "" {
		return ChannelErrorKindUnknown
	}

	return channelErr.Kind
}

// AsChannelRateLimit extracts retry delay metadata from rate-limit errors.
//
// It returns `(0, false)` if err is not classified as rate-limited.
// It returns `(0, true)` when rate-limited but no retry-after hint is known.
func AsChannelRateLimit(err error) (time.Duration, bool) {
	channelErr, ok := AsChannelError(err)
	if !ok || channelErr == nil || channelErr.Kind != ChannelErrorKindRateLimited {
		return 0, false
	}

	return channelErr.RetryAfter, true
}
