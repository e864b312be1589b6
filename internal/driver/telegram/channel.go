// Package telegram adapts the neutral channel and command contracts onto
// Telegram via gotd/td: a channel collaborator for summary reconciliation,
// an inbound bridge parsing chat commands, and the bot session runtime.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"guildkeep/pkg/guildkeep"

	"github.com/gotd/td/tg"
)

const defaultRPCTimeout = 3 * time.Second

// ChannelOption mutates channel collaborator configuration.
type ChannelOption func(*channelConfig)

// WithRPCTimeout configures a timeout bound for each channel RPC call.
func WithRPCTimeout(timeout time.Duration) ChannelOption {
	return func(cfg *channelConfig) {
		if timeout > 0 {
			cfg.rpcTimeout = timeout
		}
	}
}

// WithChannelLogger configures structured logging for channel operations.
func WithChannelLogger(logger *slog.Logger) ChannelOption {
	return func(cfg *channelConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

type channelConfig struct {
	rpcTimeout time.Duration
	logger     *slog.Logger
}

// Channel adapts neutral channel operations to Telegram RPC calls.
type Channel struct {
	cfg      channelConfig
	peers    *PeerTable
	telegram channelRPC
}

// NewChannel creates a Telegram channel collaborator over a raw RPC adapter.
func NewChannel(rpc channelRPC, peers *PeerTable, options ...ChannelOption) (*Channel, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new telegram channel: nil rpc adapter")
	}
	if peers == nil {
		return nil, fmt.Errorf("new telegram channel: nil peer table")
	}

	cfg := channelConfig{
		rpcTimeout: defaultRPCTimeout,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &Channel{
		cfg:      cfg,
		peers:    peers,
		telegram: rpc,
	}, nil
}

// PostMessage publishes a text message and returns its message id.
func (c *Channel) PostMessage(ctx context.Context, channelID string, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("post message to %s: empty text", channelID)
	}

	peer, err := c.peers.Resolve(channelID)
	if err != nil {
		return "", unresolvedChannel(guildkeep.ChannelOperationPostMessage, channelID, err)
	}

	rpcCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	id, err := c.telegram.SendText(rpcCtx, peer, text)
	if err != nil {
		return "", mapChannelError(guildkeep.ChannelOperationPostMessage, channelID, err)
	}

	c.logOperation(ctx, "post_message", "channel", channelID, "message_id", id)

	return strconv.Itoa(id), nil
}

// EditMessage replaces the text of an existing message.
func (c *Channel) EditMessage(ctx context.Context, channelID string, messageID string, text string) error {
	if text == "" {
		return fmt.Errorf("edit message in %s: empty text", channelID)
	}

	peer, err := c.peers.Resolve(channelID)
	if err != nil {
		return unresolvedChannel(guildkeep.ChannelOperationEditMessage, channelID, err)
	}

	id, err := parseMessageID(messageID)
	if err != nil {
		return fmt.Errorf("edit message parse id %s: %w", messageID, err)
	}

	rpcCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.telegram.EditText(rpcCtx, peer, id, text); err != nil {
		return mapChannelError(guildkeep.ChannelOperationEditMessage, channelID, err)
	}

	c.logOperation(ctx, "edit_message", "channel", channelID, "message_id", messageID)

	return nil
}

// DeleteMessage removes an existing message.
func (c *Channel) DeleteMessage(ctx context.Context, channelID string, messageID string) error {
	peer, err := c.peers.Resolve(channelID)
	if err != nil {
		return unresolvedChannel(guildkeep.ChannelOperationDeleteMessage, channelID, err)
	}

	id, err := parseMessageID(messageID)
	if err != nil {
		return fmt.Errorf("delete message parse id %s: %w", messageID, err)
	}

	rpcCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.telegram.DeleteMessage(rpcCtx, peer, id); err != nil {
		return mapChannelError(guildkeep.ChannelOperationDeleteMessage, channelID, err)
	}

	c.logOperation(ctx, "delete_message", "channel", channelID, "message_id", messageID)

	return nil
}

// ListRecentMessages returns up to limit messages, newest first.
func (c *Channel) ListRecentMessages(ctx context.Context, channelID string, limit int) ([]guildkeep.ChannelMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list recent messages in %s: limit must be > 0", channelID)
	}

	peer, err := c.peers.Resolve(channelID)
	if err != nil {
		return nil, unresolvedChannel(guildkeep.ChannelOperationListRecentMessages, channelID, err)
	}

	rpcCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	messages, err := c.telegram.ListHistory(rpcCtx, peer, limit)
	if err != nil {
		return nil, mapChannelError(guildkeep.ChannelOperationListRecentMessages, channelID, err)
	}

	return messages, nil
}

func (c *Channel) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.rpcTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.cfg.rpcTimeout)
}

func (c *Channel) logOperation(ctx context.Context, operation string, attrs ...any) {
	values := make([]any, 0, 2+len(attrs))
	values = append(values, "operation", operation)
	values = append(values, attrs...)
	c.cfg.logger.InfoContext(ctx, "telegram channel operation", values...)
}

// unresolvedChannel wraps a peer table miss as a permanent not-found channel
// failure, letting the reconciler classify the channel as unusable.
func unresolvedChannel(operation guildkeep.ChannelOperation, channelID string, err error) error {
	return &guildkeep.ChannelError{
		Operation: operation,
		Kind:      guildkeep.ChannelErrorKindNotFound,
		ChannelID: channelID,
		Cause:     err,
	}
}

func parseMessageID(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid message id: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid message id %d", value)
	}

	return value, nil
}

// channelRPC is the raw Telegram RPC seam behind the channel collaborator.
type channelRPC interface {
	SendText(ctx context.Context, peer tg.InputPeerClass, text string) (int, error)
	EditText(ctx context.Context, peer tg.InputPeerClass, messageID int, text string) error
	DeleteMessage(ctx context.Context, peer tg.InputPeerClass, messageID int) error
	ListHistory(ctx context.Context, peer tg.InputPeerClass, limit int) ([]guildkeep.ChannelMessage, error)
}

var _ guildkeep.Channel = (*Channel)(nil)
