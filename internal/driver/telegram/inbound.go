package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"guildkeep/pkg/guildkeep"

	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
)

const defaultCommandPrefix = "/"

// Invoker routes one parsed invocation to its command handler.
type Invoker interface {
	Invoke(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error)
}

// InboundOption mutates inbound bridge configuration.
type InboundOption func(*inboundConfig)

// WithCommandPrefix overrides the leading command marker.
func WithCommandPrefix(prefix string) InboundOption {
	return func(cfg *inboundConfig) {
		if prefix != "" {
			cfg.prefix = prefix
		}
	}
}

// WithAdminUserIDs grants the admin role to the listed Telegram user ids.
func WithAdminUserIDs(ids []int64) InboundOption {
	return func(cfg *inboundConfig) {
		for _, id := range ids {
			cfg.admins[id] = struct{}{}
		}
	}
}

// WithInboundLogger configures structured logging for inbound handling.
func WithInboundLogger(logger *slog.Logger) InboundOption {
	return func(cfg *inboundConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

type inboundConfig struct {
	prefix string
	admins map[int64]struct{}
	logger *slog.Logger
}

// InboundBridge parses chat messages into command invocations and replies
// with the handler result.
//
// Role policy lives here: configured admin user ids carry the admin role,
// everyone else carries none. Unknown commands are ignored so the bot stays
// quiet in busy group chats.
type InboundBridge struct {
	cfg     inboundConfig
	invoker Invoker
	sender  *message.Sender
	peers   *PeerTable

	selfID atomic.Int64
}

// NewInboundBridge creates an inbound command bridge.
func NewInboundBridge(
	invoker Invoker,
	sender *message.Sender,
	peers *PeerTable,
	options ...InboundOption,
) (*InboundBridge, error) {
	if invoker == nil {
		return nil, fmt.Errorf("new inbound bridge: nil invoker")
	}
	if sender == nil {
		return nil, fmt.Errorf("new inbound bridge: nil sender")
	}

	cfg := inboundConfig{
		prefix: defaultCommandPrefix,
		admins: make(map[int64]struct{}),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &InboundBridge{
		cfg:     cfg,
		invoker: invoker,
		sender:  sender,
		peers:   peers,
	}, nil
}

// SetSelfID records the authenticated bot user id for self-message filtering.
func (b *InboundBridge) SetSelfID(id int64) {
	b.selfID.Store(id)
}

// Bind registers this bridge on a gotd update dispatcher.
func (b *InboundBridge) Bind(dispatcher *tg.UpdateDispatcher) {
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		return b.handle(ctx, e, update)
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		return b.handle(ctx, e, update)
	})
}

func (b *InboundBridge) handle(ctx context.Context, e tg.Entities, update message.AnswerableMessageUpdate) error {
	msg, ok := update.GetMessage().(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	b.rememberPeers(e)

	command, args, isCommand := b.parseCommand(msg.Message)
	if !isCommand {
		return nil
	}

	from, hasFrom := msg.FromID.(*tg.PeerUser)
	if !hasFrom || from.UserID == b.selfID.Load() {
		return nil
	}

	inv := guildkeep.Invocation{
		Command:    command,
		Args:       args,
		CallerID:   strconv.FormatInt(from.UserID, 10),
		CallerName: callerName(e, from.UserID),
		Roles:      b.rolesFor(from.UserID),
	}

	reply, err := b.invoker.Invoke(ctx, inv)
	if err != nil {
		if errors.Is(err, guildkeep.ErrUnknownCommand) {
			return nil
		}
		text := renderInvocationError(err)
		b.cfg.logger.InfoContext(ctx, "command rejected",
			"command", command,
			"caller", inv.CallerID,
			"error", err,
		)
		if text == "" {
			return nil
		}

		return b.reply(ctx, e, update, text)
	}

	if reply.Text == "" {
		return nil
	}

	return b.reply(ctx, e, update, reply.Text)
}

func (b *InboundBridge) reply(
	ctx context.Context,
	e tg.Entities,
	update message.AnswerableMessageUpdate,
	text string,
) error {
	if _, err := b.sender.Reply(e, update).Text(ctx, text); err != nil {
		return fmt.Errorf("reply to command: %w", err)
	}

	return nil
}

// rememberPeers feeds entities seen on inbound updates into the peer table so
// reply-capable chats become addressable without static configuration.
func (b *InboundBridge) rememberPeers(e tg.Entities) {
	if b.peers == nil {
		return
	}

	for id, user := range e.Users {
		if user == nil {
			continue
		}
		if peer := user.AsInputPeer(); peer != nil {
			b.peers.Remember(strconv.FormatInt(id, 10), peer)
		}
	}
	for id, channel := range e.Channels {
		if channel == nil {
			continue
		}
		if peer := channel.AsInputPeer(); peer != nil {
			b.peers.Remember(strconv.FormatInt(id, 10), peer)
		}
	}
	for id, chat := range e.Chats {
		if chat == nil {
			continue
		}
		b.peers.Remember(strconv.FormatInt(id, 10), chat.AsInputPeer())
	}
}

func (b *InboundBridge) parseCommand(text string) (string, []string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, b.cfg.prefix) {
		return "", nil, false
	}

	fields := strings.Fields(strings.TrimPrefix(trimmed, b.cfg.prefix))
	if len(fields) == 0 {
		return "", nil, false
	}

	// "/cmd@botname" addresses a specific bot in group chats.
	command, _, _ := strings.Cut(fields[0], "@")
	if command == "" {
		return "", nil, false
	}

	return guildkeep.NormalizeCommandName(command), fields[1:], true
}

func (b *InboundBridge) rolesFor(userID int64) []guildkeep.Role {
	if _, isAdmin := b.cfg.admins[userID]; isAdmin {
		return []guildkeep.Role{guildkeep.RoleAdmin}
	}

	return nil
}

func callerName(e tg.Entities, userID int64) string {
	user, exists := e.Users[userID]
	if !exists || user == nil {
		return strconv.FormatInt(userID, 10)
	}
	if name := strings.TrimSpace(user.FirstName + " " + user.LastName); name != "" {
		return name
	}
	if user.Username != "" {
		return user.Username
	}

	return strconv.FormatInt(userID, 10)
}

// renderInvocationError maps expected command failures onto short user-facing
// text. Unexpected failures render a generic notice so internals stay private.
func renderInvocationError(err error) string {
	switch {
	case errors.Is(err, guildkeep.ErrNotAuthorized):
		return "You are not allowed to use this command."
	case errors.Is(err, guildkeep.ErrDuplicate):
		return "That entry already exists."
	case errors.Is(err, guildkeep.ErrNotFound):
		return "No such entry."
	case errors.Is(err, guildkeep.ErrCapacityExceeded):
		return "The registry is full."
	}

	if message, found := usageText(err); found {
		return message
	}

	return "Something went wrong, try again later."
}

func usageText(err error) (string, bool) {
	text := err.Error()
	marker := "usage: "
	index := strings.LastIndex(text, marker)
	if index < 0 {
		return "", false
	}

	return "Usage: " + text[index+len(marker):], true
}
