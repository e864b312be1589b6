package telegram

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"guildkeep/pkg/guildkeep"

	"github.com/gotd/td/crypto"
	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/unpack"
	"github.com/gotd/td/tg"
)

type gotdChannelRPC struct {
	raw    *tg.Client
	rand   io.Reader
	sender *message.Sender
}

func newGotdChannelRPC(client *gotdtelegram.Client) gotdChannelRPC {
	raw := client.API()

	return gotdChannelRPC{
		raw:    raw,
		rand:   crypto.DefaultRand(),
		sender: message.NewSender(raw),
	}
}

func (r gotdChannelRPC) SendText(ctx context.Context, peer tg.InputPeerClass, text string) (int, error) {
	randomID, err := crypto.RandInt64(r.rand)
	if err != nil {
		return 0, fmt.Errorf("send text random id: %w", err)
	}

	updates, err := r.raw.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:      peer,
		Message:   text,
		NoWebpage: true,
		RandomID:  randomID,
	})
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}

	messageID, err := unpack.MessageID(updates, nil)
	if err != nil {
		return 0, fmt.Errorf("extract sent message id: %w", err)
	}

	return messageID, nil
}

func (r gotdChannelRPC) EditText(ctx context.Context, peer tg.InputPeerClass, messageID int, text string) error {
	_, err := r.raw.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		Peer:      peer,
		ID:        messageID,
		Message:   text,
		NoWebpage: true,
	})
	if err != nil {
		return fmt.Errorf("edit text: %w", err)
	}

	return nil
}

func (r gotdChannelRPC) DeleteMessage(ctx context.Context, peer tg.InputPeerClass, messageID int) error {
	if _, err := r.sender.To(peer).Revoke().Messages(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

func (r gotdChannelRPC) ListHistory(
	ctx context.Context,
	peer tg.InputPeerClass,
	limit int,
) ([]guildkeep.ChannelMessage, error) {
	history, err := r.raw.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	raw, ok := history.(interface{ GetMessages() []tg.MessageClass })
	if !ok {
		return nil, fmt.Errorf("get history: unexpected response %T", history)
	}

	// Telegram returns history newest first, which matches the contract.
	messages := make([]guildkeep.ChannelMessage, 0, limit)
	for _, item := range raw.GetMessages() {
		typed, isMessage := item.(*tg.Message)
		if !isMessage {
			continue
		}
		messages = append(messages, guildkeep.ChannelMessage{
			ID:       strconv.Itoa(typed.ID),
			AuthorID: messageAuthorID(typed),
		})
		if len(messages) >= limit {
			break
		}
	}

	return messages, nil
}

// messageAuthorID extracts the author identity of one history message.
// Channel broadcasts carry no FromID; the channel peer stands in as author.
func messageAuthorID(msg *tg.Message) string {
	switch from := msg.FromID.(type) {
	case *tg.PeerUser:
		return strconv.FormatInt(from.UserID, 10)
	case *tg.PeerChannel:
		return "channel:" + strconv.FormatInt(from.ChannelID, 10)
	}

	switch peer := msg.PeerID.(type) {
	case *tg.PeerUser:
		return strconv.FormatInt(peer.UserID, 10)
	case *tg.PeerChannel:
		return "channel:" + strconv.FormatInt(peer.ChannelID, 10)
	case *tg.PeerChat:
		return "chat:" + strconv.FormatInt(peer.ChatID, 10)
	}

	return ""
}

var _ channelRPC = gotdChannelRPC{}
