package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"guildkeep/pkg/guildkeep"
)

// fakeRPC is a scriptable channelRPC seam recording every call.
type fakeRPC struct {
	sendErr   error
	editErr   error
	deleteErr error
	listErr   error

	sentTexts []string
	edits     []int
	deleted   []int
	history   []guildkeep.ChannelMessage

	nextID int
}

func (r *fakeRPC) SendText(_ context.Context, _ tg.InputPeerClass, text string) (int, error) {
	if r.sendErr != nil {
		return 0, r.sendErr
	}
	r.nextID++
	r.sentTexts = append(r.sentTexts, text)

	return r.nextID, nil
}

func (r *fakeRPC) EditText(_ context.Context, _ tg.InputPeerClass, messageID int, _ string) error {
	if r.editErr != nil {
		return r.editErr
	}
	r.edits = append(r.edits, messageID)

	return nil
}

func (r *fakeRPC) DeleteMessage(_ context.Context, _ tg.InputPeerClass, messageID int) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deleted = append(r.deleted, messageID)

	return nil
}

func (r *fakeRPC) ListHistory(_ context.Context, _ tg.InputPeerClass, limit int) ([]guildkeep.ChannelMessage, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	if limit > len(r.history) {
		limit = len(r.history)
	}

	return r.history[:limit], nil
}

var _ channelRPC = (*fakeRPC)(nil)

func newTestChannel(t *testing.T, rpc channelRPC) *Channel {
	t.Helper()

	peers, err := NewPeerTable(map[string]PeerRef{
		"summary": {Kind: PeerKindChannel, ID: 100, AccessHash: 7},
	})
	if err != nil {
		t.Fatalf("unexpected peer table error: %v", err)
	}
	channel, err := NewChannel(rpc, peers)
	if err != nil {
		t.Fatalf("unexpected channel error: %v", err)
	}

	return channel
}

func TestNewChannelValidation(t *testing.T) {
	t.Parallel()

	peers, err := NewPeerTable(nil)
	if err != nil {
		t.Fatalf("unexpected peer table error: %v", err)
	}

	if _, err := NewChannel(nil, peers); err == nil {
		t.Fatal("expected nil rpc error")
	}
	if _, err := NewChannel(&fakeRPC{}, nil); err == nil {
		t.Fatal("expected nil peer table error")
	}
}

func TestChannelPostMessage(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{}
	channel := newTestChannel(t, rpc)
	ctx := context.Background()

	id, err := channel.PostMessage(ctx, "summary", "hello")
	if err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}
	if id != "1" {
		t.Fatalf("message id = %q, want 1", id)
	}
	if len(rpc.sentTexts) != 1 || rpc.sentTexts[0] != "hello" {
		t.Fatalf("sent texts = %v, want [hello]", rpc.sentTexts)
	}

	if _, err := channel.PostMessage(ctx, "summary", ""); err == nil {
		t.Fatal("expected empty text error")
	}
	_, err = channel.PostMessage(ctx, "unbound", "hello")
	if guildkeep.ChannelErrorKindOf(err) != guildkeep.ChannelErrorKindNotFound {
		t.Fatalf("unresolved channel error = %v, want not_found kind", err)
	}
}

func TestChannelPostMessageMapsRPCFailure(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{sendErr: tgerr.New(400, "CHAT_WRITE_FORBIDDEN")}
	channel := newTestChannel(t, rpc)

	_, err := channel.PostMessage(context.Background(), "summary", "hello")
	channelErr, ok := guildkeep.AsChannelError(err)
	if !ok {
		t.Fatalf("expected ChannelError, got %v", err)
	}
	if channelErr.Operation != guildkeep.ChannelOperationPostMessage {
		t.Fatalf("operation = %q, want post_message", channelErr.Operation)
	}
	if channelErr.Kind != guildkeep.ChannelErrorKindForbidden {
		t.Fatalf("kind = %q, want forbidden", channelErr.Kind)
	}
}

func TestChannelEditMessage(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{}
	channel := newTestChannel(t, rpc)
	ctx := context.Background()

	if err := channel.EditMessage(ctx, "summary", "42", "updated"); err != nil {
		t.Fatalf("unexpected edit error: %v", err)
	}
	if len(rpc.edits) != 1 || rpc.edits[0] != 42 {
		t.Fatalf("edits = %v, want [42]", rpc.edits)
	}

	if err := channel.EditMessage(ctx, "summary", "42", ""); err == nil {
		t.Fatal("expected empty text error")
	}
	if err := channel.EditMessage(ctx, "summary", "not-a-number", "x"); err == nil {
		t.Fatal("expected message id parse error")
	}
	if err := channel.EditMessage(ctx, "summary", "0", "x"); err == nil {
		t.Fatal("expected non-positive message id error")
	}

	rpc.editErr = tgerr.New(400, "MESSAGE_ID_INVALID")
	err := channel.EditMessage(ctx, "summary", "42", "x")
	if guildkeep.ChannelErrorKindOf(err) != guildkeep.ChannelErrorKindNotFound {
		t.Fatalf("edit failure kind = %v, want not_found", err)
	}

	rpc.editErr = tgerr.New(400, "MESSAGE_NOT_MODIFIED")
	if err := channel.EditMessage(ctx, "summary", "42", "x"); err != nil {
		t.Fatalf("unchanged-text edit error = %v, want nil", err)
	}
}

func TestChannelListRecentMessagesUnboundChannel(t *testing.T) {
	t.Parallel()

	channel := newTestChannel(t, &fakeRPC{})

	_, err := channel.ListRecentMessages(context.Background(), "unbound", 2)
	channelErr, ok := guildkeep.AsChannelError(err)
	if !ok {
		t.Fatalf("expected ChannelError, got %v", err)
	}
	if channelErr.Kind != guildkeep.ChannelErrorKindNotFound {
		t.Fatalf("kind = %q, want not_found", channelErr.Kind)
	}
	if channelErr.Operation != guildkeep.ChannelOperationListRecentMessages {
		t.Fatalf("operation = %q, want list_recent_messages", channelErr.Operation)
	}
}

func TestChannelDeleteMessage(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{}
	channel := newTestChannel(t, rpc)
	ctx := context.Background()

	if err := channel.DeleteMessage(ctx, "summary", "7"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if len(rpc.deleted) != 1 || rpc.deleted[0] != 7 {
		t.Fatalf("deleted = %v, want [7]", rpc.deleted)
	}

	rpc.deleteErr = errors.New("connection reset")
	err := channel.DeleteMessage(ctx, "summary", "7")
	channelErr, ok := guildkeep.AsChannelError(err)
	if !ok {
		t.Fatalf("expected ChannelError, got %v", err)
	}
	if channelErr.Operation != guildkeep.ChannelOperationDeleteMessage {
		t.Fatalf("operation = %q, want delete_message", channelErr.Operation)
	}
}

func TestChannelListRecentMessages(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{
		history: []guildkeep.ChannelMessage{
			{ID: "3", AuthorID: "9"},
			{ID: "2", AuthorID: "8"},
			{ID: "1", AuthorID: "9"},
		},
	}
	channel := newTestChannel(t, rpc)
	ctx := context.Background()

	messages, err := channel.ListRecentMessages(ctx, "summary", 2)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(messages) != 2 || messages[0].ID != "3" {
		t.Fatalf("messages = %v, want newest-first window of 2", messages)
	}

	if _, err := channel.ListRecentMessages(ctx, "summary", 0); err == nil {
		t.Fatal("expected non-positive limit error")
	}

	rpc.listErr = tgerr.New(420, "FLOOD_WAIT_2")
	_, err = channel.ListRecentMessages(ctx, "summary", 2)
	if guildkeep.ChannelErrorKindOf(err) != guildkeep.ChannelErrorKindRateLimited {
		t.Fatalf("list failure kind = %v, want rate_limited", err)
	}
}
