package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"

	"guildkeep/pkg/guildkeep"
)

func TestMapChannelError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantKind       guildkeep.ChannelErrorKind
		wantRetryAfter time.Duration
		wantCode       int
	}{
		{
			name:           "flood wait carries retry hint",
			err:            tgerr.New(420, "FLOOD_WAIT_3"),
			wantKind:       guildkeep.ChannelErrorKindRateLimited,
			wantRetryAfter: 3 * time.Second,
			wantCode:       420,
		},
		{
			name:     "flood error type without wait hint",
			err:      tgerr.New(400, "PEER_FLOOD"),
			wantKind: guildkeep.ChannelErrorKindRateLimited,
			wantCode: 400,
		},
		{
			name:     "message id invalid is not found",
			err:      tgerr.New(400, "MESSAGE_ID_INVALID"),
			wantKind: guildkeep.ChannelErrorKindNotFound,
			wantCode: 400,
		},
		{
			name:     "channel private is not found",
			err:      tgerr.New(400, "CHANNEL_PRIVATE"),
			wantKind: guildkeep.ChannelErrorKindNotFound,
			wantCode: 400,
		},
		{
			name:     "write forbidden maps to forbidden",
			err:      tgerr.New(400, "CHAT_WRITE_FORBIDDEN"),
			wantKind: guildkeep.ChannelErrorKindForbidden,
			wantCode: 400,
		},
		{
			name:     "403 maps to forbidden",
			err:      tgerr.New(403, "SOMETHING_ELSE"),
			wantKind: guildkeep.ChannelErrorKindForbidden,
			wantCode: 403,
		},
		{
			name:     "303 migrate is temporary",
			err:      tgerr.New(303, "PHONE_MIGRATE_3"),
			wantKind: guildkeep.ChannelErrorKindTemporary,
			wantCode: 303,
		},
		{
			name:     "server failure is temporary",
			err:      tgerr.New(500, "INTERNAL"),
			wantKind: guildkeep.ChannelErrorKindTemporary,
			wantCode: 500,
		},
		{
			name:     "unmatched 400 stays unknown",
			err:      tgerr.New(400, "SOMETHING_ODD"),
			wantKind: guildkeep.ChannelErrorKindUnknown,
			wantCode: 400,
		},
		{
			name:     "non-rpc transport failure stays unknown",
			err:      errors.New("connection reset"),
			wantKind: guildkeep.ChannelErrorKindUnknown,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			mapped := mapChannelError(guildkeep.ChannelOperationPostMessage, "summary", testCase.err)

			channelErr, ok := guildkeep.AsChannelError(mapped)
			if !ok {
				t.Fatalf("expected ChannelError, got %v", mapped)
			}
			if channelErr.Kind != testCase.wantKind {
				t.Fatalf("kind = %q, want %q", channelErr.Kind, testCase.wantKind)
			}
			if channelErr.Operation != guildkeep.ChannelOperationPostMessage {
				t.Fatalf("operation = %q, want post_message", channelErr.Operation)
			}
			if channelErr.ChannelID != "summary" {
				t.Fatalf("channel id = %q, want summary", channelErr.ChannelID)
			}
			if channelErr.RetryAfter != testCase.wantRetryAfter {
				t.Fatalf("retry after = %v, want %v", channelErr.RetryAfter, testCase.wantRetryAfter)
			}
			if channelErr.Code != testCase.wantCode {
				t.Fatalf("code = %d, want %d", channelErr.Code, testCase.wantCode)
			}
			if !errors.Is(mapped, testCase.err) {
				t.Fatal("mapped error must wrap the cause")
			}
		})
	}
}

func TestMapChannelErrorNoOpEditIsSuccess(t *testing.T) {
	t.Parallel()

	// An edit carrying the text the message already holds is rejected by
	// Telegram, yet the desired post-state holds. Mapping it to a failure
	// would make the reconciler repost an identical summary after every
	// restart, so it maps to success instead.
	err := mapChannelError(
		guildkeep.ChannelOperationEditMessage,
		"summary",
		tgerr.New(400, "MESSAGE_NOT_MODIFIED"),
	)
	if err != nil {
		t.Fatalf("mapped no-op edit error = %v, want nil", err)
	}
}

func TestMapChannelErrorNil(t *testing.T) {
	t.Parallel()

	if err := mapChannelError(guildkeep.ChannelOperationPostMessage, "summary", nil); err != nil {
		t.Fatalf("mapped nil error = %v, want nil", err)
	}
}
