package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestMessageAuthorID(t *testing.T) {
	tests := []struct {
		name string
		msg  *tg.Message
		want string
	}{
		{
			name: "user author",
			msg:  &tg.Message{FromID: &tg.PeerUser{UserID: 7}},
			want: "7",
		},
		{
			name: "channel author",
			msg:  &tg.Message{FromID: &tg.PeerChannel{ChannelID: 100}},
			want: "channel:100",
		},
		{
			name: "broadcast without from falls back to channel peer",
			msg:  &tg.Message{PeerID: &tg.PeerChannel{ChannelID: 100}},
			want: "channel:100",
		},
		{
			name: "basic group fallback",
			msg:  &tg.Message{PeerID: &tg.PeerChat{ChatID: 5}},
			want: "chat:5",
		},
		{
			name: "private chat fallback",
			msg:  &tg.Message{PeerID: &tg.PeerUser{UserID: 7}},
			want: "7",
		},
		{
			name: "no identity",
			msg:  &tg.Message{},
			want: "",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := messageAuthorID(testCase.msg); got != testCase.want {
				t.Fatalf("author id = %q, want %q", got, testCase.want)
			}
		})
	}
}
