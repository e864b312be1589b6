package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/gotd/td/tg"

	"guildkeep/pkg/guildkeep"
)

// fakeInvoker records invocations and replies with a scripted result.
type fakeInvoker struct {
	mu    sync.Mutex
	calls []guildkeep.Invocation
	reply guildkeep.Reply
	err   error
}

func (i *fakeInvoker) Invoke(_ context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.calls = append(i.calls, inv)

	return i.reply, i.err
}

func newTestBridge(options ...InboundOption) *InboundBridge {
	cfg := inboundConfig{
		prefix: defaultCommandPrefix,
		admins: make(map[int64]struct{}),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &InboundBridge{cfg: cfg}
}

func TestNewInboundBridgeValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewInboundBridge(nil, nil, nil); err == nil {
		t.Fatal("expected nil invoker error")
	}
	if _, err := NewInboundBridge(&fakeInvoker{}, nil, nil); err == nil {
		t.Fatal("expected nil sender error")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name        string
		prefix      string
		text        string
		wantCommand string
		wantArgs    []string
		wantMatch   bool
	}{
		{
			name:        "simple command",
			text:        "/register Acme",
			wantCommand: "register",
			wantArgs:    []string{"Acme"},
			wantMatch:   true,
		},
		{
			name:        "normalized name with bot suffix",
			text:        "  /Register@SomeBot Acme Corp ",
			wantCommand: "register",
			wantArgs:    []string{"Acme", "Corp"},
			wantMatch:   true,
		},
		{
			name:        "no arguments",
			text:        "/help",
			wantCommand: "help",
			wantArgs:    []string{},
			wantMatch:   true,
		},
		{
			name: "plain chatter ignored",
			text: "just talking",
		},
		{
			name: "bare prefix ignored",
			text: "/",
		},
		{
			name: "bot suffix without command ignored",
			text: "/@SomeBot",
		},
		{
			name:        "custom prefix",
			prefix:      "!",
			text:        "!ping",
			wantCommand: "ping",
			wantArgs:    []string{},
			wantMatch:   true,
		},
		{
			name:   "default prefix not honored under custom prefix",
			prefix: "!",
			text:   "/ping",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			options := []InboundOption{}
			if testCase.prefix != "" {
				options = append(options, WithCommandPrefix(testCase.prefix))
			}
			bridge := newTestBridge(options...)

			command, args, matched := bridge.parseCommand(testCase.text)
			if matched != testCase.wantMatch {
				t.Fatalf("matched = %v, want %v", matched, testCase.wantMatch)
			}
			if !matched {
				return
			}
			if command != testCase.wantCommand {
				t.Fatalf("command = %q, want %q", command, testCase.wantCommand)
			}
			if len(args) != len(testCase.wantArgs) {
				t.Fatalf("args = %v, want %v", args, testCase.wantArgs)
			}
			for position := range args {
				if args[position] != testCase.wantArgs[position] {
					t.Fatalf("args = %v, want %v", args, testCase.wantArgs)
				}
			}
		})
	}
}

func TestRolesFor(t *testing.T) {
	t.Parallel()

	bridge := newTestBridge(WithAdminUserIDs([]int64{7}))

	roles := bridge.rolesFor(7)
	if len(roles) != 1 || roles[0] != guildkeep.RoleAdmin {
		t.Fatalf("roles = %v, want [admin]", roles)
	}
	if roles := bridge.rolesFor(8); roles != nil {
		t.Fatalf("roles = %v, want none", roles)
	}
}

func TestCallerName(t *testing.T) {
	tests := []struct {
		name     string
		entities tg.Entities
		userID   int64
		want     string
	}{
		{
			name: "full name",
			entities: tg.Entities{Users: map[int64]*tg.User{
				7: {ID: 7, FirstName: "Ann", LastName: "Li", Username: "annli"},
			}},
			userID: 7,
			want:   "Ann Li",
		},
		{
			name: "username fallback",
			entities: tg.Entities{Users: map[int64]*tg.User{
				7: {ID: 7, Username: "annli"},
			}},
			userID: 7,
			want:   "annli",
		},
		{
			name:     "unknown user falls back to id",
			entities: tg.Entities{},
			userID:   7,
			want:     "7",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := callerName(testCase.entities, testCase.userID); got != testCase.want {
				t.Fatalf("caller name = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestRenderInvocationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "not authorized",
			err:  fmt.Errorf("invoke wipe: %w", guildkeep.ErrNotAuthorized),
			want: "You are not allowed to use this command.",
		},
		{
			name: "duplicate",
			err:  fmt.Errorf("keyed add acme: %w", guildkeep.ErrDuplicate),
			want: "That entry already exists.",
		},
		{
			name: "not found",
			err:  fmt.Errorf("keyed remove acme: %w", guildkeep.ErrNotFound),
			want: "No such entry.",
		},
		{
			name: "capacity exceeded",
			err:  fmt.Errorf("indexed add: %w", guildkeep.ErrCapacityExceeded),
			want: "The registry is full.",
		},
		{
			name: "argument count miss renders usage",
			err:  errors.New("invoke register: usage: register <name>"),
			want: "Usage: register <name>",
		},
		{
			name: "unexpected failure stays generic",
			err:  errors.New("store error: disk full"),
			want: "Something went wrong, try again later.",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := renderInvocationError(testCase.err); got != testCase.want {
				t.Fatalf("rendered = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestHandleFiltersNonCommands(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{err: guildkeep.ErrUnknownCommand}
	bridge := newTestBridge()
	bridge.invoker = invoker
	bridge.SetSelfID(99)

	updates := []*tg.UpdateNewMessage{
		// Plain chatter.
		{Message: &tg.Message{Message: "hello there", FromID: &tg.PeerUser{UserID: 7}}},
		// Our own outgoing message.
		{Message: &tg.Message{Message: "/help", Out: true, FromID: &tg.PeerUser{UserID: 99}}},
		// Command sent by the bot itself.
		{Message: &tg.Message{Message: "/help", FromID: &tg.PeerUser{UserID: 99}}},
	}
	for _, update := range updates {
		if err := bridge.handle(context.Background(), tg.Entities{}, update); err != nil {
			t.Fatalf("unexpected handle error: %v", err)
		}
	}
	if len(invoker.calls) != 0 {
		t.Fatalf("invocations = %v, want none", invoker.calls)
	}

	// Unknown commands invoke but stay silent (no reply attempted, so the
	// nil sender is never touched).
	update := &tg.UpdateNewMessage{
		Message: &tg.Message{Message: "/mystery", FromID: &tg.PeerUser{UserID: 7}},
	}
	if err := bridge.handle(context.Background(), tg.Entities{}, update); err != nil {
		t.Fatalf("unexpected handle error: %v", err)
	}
	if len(invoker.calls) != 1 || invoker.calls[0].Command != "mystery" {
		t.Fatalf("invocations = %v, want one mystery call", invoker.calls)
	}
}

func TestHandleBuildsInvocation(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{}
	bridge := newTestBridge(WithAdminUserIDs([]int64{7}))
	bridge.invoker = invoker
	bridge.SetSelfID(99)

	entities := tg.Entities{Users: map[int64]*tg.User{
		7: {ID: 7, FirstName: "Ann", LastName: "Li"},
	}}
	update := &tg.UpdateNewMessage{
		Message: &tg.Message{Message: "/register Acme Corp", FromID: &tg.PeerUser{UserID: 7}},
	}
	if err := bridge.handle(context.Background(), entities, update); err != nil {
		t.Fatalf("unexpected handle error: %v", err)
	}

	if len(invoker.calls) != 1 {
		t.Fatalf("invocation count = %d, want 1", len(invoker.calls))
	}
	inv := invoker.calls[0]
	if inv.Command != "register" {
		t.Fatalf("command = %q, want register", inv.Command)
	}
	if len(inv.Args) != 2 || inv.Args[0] != "Acme" || inv.Args[1] != "Corp" {
		t.Fatalf("args = %v, want [Acme Corp]", inv.Args)
	}
	if inv.CallerID != "7" {
		t.Fatalf("caller id = %q, want 7", inv.CallerID)
	}
	if inv.CallerName != "Ann Li" {
		t.Fatalf("caller name = %q, want Ann Li", inv.CallerName)
	}
	if len(inv.Roles) != 1 || inv.Roles[0] != guildkeep.RoleAdmin {
		t.Fatalf("roles = %v, want [admin]", inv.Roles)
	}
}
