package affiliates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"guildkeep/internal/registry"
	"guildkeep/internal/summary"
	"guildkeep/pkg/guildkeep"
)

const (
	summaryChannelID = "summary"
	noticeChannelID  = "partner-log"
	testBotAuthorID  = "bot-1"
)

// fakeStore keeps the last saved snapshot in memory.
type fakeStore struct {
	mu       sync.Mutex
	snapshot guildkeep.Snapshot
	found    bool
}

func (s *fakeStore) Load(context.Context) (guildkeep.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot, s.found, nil
}

func (s *fakeStore) Save(_ context.Context, snapshot guildkeep.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snapshot
	s.found = true

	return nil
}

// fakeChannel is an in-memory channel keeping newest-first history per id.
type fakeChannel struct {
	mu      sync.Mutex
	next    int
	history map[string][]guildkeep.ChannelMessage
	posted  []string
	fail    map[string]error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		history: make(map[string][]guildkeep.ChannelMessage),
		fail:    make(map[string]error),
	}
}

func (c *fakeChannel) PostMessage(_ context.Context, channelID string, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail[channelID]; err != nil {
		return "", err
	}

	c.next++
	id := fmt.Sprintf("m%d", c.next)
	c.history[channelID] = append(
		[]guildkeep.ChannelMessage{{ID: id, AuthorID: testBotAuthorID}},
		c.history[channelID]...,
	)
	c.posted = append(c.posted, channelID+":"+text)

	return id, nil
}

func (c *fakeChannel) EditMessage(_ context.Context, channelID string, messageID string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail[channelID]; err != nil {
		return err
	}
	c.posted = append(c.posted, channelID+":edit "+messageID+":"+text)

	return nil
}

func (c *fakeChannel) DeleteMessage(_ context.Context, channelID string, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fail[channelID]
}

func (c *fakeChannel) ListRecentMessages(_ context.Context, channelID string, limit int) ([]guildkeep.ChannelMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail[channelID]; err != nil {
		return nil, err
	}

	history := c.history[channelID]
	if limit < len(history) {
		history = history[:limit]
	}

	return append([]guildkeep.ChannelMessage(nil), history...), nil
}

func (c *fakeChannel) postedMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.posted...)
}

func (c *fakeChannel) setFailure(channelID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fail[channelID] = err
}

// fakeServices is a map-backed service registry.
type fakeServices map[string]any

func (s fakeServices) Register(name string, service any) error {
	s[name] = service

	return nil
}

func (s fakeServices) Resolve(name string) (any, error) {
	service, exists := s[name]
	if !exists {
		return nil, fmt.Errorf("service %s not registered", name)
	}

	return service, nil
}

// fakeRuntime collects command registrations.
type fakeRuntime struct {
	services fakeServices
	specs    []guildkeep.CommandSpec
	handlers map[string]guildkeep.Handler
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		services: make(fakeServices),
		handlers: make(map[string]guildkeep.Handler),
	}
}

func (r *fakeRuntime) Services() guildkeep.ServiceRegistry {
	return r.services
}

func (r *fakeRuntime) RegisterCommand(spec guildkeep.CommandSpec, handler guildkeep.Handler) error {
	r.specs = append(r.specs, spec)
	r.handlers[spec.Name] = handler

	return nil
}

func newTestModule(t *testing.T, options ...Option) (*Module, *registry.Keyed, *fakeChannel) {
	t.Helper()

	reg, err := registry.NewKeyed(&fakeStore{})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	channel := newFakeChannel()
	renderer, err := summary.NewRenderer(summary.RendererConfig{Title: "Partners"})
	if err != nil {
		t.Fatalf("unexpected renderer error: %v", err)
	}
	reconciler, err := summary.NewReconciler(channel, summary.ReconcilerConfig{
		ChannelID:   summaryChannelID,
		BotAuthorID: testBotAuthorID,
	})
	if err != nil {
		t.Fatalf("unexpected reconciler error: %v", err)
	}
	projector, err := summary.NewProjector(
		registry.NewGate(),
		renderer,
		reconciler,
		func() []summary.Line { return RenderLines(reg.List()) },
	)
	if err != nil {
		t.Fatalf("unexpected projector error: %v", err)
	}

	module, err := New(reg, projector, options...)
	if err != nil {
		t.Fatalf("unexpected module error: %v", err)
	}

	return module, reg, channel
}

func adminInvocation(args ...string) guildkeep.Invocation {
	return guildkeep.Invocation{
		Command:    "register",
		Args:       args,
		CallerID:   "7",
		CallerName: "Ann Li",
		Roles:      []guildkeep.Role{guildkeep.RoleAdmin},
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected nil registry error")
	}

	reg, err := registry.NewKeyed(&fakeStore{})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	if _, err := New(reg, nil); err == nil {
		t.Fatal("expected nil projector error")
	}
}

func TestOnRegisterBindsCommands(t *testing.T) {
	t.Parallel()

	module, _, _ := newTestModule(t)
	runtime := newFakeRuntime()

	if err := module.OnRegister(context.Background(), runtime); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	for _, name := range []string{"register", "unregister", "setreps", "affiliates"} {
		if _, exists := runtime.handlers[name]; !exists {
			t.Fatalf("command %s not registered", name)
		}
	}
}

func TestOnRegisterResolvesNoticeChannel(t *testing.T) {
	t.Parallel()

	module, _, channel := newTestModule(t, WithPartnerLog(noticeChannelID))

	runtime := newFakeRuntime()
	if err := module.OnRegister(context.Background(), runtime); err == nil {
		t.Fatal("expected missing channel service error")
	}

	runtime.services[guildkeep.ServiceChannel] = guildkeep.Channel(channel)
	if err := module.OnRegister(context.Background(), runtime); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	if module.channel == nil {
		t.Fatal("channel collaborator not resolved")
	}
}

func TestHandleRegisterSyncsSummary(t *testing.T) {
	t.Parallel()

	module, reg, channel := newTestModule(t, WithPartnerLog(noticeChannelID))
	module.channel = channel

	reply, err := module.handleRegister(context.Background(), adminInvocation("Acme", "ann", "bo"))
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if reply.Text != "Registered partner Acme." {
		t.Fatalf("reply = %q, want clean confirmation", reply.Text)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry length = %d, want 1", reg.Len())
	}

	posted := channel.postedMessages()
	if len(posted) != 2 {
		t.Fatalf("posted = %v, want summary plus notice", posted)
	}
	if posted[0] != summaryChannelID+":Partners\n**Acme | ann, bo**\n" {
		t.Fatalf("summary post = %q", posted[0])
	}
	if posted[1] != noticeChannelID+":New partner registered: Acme" {
		t.Fatalf("notice post = %q", posted[1])
	}
}

func TestHandleRegisterReportsPendingSummary(t *testing.T) {
	t.Parallel()

	module, reg, channel := newTestModule(t)
	channel.setFailure(summaryChannelID, &guildkeep.ChannelError{
		Operation: guildkeep.ChannelOperationPostMessage,
		Kind:      guildkeep.ChannelErrorKindUnknown,
		ChannelID: summaryChannelID,
		Cause:     errors.New("backend down"),
	})

	reply, err := module.handleRegister(context.Background(), adminInvocation("Acme"))
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if !strings.HasSuffix(reply.Text, "Summary update is pending.") {
		t.Fatalf("reply = %q, want pending summary note", reply.Text)
	}
	if reg.Len() != 1 {
		t.Fatal("registration must survive a summary failure")
	}
}

func TestHandleRegisterDuplicatePassesThrough(t *testing.T) {
	t.Parallel()

	module, _, _ := newTestModule(t)

	if _, err := module.handleRegister(context.Background(), adminInvocation("Acme")); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	_, err := module.handleRegister(context.Background(), adminInvocation("ACME"))
	if !errors.Is(err, guildkeep.ErrDuplicate) {
		t.Fatalf("error = %v, want duplicate", err)
	}
}

func TestHandleUnregister(t *testing.T) {
	t.Parallel()

	module, reg, _ := newTestModule(t)

	if _, err := module.handleRegister(context.Background(), adminInvocation("Acme")); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	reply, err := module.handleUnregister(context.Background(), adminInvocation("acme"))
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if reply.Text != "Removed partner Acme." {
		t.Fatalf("reply = %q, want removal confirmation", reply.Text)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry length = %d, want 0", reg.Len())
	}

	_, err = module.handleUnregister(context.Background(), adminInvocation("acme"))
	if !errors.Is(err, guildkeep.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestHandleSetReps(t *testing.T) {
	t.Parallel()

	module, reg, _ := newTestModule(t)

	if _, err := module.handleRegister(context.Background(), adminInvocation("Acme", "ann")); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	reply, err := module.handleSetReps(context.Background(), adminInvocation("acme", "bo", "cy"))
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if reply.Text != "Updated representatives for Acme." {
		t.Fatalf("reply = %q, want update confirmation", reply.Text)
	}

	record, exists := reg.Get("acme")
	if !exists {
		t.Fatal("record missing after update")
	}
	if len(record.Representatives) != 2 || record.Representatives[0] != "bo" {
		t.Fatalf("representatives = %v, want [bo cy]", record.Representatives)
	}
}

func TestHandleList(t *testing.T) {
	t.Parallel()

	module, _, _ := newTestModule(t)

	reply, err := module.handleList(context.Background(), guildkeep.Invocation{})
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if reply.Text != "No partners registered yet." {
		t.Fatalf("reply = %q, want empty notice", reply.Text)
	}

	if _, err := module.handleRegister(context.Background(), adminInvocation("Acme", "ann")); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if _, err := module.handleRegister(context.Background(), adminInvocation("Umbrella")); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	reply, err = module.handleList(context.Background(), guildkeep.Invocation{})
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	want := "Registered partners (2):\n- Acme | ann\n- Umbrella"
	if reply.Text != want {
		t.Fatalf("reply = %q, want %q", reply.Text, want)
	}
}

func TestRenderLines(t *testing.T) {
	t.Parallel()

	lines := RenderLines([]guildkeep.KeyedRecord{
		{Name: "Acme", Representatives: []string{"ann", "bo"}},
		{Name: "Umbrella"},
	})
	if len(lines) != 2 {
		t.Fatalf("line count = %d, want 2", len(lines))
	}
	if lines[0].Primary != "Acme" || len(lines[0].Secondary) != 2 {
		t.Fatalf("line = %+v, want Acme with two representatives", lines[0])
	}
	if lines[1].Primary != "Umbrella" || len(lines[1].Secondary) != 0 {
		t.Fatalf("line = %+v, want bare Umbrella", lines[1])
	}
}
