package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/session"
	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
)

const (
	defaultSessionFile = ".cache/telegram/session.json"
	defaultAuthTimeout = 1 * time.Minute
)

type runtimeConfig struct {
	AppID         int                `json:"app_id"`
	AppHash       string             `json:"app_hash"`
	BotToken      string             `json:"bot_token"`
	SessionFile   string             `json:"session_file"`
	RPCTimeout    string             `json:"rpc_timeout"`
	AuthTimeout   string             `json:"auth_timeout"`
	CommandPrefix string             `json:"command_prefix"`
	AdminUserIDs  []int64            `json:"admin_user_ids"`
	Channels      map[string]PeerRef `json:"channels"`
}

type parsedRuntimeConfig struct {
	appID         int
	appHash       string
	botToken      string
	sessionFile   string
	rpcTimeout    time.Duration
	authTimeout   time.Duration
	commandPrefix string
	adminUserIDs  []int64
	channels      map[string]PeerRef
}

// Runtime owns the gotd bot session plus the collaborators built around it.
type Runtime struct {
	cfg    parsedRuntimeConfig
	logger *slog.Logger

	client  *gotdtelegram.Client
	channel *Channel
	bridge  *InboundBridge
}

// BuildRuntime builds one Telegram bot runtime from raw config payload.
func BuildRuntime(logger *slog.Logger, rawConfig []byte, invoker Invoker) (*Runtime, error) {
	cfg, err := parseRuntimeConfig(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("parse telegram runtime config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if invoker == nil {
		return nil, fmt.Errorf("build telegram runtime: nil invoker")
	}

	sessionStorage, err := newSessionStorage(cfg.sessionFile)
	if err != nil {
		return nil, fmt.Errorf("new session storage: %w", err)
	}

	dispatcher := tg.NewUpdateDispatcher()
	client := gotdtelegram.NewClient(cfg.appID, cfg.appHash, gotdtelegram.Options{
		UpdateHandler:  dispatcher,
		SessionStorage: sessionStorage,
	})

	peers, err := NewPeerTable(cfg.channels)
	if err != nil {
		return nil, fmt.Errorf("new peer table: %w", err)
	}

	channel, err := NewChannel(
		newGotdChannelRPC(client),
		peers,
		WithRPCTimeout(cfg.rpcTimeout),
		WithChannelLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("new telegram channel: %w", err)
	}

	bridge, err := NewInboundBridge(
		invoker,
		message.NewSender(client.API()),
		peers,
		WithCommandPrefix(cfg.commandPrefix),
		WithAdminUserIDs(cfg.adminUserIDs),
		WithInboundLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("new inbound bridge: %w", err)
	}
	bridge.Bind(&dispatcher)

	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		channel: channel,
		bridge:  bridge,
	}, nil
}

// Channel exposes the channel collaborator; usable once Run has connected.
func (r *Runtime) Channel() *Channel {
	return r.channel
}

// Run connects the bot session and blocks until cancellation.
//
// onReady runs once after authentication inside the connected lifecycle, e.g.
// to reconcile summaries against channel state at startup.
func (r *Runtime) Run(ctx context.Context, onReady func(ctx context.Context) error) error {
	err := r.client.Run(ctx, func(runCtx context.Context) error {
		if err := r.authenticate(runCtx); err != nil {
			return err
		}

		self, err := r.client.Self(runCtx)
		if err != nil {
			return fmt.Errorf("resolve bot identity: %w", err)
		}
		r.bridge.SetSelfID(self.ID)
		r.logger.InfoContext(runCtx, "telegram bot session ready",
			"bot_id", self.ID,
			"bot_username", self.Username,
		)

		if onReady != nil {
			if err := onReady(runCtx); err != nil {
				return fmt.Errorf("run ready callback: %w", err)
			}
		}

		<-runCtx.Done()

		return nil
	})
	if err != nil {
		return fmt.Errorf("run telegram bot session: %w", err)
	}

	return nil
}

// SelfID returns the authenticated bot user id rendered as an author id.
func (r *Runtime) SelfID() string {
	return fmt.Sprintf("%d", r.bridge.selfID.Load())
}

func (r *Runtime) authenticate(ctx context.Context) error {
	authCtx, cancel := context.WithTimeout(ctx, r.cfg.authTimeout)
	defer cancel()

	status, err := r.client.Auth().Status(authCtx)
	if err != nil {
		return fmt.Errorf("check auth status: %w", err)
	}
	if status.Authorized {
		r.logger.InfoContext(ctx, "telegram session restored from local storage",
			"session_file", r.cfg.sessionFile,
		)

		return nil
	}

	if _, err := r.client.Auth().Bot(authCtx, r.cfg.botToken); err != nil {
		return fmt.Errorf("authenticate bot: %w", err)
	}
	r.logger.InfoContext(ctx, "telegram authorized with bot token",
		"session_file", r.cfg.sessionFile,
	)

	return nil
}

func parseRuntimeConfig(raw []byte) (parsedRuntimeConfig, error) {
	if len(raw) == 0 {
		return parsedRuntimeConfig{}, fmt.Errorf("missing config")
	}

	var parsed runtimeConfig
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsedRuntimeConfig{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg := parsedRuntimeConfig{
		appID:         parsed.AppID,
		appHash:       strings.TrimSpace(parsed.AppHash),
		botToken:      strings.TrimSpace(parsed.BotToken),
		sessionFile:   strings.TrimSpace(parsed.SessionFile),
		rpcTimeout:    defaultRPCTimeout,
		authTimeout:   defaultAuthTimeout,
		commandPrefix: strings.TrimSpace(parsed.CommandPrefix),
		adminUserIDs:  parsed.AdminUserIDs,
		channels:      parsed.Channels,
	}
	if cfg.sessionFile == "" {
		cfg.sessionFile = defaultSessionFile
	}

	if timeout := strings.TrimSpace(parsed.RPCTimeout); timeout != "" {
		parsedTimeout, err := time.ParseDuration(timeout)
		if err != nil {
			return parsedRuntimeConfig{}, fmt.Errorf("parse rpc_timeout: %w", err)
		}
		if parsedTimeout <= 0 {
			return parsedRuntimeConfig{}, fmt.Errorf("parse rpc_timeout: must be > 0")
		}
		cfg.rpcTimeout = parsedTimeout
	}
	if timeout := strings.TrimSpace(parsed.AuthTimeout); timeout != "" {
		parsedTimeout, err := time.ParseDuration(timeout)
		if err != nil {
			return parsedRuntimeConfig{}, fmt.Errorf("parse auth_timeout: %w", err)
		}
		if parsedTimeout <= 0 {
			return parsedRuntimeConfig{}, fmt.Errorf("parse auth_timeout: must be > 0")
		}
		cfg.authTimeout = parsedTimeout
	}

	if cfg.appID <= 0 {
		return parsedRuntimeConfig{}, fmt.Errorf("app_id must be > 0")
	}
	if cfg.appHash == "" {
		return parsedRuntimeConfig{}, fmt.Errorf("app_hash is required")
	}
	if cfg.botToken == "" {
		return parsedRuntimeConfig{}, fmt.Errorf("bot_token is required")
	}

	return cfg, nil
}

func newSessionStorage(path string) (*session.FileStorage, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute session file path: %w", err)
	}
	sessionDir := filepath.Dir(absPath)
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory %s: %w", sessionDir, err)
	}

	return &session.FileStorage{Path: absPath}, nil
}
