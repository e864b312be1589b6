package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"guildkeep/internal/driver/telegram"
	"guildkeep/internal/kernel"
	"guildkeep/internal/registry"
	"guildkeep/internal/store"
	"guildkeep/internal/summary"
	"guildkeep/modules/affiliates"
	"guildkeep/modules/askai"
	"guildkeep/modules/emoticons"
	"guildkeep/modules/facts"
	"guildkeep/modules/help"
	"guildkeep/pkg/guildkeep"
	llmconfig "guildkeep/pkg/llm/config"
)

const (
	envConfigFile           = "GUILDKEEP_CONFIG_FILE"
	defaultConfigFilePath   = "config/bot.json"
	alternateConfigFilePath = "bin/config/bot.json"

	defaultDataDir = "data"

	partnersSnapshotFile  = "partners.json"
	emoticonsSnapshotFile = "emoticons.json"
	factsSnapshotFile     = "facts.json"
)

type fileConfig struct {
	LogLevel string            `json:"log_level"`
	DataDir  string            `json:"data_dir"`
	Kernel   fileKernelConfig  `json:"kernel"`
	Telegram json.RawMessage   `json:"telegram"`
	Summary  fileSummaryConfig `json:"summary"`
	LLM      json.RawMessage   `json:"llm"`
	AskAI    fileAskAIConfig   `json:"askai"`
}

type fileKernelConfig struct {
	ModuleHookTimeout string `json:"module_hook_timeout"`
	ShutdownTimeout   string `json:"shutdown_timeout"`
}

type fileSummaryConfig struct {
	Channel      string `json:"channel"`
	LogChannel   string `json:"log_channel"`
	Title        string `json:"title"`
	EmptyText    string `json:"empty_text"`
	TrailingNote string `json:"trailing_note"`
	Strategy     string `json:"strategy"`
	MaxAttempts  int    `json:"max_attempts"`
	RecentWindow int    `json:"recent_window"`
}

type fileAskAIConfig struct {
	Profile         string `json:"profile"`
	GenerateTimeout string `json:"generate_timeout"`
}

type appConfig struct {
	logLevel slog.Level
	dataDir  string

	moduleHookTimeout time.Duration
	shutdownTimeout   time.Duration

	telegram json.RawMessage
	summary  fileSummaryConfig
	llm      json.RawMessage
	askai    fileAskAIConfig
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	app, err := buildApp(logger, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.run(ctx)
}

type app struct {
	logger  *slog.Logger
	kernel  *kernel.Kernel
	runtime *telegram.Runtime

	partnerProjector *summary.Projector
}

func buildApp(logger *slog.Logger, cfg appConfig) (*app, error) {
	dispatcher := kernel.NewDispatcher(kernel.WithDispatcherLogger(logger))
	kernelRuntime := kernel.New(
		dispatcher,
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
	)

	runtime, err := telegram.BuildRuntime(logger, cfg.telegram, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("build telegram runtime: %w", err)
	}

	partnersStore, err := buildSnapshotStore(logger, cfg.dataDir, partnersSnapshotFile)
	if err != nil {
		return nil, err
	}
	partnersRegistry, err := registry.NewKeyed(partnersStore, registry.WithKeyedLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build partners registry: %w", err)
	}

	emoticonsStore, err := buildSnapshotStore(logger, cfg.dataDir, emoticonsSnapshotFile)
	if err != nil {
		return nil, err
	}
	emoticonsRegistry, err := registry.NewIndexed(emoticonsStore, registry.WithIndexedLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build emoticons registry: %w", err)
	}

	factsStore, err := buildSnapshotStore(logger, cfg.dataDir, factsSnapshotFile)
	if err != nil {
		return nil, err
	}
	factsRegistry, err := registry.NewIndexed(
		factsStore,
		registry.WithIndexedLogger(logger),
		registry.WithSeed(facts.DefaultFacts),
	)
	if err != nil {
		return nil, fmt.Errorf("build facts registry: %w", err)
	}

	partnerProjector, err := buildPartnerProjector(logger, cfg, runtime.Channel(), partnersRegistry)
	if err != nil {
		return nil, err
	}

	if err := registerServices(kernelRuntime, logger, runtime.Channel(), dispatcher, cfg); err != nil {
		return nil, err
	}
	if err := registerModules(
		kernelRuntime,
		logger,
		cfg,
		partnersRegistry,
		partnerProjector,
		emoticonsRegistry,
		factsRegistry,
	); err != nil {
		return nil, err
	}

	return &app{
		logger:           logger,
		kernel:           kernelRuntime,
		runtime:          runtime,
		partnerProjector: partnerProjector,
	}, nil
}

// run executes the kernel and the telegram session side by side; whichever
// fails first tears the other down through context cancellation.
func (a *app) run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	kernelErr := make(chan error, 1)
	go func() {
		kernelErr <- a.kernel.Run(runCtx)
	}()

	sessionErr := a.runtime.Run(runCtx, func(readyCtx context.Context) error {
		outcome := a.partnerProjector.Refresh(readyCtx)
		if outcome.Err != nil {
			a.logger.WarnContext(readyCtx, "startup summary refresh failed",
				"status", string(outcome.Status),
				"error", outcome.Err,
			)
		}

		return nil
	})

	cancel()
	shutdownErr := <-kernelErr

	if isContextCancellation(sessionErr) {
		sessionErr = nil
	}
	if sessionErr != nil && shutdownErr != nil {
		return errors.Join(sessionErr, shutdownErr)
	}
	if sessionErr != nil {
		return sessionErr
	}

	return shutdownErr
}

func buildPartnerProjector(
	logger *slog.Logger,
	cfg appConfig,
	channel guildkeep.Channel,
	partners *registry.Keyed,
) (*summary.Projector, error) {
	renderer, err := summary.NewRenderer(summary.RendererConfig{
		Title:        cfg.summary.Title,
		EmptyText:    cfg.summary.EmptyText,
		TrailingNote: cfg.summary.TrailingNote,
	})
	if err != nil {
		return nil, fmt.Errorf("build summary renderer: %w", err)
	}

	botAuthorID, err := botAuthorIDFromConfig(cfg.telegram)
	if err != nil {
		return nil, err
	}

	reconciler, err := summary.NewReconciler(
		channel,
		summary.ReconcilerConfig{
			ChannelID:    cfg.summary.Channel,
			BotAuthorID:  botAuthorID,
			Strategy:     summary.Strategy(cfg.summary.Strategy),
			MaxAttempts:  cfg.summary.MaxAttempts,
			RecentWindow: cfg.summary.RecentWindow,
		},
		summary.WithReconcilerLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build summary reconciler: %w", err)
	}

	projector, err := summary.NewProjector(
		registry.NewGate(),
		renderer,
		reconciler,
		func() []summary.Line {
			return affiliates.RenderLines(partners.List())
		},
		summary.WithProjectorLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build summary projector: %w", err)
	}

	return projector, nil
}

func registerServices(
	kernelRuntime *kernel.Kernel,
	logger *slog.Logger,
	channel guildkeep.Channel,
	dispatcher *kernel.Dispatcher,
	cfg appConfig,
) error {
	if err := kernelRuntime.RegisterService(guildkeep.ServiceLogger, logger); err != nil {
		return fmt.Errorf("register logger service: %w", err)
	}
	if err := kernelRuntime.RegisterService(guildkeep.ServiceChannel, channel); err != nil {
		return fmt.Errorf("register channel service: %w", err)
	}
	if err := kernelRuntime.RegisterService(guildkeep.ServiceCommandCatalog, dispatcher); err != nil {
		return fmt.Errorf("register command catalog service: %w", err)
	}

	if len(cfg.llm) > 0 {
		parsed, err := llmconfig.Parse(cfg.llm)
		if err != nil {
			return fmt.Errorf("parse llm config: %w", err)
		}
		providers, err := llmconfig.BuildRegistry(parsed)
		if err != nil {
			return fmt.Errorf("build llm providers: %w", err)
		}
		if err := kernelRuntime.RegisterService(guildkeep.ServiceLLMProviderRegistry, providers); err != nil {
			return fmt.Errorf("register llm provider registry service: %w", err)
		}
	}

	return nil
}

func registerModules(
	kernelRuntime *kernel.Kernel,
	logger *slog.Logger,
	cfg appConfig,
	partnersRegistry *registry.Keyed,
	partnerProjector *summary.Projector,
	emoticonsRegistry *registry.Indexed,
	factsRegistry *registry.Indexed,
) error {
	ctx := context.Background()

	affiliatesModule, err := affiliates.New(
		partnersRegistry,
		partnerProjector,
		affiliates.WithLogger(logger),
		affiliates.WithPartnerLog(cfg.summary.LogChannel),
	)
	if err != nil {
		return fmt.Errorf("build affiliates module: %w", err)
	}
	if err := kernelRuntime.RegisterModule(ctx, affiliatesModule); err != nil {
		return fmt.Errorf("register affiliates module: %w", err)
	}

	emoticonsModule, err := emoticons.New(
		emoticonsRegistry,
		registry.NewGate(),
		emoticons.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("build emoticons module: %w", err)
	}
	if err := kernelRuntime.RegisterModule(ctx, emoticonsModule); err != nil {
		return fmt.Errorf("register emoticons module: %w", err)
	}

	factsModule, err := facts.New(
		factsRegistry,
		registry.NewGate(),
		facts.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("build facts module: %w", err)
	}
	if err := kernelRuntime.RegisterModule(ctx, factsModule); err != nil {
		return fmt.Errorf("register facts module: %w", err)
	}

	if len(cfg.llm) > 0 {
		askaiOptions := []askai.Option{askai.WithLogger(logger)}
		if cfg.askai.Profile != "" {
			askaiOptions = append(askaiOptions, askai.WithProfile(cfg.askai.Profile))
		}
		if raw := strings.TrimSpace(cfg.askai.GenerateTimeout); raw != "" {
			timeout, parseErr := time.ParseDuration(raw)
			if parseErr != nil || timeout <= 0 {
				return fmt.Errorf("parse askai.generate_timeout: invalid duration %q", raw)
			}
			askaiOptions = append(askaiOptions, askai.WithGenerateTimeout(timeout))
		}
		if err := kernelRuntime.RegisterModule(ctx, askai.New(askaiOptions...)); err != nil {
			return fmt.Errorf("register askai module: %w", err)
		}
	}

	if err := kernelRuntime.RegisterModule(ctx, help.New()); err != nil {
		return fmt.Errorf("register help module: %w", err)
	}

	return nil
}

func buildSnapshotStore(logger *slog.Logger, dataDir, file string) (*store.JSONFile, error) {
	snapshotStore, err := store.NewJSONFile(filepath.Join(dataDir, file), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build snapshot store %s: %w", file, err)
	}

	return snapshotStore, nil
}

// botAuthorIDFromConfig derives the bot's numeric user id from the bot token,
// whose leading segment is the bot user id.
func botAuthorIDFromConfig(rawTelegram json.RawMessage) (string, error) {
	var parsed struct {
		BotToken string `json:"bot_token"`
	}
	if err := json.Unmarshal(rawTelegram, &parsed); err != nil {
		return "", fmt.Errorf("parse telegram.bot_token: %w", err)
	}

	id, _, found := strings.Cut(strings.TrimSpace(parsed.BotToken), ":")
	if !found || id == "" {
		return "", fmt.Errorf("parse telegram.bot_token: expected <id>:<secret> format")
	}

	return id, nil
}

func loadConfig() (appConfig, error) {
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return appConfig{}, fmt.Errorf("read config file %s: %w", configFile, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return appConfig{}, fmt.Errorf("parse config file %s: %w", configFile, err)
	}

	cfg := appConfig{
		logLevel: slog.LevelInfo,
		dataDir:  defaultDataDir,
		telegram: append([]byte(nil), parsed.Telegram...),
		summary:  parsed.Summary,
		llm:      append([]byte(nil), parsed.LLM...),
		askai:    parsed.AskAI,
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}
	if dataDir := strings.TrimSpace(parsed.DataDir); dataDir != "" {
		cfg.dataDir = dataDir
	}
	if rawTimeout := strings.TrimSpace(parsed.Kernel.ModuleHookTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil || timeout <= 0 {
			return appConfig{}, fmt.Errorf("parse kernel.module_hook_timeout: invalid duration %q", rawTimeout)
		}
		cfg.moduleHookTimeout = timeout
	}
	if rawTimeout := strings.TrimSpace(parsed.Kernel.ShutdownTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil || timeout <= 0 {
			return appConfig{}, fmt.Errorf("parse kernel.shutdown_timeout: invalid duration %q", rawTimeout)
		}
		cfg.shutdownTimeout = timeout
	}

	if len(cfg.telegram) == 0 {
		return appConfig{}, fmt.Errorf("telegram config is required")
	}
	if strings.TrimSpace(cfg.summary.Channel) == "" {
		return appConfig{}, fmt.Errorf("summary.channel is required")
	}
	if strings.TrimSpace(cfg.summary.Title) == "" {
		return appConfig{}, fmt.Errorf("summary.title is required")
	}

	return cfg, nil
}

func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf(
		"config file not found; create %s or %s, or set %s",
		defaultConfigFilePath,
		alternateConfigFilePath,
		envConfigFile,
	)
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
