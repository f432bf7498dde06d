package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"promptpad/internal/config"
	"promptpad/internal/host"
	"promptpad/internal/host/einohost"
	"promptpad/internal/host/ollama"
	"promptpad/internal/logging"
	"promptpad/internal/metrics"
	"promptpad/internal/popup"
)

// appConfig is the slice of configuration the UI model needs.
type appConfig struct {
	backendLabel string
	eagerSession bool
}

func parseFlags(args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("promptpad", flag.ContinueOnError)
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Model backend (ollama|ark|mock|none)")
	fs.StringVar(&cfg.OllamaURL, "ollama-url", cfg.OllamaURL, "Ollama API base URL")
	fs.StringVar(&cfg.OllamaModel, "model", cfg.OllamaModel, "Ollama model name")
	fs.StringVar(&cfg.ArkModel, "ark-model", cfg.ArkModel, "Ark model or endpoint id")
	fs.StringVar(&cfg.MockTier, "mock-tier", cfg.MockTier, "Tier reported by the mock backend (readily|after-download|no)")
	fs.DurationVar(&cfg.MockDelay, "mock-delay", cfg.MockDelay, "Simulated latency of the mock backend")
	fs.StringVar(&cfg.SystemPrompt, "system-prompt", cfg.SystemPrompt, "System instruction for new sessions")
	fs.BoolVar(&cfg.EagerSession, "eager-session", cfg.EagerSession, "Create the session right after a ready probe")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path (default: promptpad.log in the temp dir)")
	fs.BoolVar(&cfg.LogDev, "log-dev", cfg.LogDev, "Human readable log output")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.BoolVar(&cfg.AltScreen, "alt-screen", cfg.AltScreen, "Use alternate screen buffer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return cfg.Normalize()
}

// buildCapability returns an untyped nil for the none backend so the
// controller sees no registered capability.
func buildCapability(ctx context.Context, cfg *config.Config) (host.Capability, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMock:
		return &host.Mock{Tier: host.Tier(cfg.MockTier), Delay: cfg.MockDelay}, nil
	case config.BackendArk:
		capability, err := einohost.NewArk(ctx, einohost.ArkConfig{
			BaseURL:   cfg.ArkBaseURL,
			Region:    cfg.ArkRegion,
			APIKey:    cfg.ArkAPIKey,
			AccessKey: cfg.ArkAccessKey,
			SecretKey: cfg.ArkSecretKey,
			Model:     cfg.ArkModel,
		})
		if err != nil {
			return nil, err
		}
		return capability, nil
	default:
		return ollama.New(cfg.OllamaURL, cfg.OllamaModel), nil
	}
}

func backendLabel(cfg *config.Config) string {
	switch cfg.Backend {
	case config.BackendOllama:
		return fmt.Sprintf("ollama (%s)", cfg.OllamaModel)
	case config.BackendArk:
		return fmt.Sprintf("ark (%s)", nullCoalesce(cfg.ArkModel, "unconfigured"))
	case config.BackendMock:
		return fmt.Sprintf("mock (%s)", cfg.MockTier)
	default:
		return cfg.Backend
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("PROMPTPAD_ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "promptpad: %v\n", err)
		os.Exit(1)
	}
	if err := parseFlags(os.Args[1:], cfg); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "promptpad: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewOrNop(logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDev,
		File:        cfg.LogFile,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capability, err := buildCapability(ctx, cfg)
	if err != nil {
		logger.Error("backend init failed", zap.String("backend", cfg.Backend), zap.Error(err))
		fmt.Fprintf(os.Stderr, "promptpad: %v\n", err)
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Warn("metrics listener stopped", zap.String("addr", cfg.MetricsAddr), zap.Error(err))
			}
		}()
	}

	ctrl := popup.New(capability,
		popup.WithLogger(logger.Named("popup")),
		popup.WithSystemPrompt(cfg.SystemPrompt),
	)
	ui := appConfig{backendLabel: backendLabel(cfg), eagerSession: cfg.EagerSession}
	logger.Info("starting", zap.String("backend", ui.backendLabel), zap.Bool("eager_session", ui.eagerSession))

	opts := []tea.ProgramOption{tea.WithMouseCellMotion(), tea.WithContext(ctx)}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(ctrl, ui, logger.Named("ui")), opts...)
	_, runErr := p.Run()
	ctrl.Teardown()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		logger.Error("ui exited", zap.Error(runErr))
		fmt.Fprintf(os.Stderr, "promptpad fatal error: %v\n", runErr)
		os.Exit(1)
	}
}
