package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"buddy/internal/audio"
	"buddy/internal/chat"
	"buddy/internal/commands"
	"buddy/internal/config"
	"buddy/internal/domain"
	"buddy/internal/launcher"
	"buddy/internal/logging"
	"buddy/internal/ports"
	"buddy/internal/providers/deepgram"
	"buddy/internal/rules"
	"buddy/internal/timers"
	"buddy/internal/usecase"
	"buddy/internal/wake"
)

// Options are the host-specific pieces the runtime graph needs.
type Options struct {
	// ConfigPath selects an explicit config file; empty uses ~/.buddy.
	ConfigPath string
	// MetricsAddr overrides metrics.addr from the config when set.
	MetricsAddr string
	Events      ports.EventSink
	Opener      ports.URLOpener
	Notifier    ports.Notifier
	// Now defaults to time.Now.
	Now func() time.Time
}

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     zerolog.Logger
	Controller *usecase.SessionController
	Assistant  *usecase.Assistant
	Timers     *timers.Manager
	Rules      *rules.Engine
	Chat       *chat.Client

	cancel  context.CancelFunc
	metrics *http.Server
	logFile io.Closer
}

// Build wires all backend dependencies for the current runtime. The returned
// Services must be closed.
func Build(ctx context.Context, opts Options) (*Services, error) {
	if opts.Events == nil {
		return nil, errors.New("bootstrap: event sink is required")
	}
	if opts.Opener == nil {
		return nil, errors.New("bootstrap: url opener is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.MetricsAddr) != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}

	logger, logFile, err := logging.New(logging.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Console: cfg.Log.Console})
	if err != nil {
		return nil, err
	}
	bootLog := logging.Component(logger, "bootstrap")

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit, logger)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("load transcript rules: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	services := &Services{
		Config:  cfg,
		Logger:  logger,
		Rules:   rulesEngine,
		cancel:  cancel,
		logFile: logFile,
	}

	if cfg.Rules.Watch {
		err := rulesEngine.Watch(runCtx, func(err error) {
			if err != nil {
				opts.Events.SessionError(domain.ErrorCodeRules, err.Error())
			}
		})
		if err != nil {
			bootLog.Warn().Err(err).Str("path", cfg.Rules.Path).Msg("rules hot reload disabled")
		}
	}

	services.Timers = timers.NewManager(timers.Options{Interval: cfg.Timers.TickInterval, Logger: logger})
	services.Chat = chat.NewClient(chat.Config{URL: cfg.Chat.URL, APIKey: cfg.Chat.APIKey, Timeout: cfg.Chat.Timeout}, logger)

	services.Assistant = usecase.NewAssistant(usecase.AssistantDeps{
		Wake:       wake.NewDetector(cfg.Assistant.WakePhrases, nil),
		Classifier: commands.NewClassifier(opts.Now),
		Chat:       services.Chat,
		Timers:     services.Timers,
		Launcher:   launcher.New(opts.Opener, launcher.Platform(cfg.Launcher.Platform), logger),
		Notifier:   opts.Notifier,
		Events:     opts.Events,
	}, usecase.AssistantConfig{
		SearchMode: cfg.Assistant.SearchMode,
		Muted:      cfg.Assistant.Muted,
		MaxHistory: cfg.Assistant.MaxHistory,
		Logger:     logger,
	})
	services.Timers.SetCallbacks(services.Assistant.TimerTicked, services.Assistant.TimerCompleted)

	services.Controller = usecase.NewSessionController(
		audio.NewFFMPEGCapture(audio.Options{Command: cfg.Audio.RecorderCommand, Logger: logger}),
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
			Keywords:    cfg.Deepgram.Keywords,
			Endpointing: cfg.Deepgram.Endpointing,
			KeepAlive:   cfg.Deepgram.KeepAlive,
		}, logger),
		rulesEngine,
		services.Assistant,
		opts.Events,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize:      cfg.Session.ChunkSize,
			StreamingGrace: cfg.Session.StreamingGrace,
			Logger:         logger,
		},
	)

	if cfg.Metrics.Addr != "" {
		services.metrics = serveMetrics(cfg.Metrics.Addr, bootLog)
	}

	bootLog.Info().
		Str("rules", cfg.Rules.Path).
		Int("rule_count", rulesEngine.Len()).
		Bool("chat_configured", cfg.Chat.URL != "").
		Str("platform", cfg.Launcher.Platform).
		Msg("buddy ready")
	return services, nil
}

// Close stops timers, watchers and the metrics endpoint.
func (s *Services) Close() error {
	s.cancel()
	s.Timers.Close()

	var errs []error
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}
	if err := s.logFile.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
