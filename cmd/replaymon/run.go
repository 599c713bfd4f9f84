package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/alias"
	"github.com/eliteGoblin/focusd/replay_mon/internal/clock"
	"github.com/eliteGoblin/focusd/replay_mon/internal/config"
	"github.com/eliteGoblin/focusd/replay_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/infra"
	"github.com/eliteGoblin/focusd/replay_mon/internal/metrics"
	"github.com/eliteGoblin/focusd/replay_mon/internal/naming"
	"github.com/eliteGoblin/focusd/replay_mon/internal/placement"
	"github.com/eliteGoblin/focusd/replay_mon/internal/usecase"
)

func runRun(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(settings)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize infrastructure
	clk := clock.NewRealClock()
	fs := infra.NewFileSystemManager()
	foreground := infra.NewForegroundProbe(infra.NewProcessInspector())
	host := infra.NewCommandHost(settings.HostConfig(), clk, logger)

	aliases := alias.NewStore()
	if err := aliases.Rebuild(settings.Aliases); err != nil {
		return err
	}

	var ledger domain.ClipLedger
	if settings.Ledger {
		if l, err := infra.OpenLedger(settings.DataDir); err != nil {
			logger.Warn("clip ledger unavailable", zap.Error(err))
		} else {
			ledger = l
			defer l.Close()
		}
	}

	// Wire the save pipeline and the session
	gate := usecase.NewForceModeGate()
	resolver := naming.NewResolver(foreground, host, aliases, logger)
	saver := usecase.NewClipSaver(
		resolver,
		placement.NewAssigner(fs, logger),
		gate,
		ledger,
		createNotifier(settings, logger),
		clk,
		settings.SaverConfig(),
		logger,
	)

	if !settings.CanRestartBuffer() {
		logger.Info("host stop/start commands not set, buffer restarts disabled")
	}

	exec := daemon.DetachedExecutor{}
	scheduler := daemon.NewRestartScheduler(settings.EffectiveRestartInterval(), host, infra.NewIdleProbe(), host, exec, clk, logger)

	events := make(chan domain.CaptureEvent, 16)
	host.SetListener(func(ev domain.CaptureEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})

	session := daemon.NewSession(
		settings.SessionConfig(Version),
		events,
		foreground,
		host,
		host,
		saver,
		gate,
		scheduler,
		exec,
		infra.NewStatusFile(settings.DataDir),
		clk,
		logger,
	)

	if err := config.Watch(configPath, logger, func(s *config.Settings) {
		if err := aliases.Rebuild(s.Aliases); err != nil {
			logger.Warn("keeping previous aliases", zap.Error(err))
		}
		saver.UpdateConfig(s.SaverConfig())
		scheduler.SetInterval(s.EffectiveRestartInterval())
	}); err != nil {
		logger.Warn("config reload disabled", zap.Error(err))
	}

	if settings.Host.WatchDir != "" {
		watcher := infra.NewReplayWatcher(settings.WatcherConfig(), logger)
		go func() {
			if err := watcher.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("replay watcher stopped", zap.Error(err))
				cancel()
			}
		}()
	} else {
		logger.Warn("host.watch_dir not set, clips will not be detected")
	}

	if metricsAddr != "" {
		srv, err := serveMetrics(metricsAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Set up signals: forced saves and graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigChan)
	go handleSignals(ctx, cancel, sigChan, session, logger)

	// Bring the buffer up, or assume the host already runs it
	go func() {
		if err := host.Start(ctx); err != nil {
			if !errors.Is(err, infra.ErrNoCommand) {
				logger.Warn("failed to start buffer, assuming it is running", zap.Error(err))
			}
			select {
			case events <- domain.CaptureEvent{Type: domain.CaptureStarted, At: clk.Now()}:
			case <-ctx.Done():
			}
		}
	}()

	err = session.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, sigChan <-chan os.Signal, session *daemon.Session, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			var mode domain.NamingMode
			switch sig {
			case syscall.SIGUSR1:
				mode = domain.NamingCurrentProcess
			case syscall.SIGUSR2:
				mode = domain.NamingMostRecordedProcess
			default:
				logger.Info("received shutdown signal", zap.String("signal", sig.String()))
				cancel()
				return
			}
			if err := session.RequestForcedSave(ctx, mode); err != nil {
				logger.Warn("forced save rejected",
					zap.String("mode", mode.String()),
					zap.Error(err))
			}
		}
	}
}

func createNotifier(settings *config.Settings, logger *zap.Logger) domain.Notifier {
	display := settings.DisplayMode()
	notifiers := infra.MultiNotifier{infra.NewLogNotifier(display, logger)}
	if n := infra.NewCommandNotifier(settings.Notify.Command, display, logger); n != nil {
		notifiers = append(notifiers, n)
	}
	return notifiers
}

func serveMetrics(addr string, logger *zap.Logger) (*http.Server, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv, nil
}

// createLogger writes JSON logs to the configured file, or to
// <data_dir>/replaymon.log and stderr when none is set.
func createLogger(settings *config.Settings) *zap.Logger {
	cfg := settings.LogConfig()
	if cfg.Path == "" {
		cfg.Path = dataPath(settings, "replaymon.log")
		cfg.Console = true
	}
	return infra.NewLogger(cfg)
}
