package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moby/term"
	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/client"
	"github.com/hamed0406/alarmwatch/internal/config"
	"github.com/hamed0406/alarmwatch/internal/httpapi"
	"github.com/hamed0406/alarmwatch/internal/logging"
	"github.com/hamed0406/alarmwatch/internal/notify"
	"github.com/hamed0406/alarmwatch/internal/platform"
	"github.com/hamed0406/alarmwatch/internal/reactor"
	"github.com/hamed0406/alarmwatch/internal/scheduler"
	"github.com/hamed0406/alarmwatch/internal/sound"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, "alarmd")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	center := notify.NewCenter(logger, newNotifier(cfg))
	sounds := sound.NewRegistry(logger, newPlayer(cfg))
	window := platform.NewBrowser(cfg.AppURL)
	api := client.New(cfg.APIBase, cfg.FetchTimeout)
	api.Logger = logger

	poller := scheduler.NewPoller(
		logger,
		api,
		center,
		sounds,
		newPermission(cfg, logger, term.IsTerminal(os.Stdin.Fd())),
		window,
		scheduler.PollerConfig{
			Interval:     cfg.PollInterval,
			FetchTimeout: cfg.FetchTimeout,
			ReloadDelay:  cfg.ReloadDelay,
		},
	)

	r := reactor.New(logger, sounds, center, window, cfg.AppURL)
	r.Install(ctx, version)
	if _, err := r.Activate(ctx); err != nil {
		logger.Fatal("reactor_activate_failed", zap.Error(err))
	}

	control := &httpapi.Control{Logger: logger, Reactor: r, Center: center, Sounds: sounds, Poller: poller}
	srv := &http.Server{
		Addr:              cfg.ControlAddr,
		Handler:           control.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("control_listen", zap.String("addr", cfg.ControlAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control_listen_failed", zap.Error(err))
		}
	}()

	logger.Info("alarmd_started",
		zap.String("version", version),
		zap.String("api_base", cfg.APIBase),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("sound_backend", cfg.SoundBackend),
		zap.String("permission", cfg.Permission),
	)
	poller.Start(ctx)

	<-ctx.Done()

	poller.Stop()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
	if err := sounds.StopAll(); err != nil {
		logger.Warn("stop_sounds_error", zap.Error(err))
	}
	logger.Info("alarmd_stopped")
}

// newNotifier fans out to the desktop and, when configured, Slack.
func newNotifier(cfg config.Config) notify.Notifier {
	var m notify.Multi
	if cfg.Desktop {
		m = append(m, notify.NewDesktop("alarmwatch"))
	}
	if cfg.SlackWebhook != "" {
		m = append(m, notify.NewSlack(cfg.SlackWebhook))
	}
	return m
}

func newPlayer(cfg config.Config) sound.Player {
	switch cfg.SoundBackend {
	case "beep":
		return sound.NewBeepPlayer()
	case "none", "off":
		return sound.Nop{}
	default:
		return sound.NewOtoPlayer(sound.NewAsset(cfg.SoundURL))
	}
}

// newPermission answers from config, or asks on the terminal for "prompt".
// Without a terminal there is nobody to ask, so "prompt" becomes denied.
func newPermission(cfg config.Config, log *zap.Logger, interactive bool) notify.Permission {
	if cfg.Permission == "prompt" {
		if interactive {
			return notify.NewPromptPermission(os.Stdin, os.Stdout)
		}
		log.Warn("permission_prompt_unavailable",
			zap.String("fallback", string(notify.Denied)),
			zap.String("hint", "set NOTIFY_PERMISSION=granted to notify without a terminal"),
		)
		return notify.NewStaticPermission(notify.Denied, "")
	}
	st := notify.ParsePermission(cfg.Permission)
	// a configured "default" never resolves, so alarms keep asking
	return notify.NewStaticPermission(st, "")
}
