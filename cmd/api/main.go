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

	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/config"
	"github.com/hamed0406/alarmwatch/internal/httpapi"
	"github.com/hamed0406/alarmwatch/internal/logging"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, "api")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer st.Close()

	if _, err := st.groups.EnsureGeneral(ctx); err != nil {
		logger.Fatal("seed_general_failed", zap.Error(err))
	}

	api := httpapi.NewServer(logger, st.alarms, st.groups, cfg.Location)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(cfg.AllowedOrigins, cfg.WriteRPM, cfg.WriteBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.String("store", st.kind),
		zap.String("tz", cfg.Location.String()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_failed", zap.Error(err))
	}
	logger.Info("api_stopped")
}
