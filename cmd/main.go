package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"thermal-vision/config"
	"thermal-vision/internal/api/telegram"
	"thermal-vision/internal/api/web"
	"thermal-vision/internal/container"
	"thermal-vision/internal/infrastructure/auth"
	"thermal-vision/internal/infrastructure/detectapi"
	"thermal-vision/internal/infrastructure/storage"
	"thermal-vision/internal/infrastructure/storage/sqlite"
	"thermal-vision/internal/infrastructure/vision"
	"thermal-vision/internal/logger"
)

const (
	sessionSweepInterval = time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.NewFileLogger(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AuthPassword == "" {
		appLog.Warning("AUTH_PASSWORD is empty: every sign-in will be rejected")
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		appLog.Error("failed to open history database: %v", err)
		return
	}
	defer db.Close()

	// Сервис детекции
	detector := detectapi.NewClient(cfg.DetectURL, cfg.DetectTimeout, appLog)
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if status, err := detector.Health(checkCtx); err != nil {
		appLog.Warning("detection service is not reachable yet: %v", err)
	} else {
		appLog.Info("detection service: %s (model loaded: %t, mode: %s)", status.Status, status.ModelLoaded, status.ModelMode)
	}
	cancel()

	provider := auth.NewProvider(cfg.AuthPassword, cfg.SessionTTL, appLog)

	appContainer := container.New(container.Deps{
		UserRepo:       storage.NewMemoryUserRepository(),
		Auth:           provider,
		Endpoint:       detector,
		Previewer:      vision.NewImagingPreviewer(cfg.PreviewMaxSide),
		History:        sqlite.NewHistoryRepository(db),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Log:            appLog,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		provider.Run(ctx, sessionSweepInterval)
	}()

	hub := web.NewHub(appLog)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	server := web.NewServer(appContainer, hub, detector, cfg.MaxUploadBytes(), appLog)
	srv := &http.Server{
		Handler:      server.Router(),
		Addr:         cfg.HTTPAddr,
		WriteTimeout: cfg.DetectTimeout + 30*time.Second,
		ReadTimeout:  60 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		appLog.Info("starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("server error: %v", err)
			stop()
		}
	}()

	if cfg.TelegramToken == "" {
		appLog.Warning("TELEGRAM_TOKEN is empty: Telegram bot disabled")
	} else {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, appLog)
		if err != nil {
			appLog.Error("failed to create bot: %v", err)
			stop()
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				appLog.Info("bot is running...")
				if err := bot.Run(ctx); err != nil {
					appLog.Error("bot error: %v", err)
				}
			}()
		}
	}

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server shutdown: %v", err)
	}
	server.Close()

	wg.Wait()
}
