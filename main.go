package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"mindcheck-bot/internal/config"
	"mindcheck-bot/internal/handlers"
	"mindcheck-bot/internal/health"
	"mindcheck-bot/internal/llm"
	"mindcheck-bot/internal/scheduler"
	"mindcheck-bot/internal/session"
	"mindcheck-bot/internal/storage"
	"mindcheck-bot/internal/utils"
)

func main() {
	_ = godotenv.Load() // BOT_TOKEN, OPENROUTER_API_KEY etc.

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	utils.Must(err)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(cfg.DBName)
	utils.Must(err)
	defer db.Close()

	checks := health.NewHandler(5*time.Second).Add("database", db.PingContext)

	var (
		sessions session.Store
		sweeper  session.Sweeper
	)
	if cfg.RedisURL != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		utils.Must(err)
		defer rs.Close()
		sessions = rs
		checks.Add("sessions", rs.Ping)
		slog.Info("sessions stored in redis", "ttl", cfg.SessionTTL)
	} else {
		mem := session.NewMemoryStore(cfg.SessionTTL)
		sessions, sweeper = mem, mem
		slog.Info("sessions stored in memory", "ttl", cfg.SessionTTL)
	}

	ai := llm.New(llm.Config{
		APIKey:  cfg.OpenRouterKey,
		Model:   cfg.OpenRouterModel,
		URL:     cfg.OpenRouterURL,
		Timeout: cfg.LLMTimeout,
		RPS:     cfg.LLMRPS,
		Burst:   cfg.LLMBurst,
	}, logger)
	if !cfg.LLMEnabled() {
		slog.Warn("OPENROUTER_API_KEY not set, analysis uses the offline fallback")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	utils.Must(err)
	slog.Info("authorized", "bot", bot.Self.UserName)

	h := handlers.NewHandler(bot, db, sessions, ai, ai, cfg, logger)

	sched, err := scheduler.New(db, h, sweeper, logger)
	utils.Must(err)
	utils.Must(sched.Start())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           health.NewRouter(checks),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("health server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server failed", "error", err)
			stop()
		}
	}()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := bot.GetUpdatesChan(updateConfig)

	var wg sync.WaitGroup
	slog.Info("bot started")
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case upd, ok := <-updates:
			if !ok {
				break loop
			}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				h.HandleUpdate(ctx, upd)
			}(upd)
		}
	}

	slog.Info("shutting down")
	bot.StopReceivingUpdates()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown", "error", err)
	}
	if err := sched.Shutdown(); err != nil {
		slog.Error("scheduler shutdown", "error", err)
	}
	wg.Wait()
	slog.Info("stopped")
}
