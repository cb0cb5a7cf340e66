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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avoronin/rentdesk/api"
	"github.com/avoronin/rentdesk/config"
	"github.com/avoronin/rentdesk/internal/handler"
	"github.com/avoronin/rentdesk/internal/kafka"
	"github.com/avoronin/rentdesk/internal/logging"
	"github.com/avoronin/rentdesk/internal/registry"
	"github.com/avoronin/rentdesk/internal/relay"
	"github.com/avoronin/rentdesk/internal/store"
	"github.com/avoronin/rentdesk/internal/surface"
	"github.com/avoronin/rentdesk/internal/wizard"
)

// The relay loop, the telegram listener and the intake server all run
// in this one process: the registry's per-booking locking assumes a
// single mutating process.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.Init(os.Getenv("DEBUG") != "")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.NewRedisStore(cfg.Redis)
	defer st.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	reg := registry.New(st, cfg.Booking.Retention(), cfg.Booking.OutcomeTTL(),
		registry.WithProducer(producer, cfg.Kafka.BookingsTopic),
		registry.WithLogger(logger),
	)

	tg, err := surface.NewTelegram(cfg.Telegram.Token, logger)
	if err != nil {
		logger.Fatal("connect telegram", zap.Error(err))
	}

	wiz := wizard.New(reg, wizard.DefaultSteps(), cfg.Wizard.SessionIdle(), cfg.Wizard.MaxSessions, logger)
	actions := handler.New(reg, wiz, tg, cfg.Telegram.ManagerChatID, logger)
	loop := relay.New(reg, tg, cfg.Telegram.ManagerChatID, cfg.Relay.PollInterval(), logger)

	go loop.Start(ctx)
	go tg.Listen(ctx, actions)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.NewIntakeHandler(reg, logger).Register(router.Group("/bookings"))

	srv := &http.Server{Addr: cfg.HTTP.Address, Handler: router}
	go func() {
		logger.Info("intake server started", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("intake server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("intake server shutdown", zap.Error(err))
	}
	logger.Info("shut down")
}
