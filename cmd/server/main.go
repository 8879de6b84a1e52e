package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greenscreen-pictures/kiosk/internal/admin"
	"github.com/greenscreen-pictures/kiosk/internal/clock"
	"github.com/greenscreen-pictures/kiosk/internal/config"
	"github.com/greenscreen-pictures/kiosk/internal/handler"
	"github.com/greenscreen-pictures/kiosk/internal/history"
	"github.com/greenscreen-pictures/kiosk/internal/kv/backend"
	"github.com/greenscreen-pictures/kiosk/internal/ordernum"
	"github.com/greenscreen-pictures/kiosk/internal/photomatch"
	"github.com/greenscreen-pictures/kiosk/internal/router"
	"github.com/greenscreen-pictures/kiosk/internal/service"
	"github.com/greenscreen-pictures/kiosk/internal/session"
	"github.com/greenscreen-pictures/kiosk/internal/watchdog"
	"github.com/greenscreen-pictures/kiosk/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := backend.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Printf("ERROR: close store: %v", err)
		}
	}()

	hub := ws.NewHub()
	go hub.Run(ctx)

	logger := log.Default()
	numbers := ordernum.New(store, clock.Real{}, logger)
	orders := history.New(store, logger)
	orders.OnChange(func() {
		hub.Publish(ws.TopicAdmin, ws.EventOrderHistoryUpdated, map[string]int64{"at": time.Now().UnixMilli()})
	})

	machine := session.New(numbers, clock.Real{})
	finalizer := service.NewOrderService(orders, clock.Real{}, cfg.ReceiptDelay, logger)

	var sessions *handler.SessionHandler
	dog := watchdog.New(cfg.IdleTimeout, cfg.WarningTimeout, cfg.ActivityDebounce,
		func(remaining time.Duration) { sessions.Warn(remaining) },
		func() { sessions.Expire() },
	)
	defer dog.Disarm()
	sessions = handler.NewSessionHandler(machine, finalizer, hub, dog)

	r := router.New(cfg, router.Deps{
		Machine:  machine,
		History:  orders,
		Counter:  numbers,
		Matcher:  photomatch.New(orders),
		Gate:     admin.NewGate(cfg.AdminPassword),
		Sessions: sessions,
		Hub:      hub,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	}
	<-drained
	log.Println("Server stopped")
	return nil
}
