package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Johnnypoon1024917/TripWeaver-sub000/api"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/budget"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/config"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/eventlogger"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/migrations"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/session"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/trip"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		printErrorAndExit("loading config", err)
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		printErrorAndExit("database connection", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := migrations.Up(db.DB); err != nil {
			printErrorAndExit("migrating database", err)
		}
	}

	evtlogger := eventlogger.NewSqlEventLogger(db.DB)
	worker := eventlogger.NewWorker(evtlogger, cfg.EventBufferSize)
	worker.Start()
	defer worker.Shutdown()

	server := api.NewServer(trip.NewRepository(db), budget.NewRepository(db), worker)
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Routes(session.NewRepository(db)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("server starting", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		stop()
	}
	<-shutdownDone
	slog.Info("server stopped")
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}
