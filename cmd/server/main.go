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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/api"
	"github.com/david/tender-matcher/internal/app"
	"github.com/david/tender-matcher/internal/auth"
	"github.com/david/tender-matcher/internal/db"
	"github.com/david/tender-matcher/internal/ingest"
	"github.com/david/tender-matcher/internal/logger"
)

func main() {
	_ = godotenv.Load()

	lg, err := logger.New(os.Getenv("LOG_JSON") == "true", os.Getenv("LOG_DEBUG") == "true")
	if err != nil {
		log.Fatalf("creating a logger: %v", err)
	}
	defer lg.Sync()
	zap.ReplaceGlobals(lg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(os.Getenv("POLICY_FILE"), lg)
	if err != nil {
		lg.Fatal("loading policy", zap.Error(err))
	}

	pool, err := db.Connect(ctx)
	if err != nil {
		lg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, lg); err != nil {
		lg.Fatal("migration failed", zap.Error(err))
	}

	store := db.NewStore(pool)
	fetcher := ingest.NewCollyFetcher(lg.Named("fetcher"))
	ingester := ingest.NewIngester(components.Pipeline, store, store, fetcher, lg.Named("ingest"))

	srv := api.NewServer(api.Deps{
		Store:     store,
		Auth:      auth.NewService(auth.NewPGUserStore(pool)),
		Ingester:  ingester,
		Extractor: components.Extractor,
		Engine:    components.Engine,
		Advisor:   components.Advisor,
		Log:       lg.Named("api"),
	})

	go func() {
		lg.Info("server starting", zap.String("port", port))
		if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown failed", zap.Error(err))
	}
}
