package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/db"
)

// openStore connects to the database named by database-url and applies
// pending migrations.
func openStore(ctx context.Context, lg *zap.Logger) (*db.Store, func(), error) {
	if dsn := viper.GetString("database-url"); dsn != "" {
		os.Setenv("DATABASE_URL", dsn)
	}
	pool, err := db.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := db.ApplyMigrations(ctx, pool, lg); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return db.NewStore(pool), pool.Close, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
