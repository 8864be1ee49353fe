package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/classyapps/securechat/internal/buildinfo"
	"github.com/classyapps/securechat/internal/cli"
	"github.com/classyapps/securechat/internal/config"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/docstore/memory"
	"github.com/classyapps/securechat/internal/docstore/postgres"
	"github.com/classyapps/securechat/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stderr)

	var store docstore.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pg, err := postgres.NewStore(ctx, cfg.DatabaseDSN, rdb, logger)
		if err != nil {
			log.Fatalf("store init: %v", err)
		}
		defer pg.Close()
		store = pg
	case config.BackendMemory:
		store = memory.NewStore()
	default:
		log.Fatalf("unknown store backend %q", cfg.StoreBackend)
	}

	app := cli.NewApp(cfg, store, logger)
	app.Run(ctx)
}
