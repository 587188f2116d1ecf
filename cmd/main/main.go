package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	goredis "github.com/redis/go-redis/v9"

	"github.com/chrisklop/mpcrappyturd/internal/game"
	"github.com/chrisklop/mpcrappyturd/internal/gateway"
	"github.com/chrisklop/mpcrappyturd/internal/handlers"
	"github.com/chrisklop/mpcrappyturd/internal/rooms"
	"github.com/chrisklop/mpcrappyturd/internal/store"
	"github.com/chrisklop/mpcrappyturd/pkg/common/env"
)

type Application struct {
	wg       sync.WaitGroup
	cfg      *Config
	logger   *slog.Logger
	store    store.Store
	rooms    *rooms.Manager
	games    *game.Manager
	gateway  *gateway.Gateway
	handlers *handlers.HandlerRepo
	redis    *goredis.Client
}

type Config struct {
	Port     int
	RedisURL string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Error loading .env file: %v", err)
	}

	cfg := &Config{
		Port:     env.GetInt("PORT", 3001),
		RedisURL: env.GetString("REDIS_URL", "redis://localhost:6379"),
	}

	slogHandler := tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug})
	logger := slog.New(slogHandler)
	slog.SetDefault(logger)

	st, redisClient := newStore(cfg, logger)

	roomMgr := rooms.NewManager(st, logger)
	gameMgr := game.NewManager(st, logger)
	hub := gateway.NewHub(logger)
	gw := gateway.New(logger, roomMgr, gameMgr, hub)
	handlerRepo := handlers.NewHandlerRepo(logger, roomMgr, gameMgr)

	app := &Application{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		rooms:    roomMgr,
		games:    gameMgr,
		gateway:  gw,
		handlers: handlerRepo,
		redis:    redisClient,
	}

	if err := app.run(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// newStore connects to redis; if the server is unreachable the process runs on
// the in-memory store instead of refusing to start.
func newStore(cfg *Config, logger *slog.Logger) (store.Store, *goredis.Client) {
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, using in-memory store", "error", err)
		return store.NewMemory(), nil
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory store", "url", cfg.RedisURL, "error", err)
		client.Close()
		return store.NewMemory(), nil
	}

	logger.Info("connected to redis", "url", cfg.RedisURL)
	return store.NewRedis(client), client
}

// startRoomCleanup sweeps abandoned rooms once a minute until ctx is done.
func (app *Application) startRoomCleanup(ctx context.Context) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.rooms.CleanupExpiredRooms(ctx)
			}
		}
	}()
}
