package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tiny-little/royale-web/internal/auth"
	"github.com/tiny-little/royale-web/internal/backend"
	"github.com/tiny-little/royale-web/internal/health"
	"github.com/tiny-little/royale-web/internal/leaderboard"
	"github.com/tiny-little/royale-web/internal/logging"
	"github.com/tiny-little/royale-web/internal/resolutionlog"
	"github.com/tiny-little/royale-web/internal/server"
	"github.com/tiny-little/royale-web/internal/session"
)

// playIdleTimeout is how long a play page's state is kept after the page last
// polled for it
const playIdleTimeout = 2 * time.Hour

type Config struct {
	BindAddr   string `env:"BIND_ADDR"`
	ListenPort uint16 `env:"LISTEN_PORT" default:"5001"`
	AppEnv     string `env:"APP_ENV" default:"development"`

	ApiUrl  string `env:"NEXT_PUBLIC_API_URL" required:"true"`
	GameUrl string `env:"NEXT_PUBLIC_GAME_URL" default:"https://tinylittleroyale.io/"`
	GameId  string `env:"NEXT_PUBLIC_GAME_ID" default:"tiny-little-royale"`
	Branch  string `env:"BRANCH"`

	PublicUrl             string  `env:"PUBLIC_URL" default:"http://localhost:5001"`
	SessionSecret         string  `env:"NEXTAUTH_SECRET"`
	GoogleClientId        string  `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string  `env:"GOOGLE_CLIENT_SECRET"`
	FacebookClientId      string  `env:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret  string  `env:"FACEBOOK_CLIENT_SECRET"`
	LineClientId          string  `env:"LINE_CLIENT_ID"`
	LineClientSecret      string  `env:"LINE_CLIENT_SECRET"`
	TelegramBotToken      string  `env:"TELEGRAM_BOT_TOKEN"`
	CorsOrigins           string  `env:"CORS_ORIGINS"`
	AuthRequestsPerSecond float64 `env:"AUTH_RATE_LIMIT" default:"5"`
	AuthRequestBurst      int     `env:"AUTH_RATE_BURST" default:"20"`

	RedisUrl string `env:"REDIS_URL"`

	DatabaseHost     string `env:"PGHOST"`
	DatabasePort     int    `env:"PGPORT" default:"5432"`
	DatabaseName     string `env:"PGDATABASE"`
	DatabaseUser     string `env:"PGUSER"`
	DatabasePassword string `env:"PGPASSWORD"`
	DatabaseSslMode  string `env:"PGSSLMODE"`

	LogLevel string `env:"LOG_LEVEL" default:"info"`
	LogDir   string `env:"LOG_DIR"`
}

func main() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env file: %v", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	production := config.AppEnv == "production"

	logConfig := logging.DefaultConfig()
	logConfig.Level = config.LogLevel
	logConfig.Dir = config.LogDir
	logger, flush, err := logging.Setup(logConfig, "royale-web")
	if err != nil {
		log.Fatalf("error initializing logger: %v", err)
	}
	defer flush()

	ctx, close := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM)
	defer close()

	backendClient := backend.NewClient(config.ApiUrl)

	// Leaderboards are cached in Redis when it's available, so that every instance
	// shares one copy; otherwise each instance keeps its own
	var cache leaderboard.Cache = leaderboard.NewMemoryCache()
	var checkCache health.CheckFunc
	if config.RedisUrl != "" {
		redisCache, err := leaderboard.NewRedisCache(ctx, config.RedisUrl)
		if err != nil {
			logger.Fatal("Failed to initialize leaderboard cache", zap.Error(err))
		}
		defer redisCache.Close()
		cache = redisCache
		checkCache = redisCache.Ping
	}

	// Resolutions are only recorded when a database is configured
	var recorder session.Recorder
	if config.DatabaseHost != "" {
		connectionString := resolutionlog.FormatConnectionString(
			config.DatabaseHost,
			config.DatabasePort,
			config.DatabaseName,
			config.DatabaseUser,
			config.DatabasePassword,
			config.DatabaseSslMode,
		)
		db, err := sql.Open("postgres", connectionString)
		if err != nil {
			logger.Fatal("Failed to open database", zap.Error(err))
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		resolutions := resolutionlog.New(db)
		if err := resolutions.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare resolution log", zap.Error(err))
		}
		recorder = resolutions
	}

	authServer := auth.NewServer(backendClient, auth.Config{
		PublicURL:        config.PublicUrl,
		SessionSecret:    config.SessionSecret,
		TelegramBotToken: config.TelegramBotToken,
		Production:       production,
		Google:           auth.ProviderCredentials{ClientID: config.GoogleClientId, ClientSecret: config.GoogleClientSecret},
		Facebook:         auth.ProviderCredentials{ClientID: config.FacebookClientId, ClientSecret: config.FacebookClientSecret},
		Line:             auth.ProviderCredentials{ClientID: config.LineClientId, ClientSecret: config.LineClientSecret},
	})
	leaderboardServer := leaderboard.NewServer(backendClient, cache, config.GameId)

	srv := server.New(server.Config{
		GameID:        config.GameId,
		GameURL:       config.GameUrl,
		Branch:        config.Branch,
		Production:    production,
		CORSOrigins:   splitList(config.CorsOrigins),
		AuthRateLimit: rate.Limit(config.AuthRequestsPerSecond),
		AuthRateBurst: config.AuthRequestBurst,
	}, backendClient, authServer, server.Options{
		Auth:        authServer,
		Leaderboard: leaderboardServer,
		Health:      health.NewServer(backendClient.Ping, checkCache),
		Recorder:    recorder,
		Logger:      logger,
	})

	addr := fmt.Sprintf("%s:%d", config.BindAddr, config.ListenPort)
	httpServer := &http.Server{Addr: addr, Handler: srv}

	logger.Info("Listening", zap.String("addr", addr), zap.Bool("production", production))
	wg, wgCtx := errgroup.WithContext(ctx)
	wg.Go(httpServer.ListenAndServe)
	wg.Go(func() error {
		if err := leaderboardServer.Prefetch(wgCtx, leaderboard.DefaultType); err != nil {
			logger.Warn("Failed to prefetch leaderboard", zap.Error(err))
		}
		return nil
	})
	wg.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-wgCtx.Done():
				return nil
			case <-ticker.C:
				if n := srv.Sweep(playIdleTimeout); n > 0 {
					logger.Debug("Closed idle play pages", zap.Int("count", n))
				}
			}
		}
	})

	<-wgCtx.Done()
	logger.Info("Received signal; closing server...")
	// Ends open play-state streams, which Shutdown would otherwise wait on
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)

	err = wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server closed.")
	} else {
		logger.Fatal("Error running server", zap.Error(err))
	}
}

func splitList(s string) []string {
	var values []string
	for _, value := range strings.Split(s, ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}
