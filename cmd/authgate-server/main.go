package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	authgate "github.com/obsidianbank/authgate"
	"github.com/obsidianbank/authgate/auth0"
	"github.com/obsidianbank/authgate/directory"
	"github.com/obsidianbank/authgate/httpapi"
	"github.com/obsidianbank/authgate/otp"
)

type serverConfig struct {
	ListenAddr string `env:"AUTHGATE_LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"AUTHGATE_LOG_LEVEL" envDefault:"info"`

	RedisAddr     string `env:"AUTHGATE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"AUTHGATE_REDIS_PASSWORD"`
	RedisDB       int    `env:"AUTHGATE_REDIS_DB" envDefault:"0"`

	Auth0Domain          string        `env:"AUTHGATE_AUTH0_DOMAIN,required"`
	Auth0ClientID        string        `env:"AUTHGATE_AUTH0_CLIENT_ID,required"`
	Auth0ClientSecret    string        `env:"AUTHGATE_AUTH0_CLIENT_SECRET,required"`
	Auth0M2MClientID     string        `env:"AUTHGATE_AUTH0_M2M_CLIENT_ID,required"`
	Auth0M2MClientSecret string        `env:"AUTHGATE_AUTH0_M2M_CLIENT_SECRET,required"`
	Auth0Connection      string        `env:"AUTHGATE_AUTH0_CONNECTION" envDefault:"Username-Password-Authentication"`
	Auth0Timeout         time.Duration `env:"AUTHGATE_AUTH0_TIMEOUT" envDefault:"10s"`

	OtpWebhookURL string `env:"AUTHGATE_OTP_WEBHOOK_URL"`

	ShutdownTimeout time.Duration `env:"AUTHGATE_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := env.ParseAs[serverConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration invalid")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg serverConfig, logger zerolog.Logger) error {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return err
	}

	identity, err := auth0.NewClient(auth0.Config{
		Domain:          cfg.Auth0Domain,
		ClientID:        cfg.Auth0ClientID,
		ClientSecret:    cfg.Auth0ClientSecret,
		M2MClientID:     cfg.Auth0M2MClientID,
		M2MClientSecret: cfg.Auth0M2MClientSecret,
		Connection:      cfg.Auth0Connection,
		HTTPTimeout:     cfg.Auth0Timeout,
	}, logger)
	if err != nil {
		return err
	}

	var sender otp.CodeSender
	if cfg.OtpWebhookURL != "" {
		sender = otp.NewWebhookSender(cfg.OtpWebhookURL, cfg.Auth0Timeout, logger)
	} else {
		logger.Warn().Msg("no OTP webhook configured, codes go to the log")
		sender = otp.NewLogSender(logger)
	}

	otpGateway := otp.NewGateway(redisClient, otp.DefaultConfig(), sender, logger)

	engine, err := authgate.New().
		WithRedis(redisClient).
		WithUserDirectory(directory.NewRedisDirectory(redisClient, "")).
		WithOtpGateway(otpGateway).
		WithIdentityGateway(identity).
		WithAuditSink(authgate.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	api := httpapi.NewServer(engine, logger)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("server listening")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
