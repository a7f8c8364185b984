package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jasonzli-DEV/fortniteLobbyBot/cosmetics"
	"github.com/jasonzli-DEV/fortniteLobbyBot/epicauth"
	"github.com/jasonzli-DEV/fortniteLobbyBot/gameclient"
	"github.com/jasonzli-DEV/fortniteLobbyBot/internal/config"
	"github.com/jasonzli-DEV/fortniteLobbyBot/internal/postgres"
	"github.com/jasonzli-DEV/fortniteLobbyBot/monitor"
	"github.com/jasonzli-DEV/fortniteLobbyBot/notify"
	"github.com/jasonzli-DEV/fortniteLobbyBot/registry"
	"github.com/jasonzli-DEV/fortniteLobbyBot/server"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
	"github.com/jasonzli-DEV/fortniteLobbyBot/vault"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("service failed")
	}
	log.Info().Msg("service stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogger(c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	credVault, err := vault.New(c.GetEncryptionKey())
	if err != nil {
		return errors.Wrap(err, "vault.New")
	}

	pool, err := postgres.Connect(ctx, c.GetDatabaseURL())
	if err != nil {
		return errors.Wrap(err, "postgres.Connect")
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepo(pool)
	accountRepo := postgres.NewAccountRepo(pool)
	sessionRepo := postgres.NewSessionRepo(pool)
	presetRepo := postgres.NewPresetRepo(pool)

	var redisClient *redis.Client
	if c.GetRedisURL() != "" {
		opts, err := redis.ParseURL(c.GetRedisURL())
		if err != nil {
			return errors.Wrap(err, "redis.ParseURL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, cosmetics cache degraded")
		}
	}

	cosmeticOptions := []cosmetics.Option{}
	if redisClient != nil {
		cosmeticOptions = append(cosmeticOptions, cosmetics.WithRedis(redisClient))
	}
	cosmeticsService := cosmetics.NewService(c.GetCosmeticsAPIURL(), cosmeticOptions...)

	clients, err := epicauth.LoadClients(c.GetEpicClientsPath())
	if err != nil {
		return errors.Wrap(err, "epicauth.LoadClients")
	}
	authService, err := epicauth.NewService(epicauth.NewProvider(epicauth.DefaultEndpoints(), nil), clients)
	if err != nil {
		return errors.Wrap(err, "epicauth.NewService")
	}

	reg := registry.New(registry.Config{
		MaxSessionsPerUser:    c.GetMaxSessionsPerUser(),
		MaxSessionsGlobal:     c.GetMaxSessionsGlobal(),
		DefaultTimeoutMinutes: c.GetDefaultSessionTimeout(),
		ConnectGrace:          c.GetConnectGrace(),
	}, credVault, gameclient.DefaultFactory(), sessionRepo, accountRepo)

	var notifier notify.Notifier = notify.NopNotifier{}
	if c.GetNotifyWebhookURL() != "" {
		notifier = notify.NewWebhookNotifier(c.GetNotifyWebhookURL())
	}

	mon := monitor.New(monitor.Config{
		Interval:         c.GetMonitorInterval(),
		WarningThreshold: time.Duration(c.GetTimeoutWarningThreshold()) * time.Minute,
	}, reg, sessionRepo, notifier)
	go mon.Run(ctx)

	srv := server.New(c.GetPort(), server.Deps{
		Auth:               authService,
		Vault:              credVault,
		Registry:           reg,
		Users:              userRepo,
		Accounts:           accountRepo,
		Sessions:           sessionRepo,
		Cosmetics:          cosmeticsService,
		Presets:            presetRepo,
		MaxAccountsPerUser: c.GetMaxAccountsPerUser(),
		ExtensionMinutes:   c.GetSessionExtensionDuration(),
		MaxExtensions:      c.GetMaxExtensionsPerSession(),
	})
	go listenAndServe(srv)

	waitForStopSignal()
	return shutdown(srv, reg, cancel)
}

func listenAndServe(srv *server.Server) {
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutdown signal received")
}

// shutdown stops inbound traffic first, then the monitor, then every live
// session, so nothing keeps running against a closing store.
func shutdown(srv *server.Server, reg *registry.Registry, cancelMonitor context.CancelFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("server.Shutdown")
	}
	cancelMonitor()

	stopped := reg.StopAll(ctx, sessions.ReasonManual)
	log.Info().Int("stopped", stopped).Msg("live sessions stopped")
	return nil
}

func setupLogger(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
