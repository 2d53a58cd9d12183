package app

import (
	"fmt"
	"time"

	"telnyx-webhooks/internal/common/logging"
	"telnyx-webhooks/internal/redis"
	"telnyx-webhooks/internal/replay"
)

// replayWindow covers every instant at which a captured delivery would still
// pass the timestamp check, plus slack for clock skew between replicas.
func replayWindow(tolerance time.Duration) time.Duration {
	return 2*tolerance + time.Minute
}

func (app *App) initializeReplay() error {
	if !app.Config.ReplayEnabled {
		app.Logger.Info("Replay protection: disabled")
		return nil
	}

	storeConfig := replay.DefaultConfig()
	storeConfig.Type = replay.Type(app.Config.ReplayBackend)

	if storeConfig.Type == replay.TypeRedis {
		if err := app.initializeRedis(); err != nil {
			return err
		}
		storeConfig.RedisClient = app.RedisClient
	}

	store, err := replay.New(storeConfig)
	if err != nil {
		return err
	}

	window := replayWindow(app.Verifier.Config().Tolerance)
	app.Guard = replay.NewGuard(store, window)

	app.Logger.Info("Replay protection: enabled",
		logging.String("backend", string(storeConfig.Type)),
		logging.Duration("window", window),
	)
	return nil
}

func (app *App) initializeRedis() error {
	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", app.Config.RedisAddress, err)
	}

	app.RedisClient = client
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}
