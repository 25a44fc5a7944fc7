package cli

import (
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor"
	redisadapter "github.com/aretw0/arbor/pkg/adapters/redis"
)

// NewEngine initializes an arbor engine with standard CLI conventions.
// The returned close function covers both the engine and any backing
// connections; callers must invoke it exactly once.
func NewEngine(profile Profile, logger *slog.Logger, extra ...arbor.Option) (*arbor.Engine, func() error, error) {
	// 1. Options shared by every transport; extras go last so callers win.
	engineOpts := []arbor.Option{
		arbor.WithLogger(logger),
		arbor.WithControlTimeout(profile.Timeout()),
	}

	switch profile.Transport {
	case TransportMemory, "":
		// 2a. Self-contained engine: private bus and stores.
		engine, err := arbor.New(append(engineOpts, extra...)...)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing engine: %w", err)
		}
		return engine, engine.Close, nil

	case TransportRedis:
		// 2b. Shared engine: one client backs the bus, the stores, the
		// result cache and the distributed locker.
		client := backend.NewClient(&backend.Options{
			Addr:     profile.Redis.Addr,
			Password: profile.Redis.Password,
			DB:       profile.Redis.DB,
		})

		store := redisadapter.NewStoreFromClient(client)
		engineOpts = append(engineOpts,
			arbor.WithCommunicator(redisadapter.NewBusFromClient(client)),
			arbor.WithStores(store, store, store),
			arbor.WithCacheStore(redisadapter.NewCacheStoreFromClient(client)),
			arbor.WithLocker(redisadapter.NewLocker(client, "")),
		)

		engine, err := arbor.New(append(engineOpts, extra...)...)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("error initializing engine: %w", err)
		}

		closeAll := func() error {
			err := engine.Close()
			if cerr := client.Close(); err == nil {
				err = cerr
			}
			return err
		}
		return engine, closeAll, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport %q: expected %q or %q", profile.Transport, TransportMemory, TransportRedis)
	}
}
