package localstate

import (
	"context"
	"fmt"

	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/db"
	"bakery-storefront/internal/xpkg/logger"
)

// Open builds the store selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config, mylog logger.Logger) (IStore, error) {
	st := cfg.Storage
	switch st.Driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverFile:
		return NewFile(st.Path)
	case config.DriverRedis:
		return NewRedis(ctx, st.RedisURL, st.RedisDB, st.Profile, mylog)
	case config.DriverPostgres:
		pool, err := db.Start(ctx, cfg.DB, mylog)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgres(ctx, pool, st.Profile)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", st.Driver)
	}
}
