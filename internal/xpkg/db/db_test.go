package db

import (
	"context"
	"testing"

	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestStart_UnreachableDatabase(t *testing.T) {
	cfg := config.Default().DB
	cfg.Host = "127.0.0.1"
	cfg.Port = "1"

	pool, err := Start(context.Background(), cfg, logger.Discard())
	assert.Nil(t, pool)
	assert.ErrorIs(t, err, apperr.ErrDBConn)
}
