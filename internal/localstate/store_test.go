package localstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bakery-storefront/internal/xpkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func exerciseStore(t *testing.T, s IStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, s, KeyCart, []snapshot{{Name: "truffle", Count: 2}}))
	require.NoError(t, SetJSON(ctx, s, KeyUserID, "u-1"))

	var got []snapshot
	ok, err = GetJSON(ctx, s, KeyCart, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []snapshot{{Name: "truffle", Count: 2}}, got)

	require.NoError(t, SetJSON(ctx, s, KeyCart, []snapshot{}))
	ok, err = GetJSON(ctx, s, KeyCart, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got)

	require.NoError(t, s.Delete(ctx, KeyCart, KeyUserID))
	_, ok, err = s.Get(ctx, KeyUserID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "blob.json")
	s, err := NewFile(path)
	require.NoError(t, err)
	exerciseStore(t, s)

	// state survives reopening the same file
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, s, KeyWishlist, []int64{4, 5}))
	reopened, err := NewFile(path)
	require.NoError(t, err)
	var ids []int64
	ok, err := GetJSON(ctx, reopened, KeyWishlist, &ids)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{4, 5}, ids)
}

func TestFile_RejectsNonJSON(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "blob.json"))
	require.NoError(t, err)
	assert.Error(t, s.Set(context.Background(), KeyCart, []byte("not json")))
}

func TestRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisWithClient(client, "alice", logger.Discard())
	defer s.Close()

	exerciseStore(t, s)

	require.NoError(t, SetJSON(context.Background(), s, KeyUserID, "u-2"))
	assert.True(t, mr.Exists("storefront:alice:userId"))
}

func TestNewRedis_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewRedis(context.Background(), "redis://"+mr.Addr(), 0, "bob", logger.Discard())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestNewRedis_UsesCallerContext(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRedis(ctx, "redis://"+mr.Addr(), 0, "bob", logger.Discard())
	assert.Error(t, err)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("STOREFRONT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	s, err := NewPostgres(ctx, pool, "test-"+t.Name())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}
