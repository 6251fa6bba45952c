package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	cart := &domain.Cart{
		UserID: userID,
		Lines: []domain.CartLine{
			{ProductID: productID, Quantity: 2},
		},
		UpdatedAt: time.Now(),
	}

	cartJSON, _ := json.Marshal(cart)
	mr.Set(cacheKey(userID), string(cartJSON))

	result, err := cache.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	assert.Len(t, result.Lines, 1)
	assert.Equal(t, productID, result.Lines[0].ProductID)
	assert.Equal(t, 2, result.Lines[0].Quantity)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := uuid.New()
	err := mr.Set(cacheKey(userID), `{"user_id":`)
	require.NoError(t, err)

	_, cacheError := cache.Get(context.Background(), userID)
	require.ErrorContains(t, cacheError, "unmarshal cart failed")
}

func TestSet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := uuid.New()
	cart := &domain.Cart{
		UserID: userID,
		Lines: []domain.CartLine{
			{ProductID: uuid.New(), Quantity: 5},
		},
		UpdatedAt: time.Now(),
	}

	err := cache.Set(context.Background(), userID, cart)
	require.NoError(t, err)

	stored, e2 := mr.Get(cacheKey(userID))
	require.NoError(t, e2)
	assert.NotEmpty(t, stored)

	var storedCart domain.Cart
	err = json.Unmarshal([]byte(stored), &storedCart)
	require.NoError(t, err)
	assert.Equal(t, userID, storedCart.UserID)
	assert.Len(t, storedCart.Lines, 1)
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := uuid.New()
	cart := &domain.Cart{UserID: userID}

	err := cache.Set(context.Background(), userID, cart)
	require.NoError(t, err)

	// miniredis tracks TTL; base is 15m with up to 5m jitter
	ttl := mr.TTL(cacheKey(userID))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.LessOrEqual(t, ttl, 20*time.Minute)
}

func TestDelete_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := uuid.New()
	cartJSON, _ := json.Marshal(&domain.Cart{UserID: userID})
	mr.Set(cacheKey(userID), string(cartJSON))
	assert.True(t, mr.Exists(cacheKey(userID)))

	err := cache.Delete(context.Background(), userID)
	require.NoError(t, err)

	assert.False(t, mr.Exists(cacheKey(userID)))
}

func TestDelete_NonExistentKey(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	err := cache.Delete(context.Background(), uuid.New())
	assert.NoError(t, err)
}

func TestCacheKey_Format(t *testing.T) {
	userID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "cart:11111111-2222-3333-4444-555555555555", cacheKey(userID))
}
