package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCIDRAllowlist(t *testing.T) {
	nets, err := ParseCIDRAllowlist([]string{"10.0.0.0/8", " 192.168.1.0/24 ", ""})
	require.NoError(t, err)
	assert.Len(t, nets, 2)

	_, err = ParseCIDRAllowlist([]string{"not-a-cidr"})
	assert.Error(t, err)
}

func TestTokenBucketAllow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bucket := &RedisTokenBucket{
		Redis:      client,
		Prefix:     "test",
		Capacity:   2,
		RefillRate: 0.001,
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := bucket.Allow(ctx, "caller")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i)
	}

	ok, err := bucket.Allow(ctx, "caller")
	require.NoError(t, err)
	assert.False(t, ok, "bucket should be drained")

	// Separate keys keep separate buckets.
	ok, err = bucket.Allow(ctx, "other-caller")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenBucketDisabledWithoutClient(t *testing.T) {
	bucket := &RedisTokenBucket{}
	ok, err := bucket.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCorrelationIDGeneratedWhenAbsent(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))
}
