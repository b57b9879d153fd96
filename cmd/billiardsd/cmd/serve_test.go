package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/config"
)

func TestNewIdentityProvider(t *testing.T) {
	t.Run("jwt", func(t *testing.T) {
		p, err := newIdentityProvider(config.IdentityConfig{
			Mode:      config.IdentityModeJWT,
			JWTSecret: strings.Repeat("s", 32),
			JWTIssuer: "billiardsd",
			JWTTTL:    time.Minute,
		})
		require.NoError(t, err)
		assert.IsType(t, &auth.JWTProvider{}, p)
	})

	t.Run("jwt secret too short", func(t *testing.T) {
		_, err := newIdentityProvider(config.IdentityConfig{Mode: config.IdentityModeJWT, JWTSecret: "short"})
		assert.Error(t, err)
	})

	t.Run("oidc", func(t *testing.T) {
		p, err := newIdentityProvider(config.IdentityConfig{Mode: config.IdentityModeOIDC, OIDCIssuer: "https://idp.example.com"})
		require.NoError(t, err)
		assert.IsType(t, &auth.OIDCProvider{}, p)
	})
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		c, err := newCache(ctx, config.CacheConfig{Backend: config.CacheBackendMemory, TTL: time.Minute, MaxEntries: 10}, nil)
		require.NoError(t, err)
		c.Set(ctx, "tables:t1:list:", []byte("[]"), 0)
		_, ok := c.Get(ctx, "tables:t1:list:")
		assert.True(t, ok)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, err := newCache(ctx, config.CacheConfig{
			Backend:   config.CacheBackendRedis,
			TTL:       time.Minute,
			RedisURL:  "redis://" + mr.Addr(),
			KeyPrefix: "test:",
		}, nil)
		require.NoError(t, err)
		c.Set(ctx, "k", []byte("v"), 0)
		assert.True(t, mr.Exists("test:k"))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		_, err := newCache(ctx, config.CacheConfig{Backend: config.CacheBackendRedis, RedisURL: "redis://127.0.0.1:1"}, nil)
		assert.Error(t, err)
	})
}
