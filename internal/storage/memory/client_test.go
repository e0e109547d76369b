package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.SetSession(ctx, "tok-1", "user-1", time.Hour))

	got, err := c.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got)

	got, err = c.GetSession(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, got, "unknown token resolves to no user, not an error")

	require.NoError(t, c.DeleteSession(ctx, "tok-1"))
	got, err = c.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionExpiry(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.SetSession(ctx, "tok", "user", -time.Second))
	got, err := c.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, got, "expired sessions must not resolve")
}

func TestLoginRateLimit(t *testing.T) {
	c := New()
	ctx := context.Background()

	for i := 0; i < loginRateLimitMax; i++ {
		ok, err := c.CheckLoginRateLimit(ctx, "a@example.com")
		require.NoError(t, err)
		assert.True(t, ok, fmt.Sprintf("attempt %d should be allowed", i+1))
	}

	ok, err := c.CheckLoginRateLimit(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok, "attempts past the window cap must be rejected")

	// A different email has its own window.
	ok, err = c.CheckLoginRateLimit(ctx, "b@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}
