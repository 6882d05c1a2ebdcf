package credential

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T, services []string, expiresAt *time.Time) *APIKey {
	t.Helper()
	issued, err := Issue()
	require.NoError(t, err)
	key, err := NewAPIKey(uuid.New(), "test key", issued, services, expiresAt)
	require.NoError(t, err)
	return key
}

func TestNewAPIKey(t *testing.T) {
	t.Run("creates active key", func(t *testing.T) {
		key := newTestKey(t, []string{"weather"}, nil)
		assert.True(t, key.IsActive)
		assert.NotEmpty(t, key.KeyDigest)
		assert.NotEmpty(t, key.Prefix)
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		issued, err := Issue()
		require.NoError(t, err)
		_, err = NewAPIKey(uuid.Nil, "name", issued, nil, nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		issued, err := Issue()
		require.NoError(t, err)
		_, err = NewAPIKey(uuid.New(), "", issued, nil, nil)
		assert.Error(t, err)
	})

	t.Run("nil services becomes empty set", func(t *testing.T) {
		key := newTestKey(t, nil, nil)
		assert.NotNil(t, key.AllowedServices)
		assert.Empty(t, key.AllowedServices)
	})
}

func TestAPIKey_IsUsable(t *testing.T) {
	now := time.Now().UTC()

	t.Run("active key without expiry is usable", func(t *testing.T) {
		key := newTestKey(t, nil, nil)
		assert.True(t, key.IsUsable(now))
	})

	t.Run("revoked key is not usable", func(t *testing.T) {
		key := newTestKey(t, nil, nil)
		key.Revoke()
		assert.False(t, key.IsUsable(now))
	})

	t.Run("expired key is not usable even if active", func(t *testing.T) {
		expired := now.Add(-time.Hour)
		key := newTestKey(t, nil, &expired)
		assert.True(t, key.IsActive)
		assert.False(t, key.IsUsable(now))
	})

	t.Run("future expiry is usable", func(t *testing.T) {
		future := now.Add(time.Hour)
		key := newTestKey(t, nil, &future)
		assert.True(t, key.IsUsable(now))
	})
}

func TestAPIKey_AllowsService(t *testing.T) {
	t.Run("empty set allows everything", func(t *testing.T) {
		key := newTestKey(t, []string{}, nil)
		assert.True(t, key.AllowsService("weather"))
		assert.True(t, key.AllowsService("currency"))
	})

	t.Run("non-empty set is a whitelist", func(t *testing.T) {
		key := newTestKey(t, []string{"weather"}, nil)
		assert.True(t, key.AllowsService("weather"))
		assert.False(t, key.AllowsService("currency"))
	})
}

func TestAPIKey_Successor(t *testing.T) {
	expiry := time.Now().UTC().Add(48 * time.Hour)
	key := newTestKey(t, []string{"weather", "currency"}, &expiry)

	issued, err := Issue()
	require.NoError(t, err)
	next := key.Successor(issued)

	assert.Equal(t, key.OwnerID, next.OwnerID)
	assert.Equal(t, key.Name, next.Name)
	assert.Equal(t, key.AllowedServices, next.AllowedServices)
	assert.Equal(t, key.ExpiresAt, next.ExpiresAt)
	assert.True(t, next.IsActive)
	assert.NotEqual(t, key.KeyDigest, next.KeyDigest)
	assert.NotEqual(t, key.ID, next.ID)
}
