package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBucketExhaustsAndRefills(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	bucket := NewLocalBucket()
	bucket.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "submit", 1, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "take %d should be allowed", i)
	}

	res, err := bucket.Allow(ctx, "submit", 1, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	now = now.Add(2 * time.Second)
	res, err = bucket.Allow(ctx, "submit", 1, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalBucketKeysAreIndependent(t *testing.T) {
	bucket := NewLocalBucket()
	ctx := context.Background()

	res, err := bucket.Allow(ctx, "submit", 1, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = bucket.Allow(ctx, "submit", 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = bucket.Allow(ctx, "search", 1, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
