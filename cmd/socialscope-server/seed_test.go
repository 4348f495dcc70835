package main

import (
	"testing"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/services/keychain"

	"github.com/stretchr/testify/require"
)

func seedByPlatform(seeds []keychain.SeedCredential) map[platforms.Platform]keychain.Credential {
	byPlatform := map[platforms.Platform]keychain.Credential{}
	for _, seed := range seeds {
		byPlatform[seed.Platform] = seed.Credential
	}
	return byPlatform
}

func TestSeedFromEnv(t *testing.T) {
	t.Setenv("INSTAGRAM_ACCESS_TOKEN", "ig-token")
	t.Setenv("INSTAGRAM_REFRESH_TOKEN", "ig-refresh")
	t.Setenv("INSTAGRAM_EXTRA_BUSINESS_ACCOUNT_ID", "17841400000000000")

	seeds := seedByPlatform(seedFromEnv())
	cred, ok := seeds[platforms.Instagram]
	require.True(t, ok)
	require.Equal(t, "ig-token", cred.AccessToken)
	require.Equal(t, "ig-refresh", cred.RefreshToken)
	require.Equal(t, "17841400000000000", cred.Extra["business_account_id"])
	// no expiry in the environment means never-expiring
	require.True(t, cred.ExpiresAt.IsZero())
}

func TestSeedFromEnvExpiry(t *testing.T) {
	t.Setenv("INSTAGRAM_ACCESS_TOKEN", "ig-token")
	t.Setenv("INSTAGRAM_EXPIRES_AT", "2026-10-01T12:00:00Z")
	t.Setenv("TWITTER_ACCESS_TOKEN", "tw-token")
	t.Setenv("TWITTER_EXPIRES_AT", "1790000000")

	seeds := seedByPlatform(seedFromEnv())

	instagram, ok := seeds[platforms.Instagram]
	require.True(t, ok)
	want, err := time.Parse(time.RFC3339, "2026-10-01T12:00:00Z")
	require.NoError(t, err)
	require.Equal(t, want.Unix(), instagram.ExpiresAt.Unix())

	twitter, ok := seeds[platforms.Twitter]
	require.True(t, ok)
	require.Equal(t, int64(1790000000), twitter.ExpiresAt.Unix())

	// a seeded expiry must be visible to the refresh sweep
	require.False(t, instagram.ExpiresAt.IsZero())
	require.False(t, twitter.ExpiresAt.IsZero())
}

func TestSeedFromEnvBadExpiry(t *testing.T) {
	t.Setenv("REDDIT_ACCESS_TOKEN", "rd-token")
	t.Setenv("REDDIT_EXPIRES_AT", "next tuesday")

	seeds := seedByPlatform(seedFromEnv())
	cred, ok := seeds[platforms.Reddit]
	require.True(t, ok)
	// the token is still seeded, just without an expiry
	require.Equal(t, "rd-token", cred.AccessToken)
	require.True(t, cred.ExpiresAt.IsZero())
}
