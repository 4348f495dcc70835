package keychain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/testutil"
	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/keychain/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type fakeRefresher struct {
	calls atomic.Int64
	delay time.Duration
	fail  bool
}

func (f *fakeRefresher) Refresh(ctx context.Context, current Credential) (Credential, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return Credential{}, fmt.Errorf("upstream token endpoint said no")
	}
	return Credential{
		AccessToken:  "refreshed-" + current.AccessToken,
		RefreshToken: current.RefreshToken,
		ExpiresAt:    timezone.Now().Add(time.Hour),
		Extra:        current.Extra,
	}, nil
}

func TestCredentialRoundtrip(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	_, ok, err := service.GetCredential(ctx, platforms.Instagram, false)
	require.NoError(t, err)
	require.False(t, ok)

	stored := Credential{
		AccessToken:  "token",
		RefreshToken: "refresh",
		ExpiresAt:    timezone.Now().Add(time.Hour).Truncate(time.Second),
		Extra:        map[string]string{"client_id": "abc", "account_id": "123"},
	}
	err = service.SetCredential(ctx, platforms.Instagram, stored)
	require.NoError(t, err)

	got, ok, err := service.GetCredential(ctx, platforms.Instagram, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, stored.AccessToken, got.AccessToken)
	require.Equal(t, stored.RefreshToken, got.RefreshToken)
	require.Equal(t, stored.ExpiresAt.Unix(), got.ExpiresAt.Unix())
	require.Equal(t, stored.Extra, got.Extra)

	// a restarted process sees the same credential
	restarted, err := NewService(ctx, setup.DB)
	require.NoError(t, err)
	got, ok, err = restarted.GetCredential(ctx, platforms.Instagram, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "token", got.AccessToken)
}

func TestNonExpiringCredential(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	err = service.SetCredential(ctx, platforms.Reddit, Credential{AccessToken: "forever"})
	require.NoError(t, err)

	got, ok, err := service.GetCredential(ctx, platforms.Reddit, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "forever", got.AccessToken)
	require.True(t, service.HasValid(ctx, platforms.Reddit))
}

func TestExpiredWithoutRefresh(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	err = service.SetCredential(ctx, platforms.Twitter, Credential{
		AccessToken: "stale",
		ExpiresAt:   timezone.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	_, ok, err := service.GetCredential(ctx, platforms.Twitter, false)
	require.NoError(t, err)
	require.False(t, ok)

	require.False(t, service.HasValid(ctx, platforms.Twitter))
	require.True(t, service.Exists(ctx, platforms.Twitter))
}

func TestSingleFlightRefresh(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	refresher := &fakeRefresher{delay: time.Millisecond * 100}
	service.RegisterRefresher(platforms.Instagram, refresher)

	err = service.SetCredential(ctx, platforms.Instagram, Credential{
		AccessToken:  "old",
		RefreshToken: "refresh",
		ExpiresAt:    timezone.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	const concurrency = 16
	results := make([]Credential, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, ok, err := service.GetCredential(ctx, platforms.Instagram, true)
			require.NoError(t, err)
			require.True(t, ok)
			results[i] = cred
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(1), refresher.calls.Load())
	for _, cred := range results {
		require.Equal(t, "refreshed-old", cred.AccessToken)
	}

	// the refreshed credential was persisted
	stored, ok, err := service.GetCredential(ctx, platforms.Instagram, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refreshed-old", stored.AccessToken)
}

func TestForceRefreshIgnoresExpiry(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	refresher := &fakeRefresher{}
	service.RegisterRefresher(platforms.Instagram, refresher)

	// nowhere near expiring, a plain refreshing read leaves it alone
	err = service.SetCredential(ctx, platforms.Instagram, Credential{
		AccessToken:  "revoked-upstream",
		RefreshToken: "refresh",
		ExpiresAt:    timezone.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	got, ok, err := service.GetCredential(ctx, platforms.Instagram, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "revoked-upstream", got.AccessToken)
	require.Equal(t, int64(0), refresher.calls.Load())

	got, ok, err = service.ForceRefresh(ctx, platforms.Instagram)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refreshed-revoked-upstream", got.AccessToken)
	require.Equal(t, int64(1), refresher.calls.Load())

	// persisted, not just returned
	stored, ok, err := service.GetCredential(ctx, platforms.Instagram, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refreshed-revoked-upstream", stored.AccessToken)
}

func TestForceRefreshWithoutCredential(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	_, ok, err := service.ForceRefresh(ctx, platforms.Twitter)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRefreshFailureKeepsStaleRow(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	service.RegisterRefresher(platforms.Facebook, &fakeRefresher{fail: true})

	err = service.SetCredential(ctx, platforms.Facebook, Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		ExpiresAt:    timezone.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, ok, err := service.GetCredential(ctx, platforms.Facebook, true)
	require.NoError(t, err)
	require.False(t, ok)

	// the stale credential is still reportable
	require.True(t, service.Exists(ctx, platforms.Facebook))
	require.False(t, service.HasValid(ctx, platforms.Facebook))
}

func TestSweepRefreshesExpiring(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	refresher := &fakeRefresher{}
	service.RegisterRefresher(platforms.Instagram, refresher)

	// expires within the 24h sweep horizon
	err = service.SetCredential(ctx, platforms.Instagram, Credential{
		AccessToken:  "soon",
		RefreshToken: "refresh",
		ExpiresAt:    timezone.Now().Add(time.Hour * 2),
	})
	require.NoError(t, err)
	// never expires, must not be touched
	err = service.SetCredential(ctx, platforms.Reddit, Credential{AccessToken: "forever"})
	require.NoError(t, err)

	service.sweepOnce(ctx)

	require.Equal(t, int64(1), refresher.calls.Load())
	got, ok, err := service.GetCredential(ctx, platforms.Instagram, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refreshed-soon", got.AccessToken)
}

func TestSeedDoesNotClobber(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	service, err := NewService(ctx, setup.DB)
	require.NoError(t, err)

	err = service.SetCredential(ctx, platforms.Instagram, Credential{AccessToken: "stored"})
	require.NoError(t, err)

	err = service.Seed(ctx, []SeedCredential{
		{Platform: platforms.Instagram, Credential: Credential{AccessToken: "from-env"}},
		{Platform: platforms.Twitter, Credential: Credential{AccessToken: "tw-env"}},
		{Platform: platforms.Reddit, Credential: Credential{}},
	})
	require.NoError(t, err)

	got, _, err := service.GetCredential(ctx, platforms.Instagram, false)
	require.NoError(t, err)
	require.Equal(t, "stored", got.AccessToken)

	got, ok, err := service.GetCredential(ctx, platforms.Twitter, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tw-env", got.AccessToken)

	// empty access token is skipped
	require.False(t, service.Exists(ctx, platforms.Reddit))
}
