package acquisition

import (
	"context"
	"testing"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/ratelimit"
	"socialscope-backend/lib/testutil"
	"socialscope-backend/services/keychain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	config := DefaultConfig()
	config.BackoffBase = time.Millisecond
	config.BackoffMax = time.Millisecond * 4
	return config
}

func setupOrchestrator(t *testing.T, config Config, strategies ...Strategy) (*Service, context.Context) {
	t.Helper()

	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "services/acquisition",
	})
	t.Cleanup(cleanup)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	t.Cleanup(cancel)

	chains := map[platforms.Platform]*Chain{
		platforms.Instagram: {Platform: platforms.Instagram, Strategies: strategies},
	}
	service, err := NewService(ctx, config, &fakeCreds{creds: map[platforms.Platform]keychain.Credential{}}, chains)
	require.NoError(t, err)
	return service, ctx
}

func TestFetchServesFromCache(t *testing.T) {
	want := completeSnapshot(platforms.Instagram, "someone", "public")
	strategy := &fakeStrategy{
		name:      "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){succeedWith(want)},
	}
	service, ctx := setupOrchestrator(t, testConfig(), strategy)

	got, err := service.FetchUserData(ctx, platforms.Instagram, "someone")
	require.NoError(t, err)
	require.Equal(t, want, got)

	// @ prefix normalizes to the same cache entry
	got, err = service.FetchUserData(ctx, platforms.Instagram, "@Someone")
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, int64(1), strategy.attempts.Load())
}

func TestFetchNegativeCache(t *testing.T) {
	strategy := &fakeStrategy{
		name:      "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){failWith(KindNotFound)},
	}
	service, ctx := setupOrchestrator(t, testConfig(), strategy)

	username := testutil.RandomUsername(t)
	_, err := service.FetchUserData(ctx, platforms.Instagram, username)
	require.Error(t, err)
	require.Equal(t, KindNotFound, KindOf(err))

	_, err = service.FetchUserData(ctx, platforms.Instagram, username)
	require.Error(t, err)
	require.Equal(t, KindNotFound, KindOf(err))
	require.Equal(t, int64(1), strategy.attempts.Load())
}

func TestFetchRetriesTransient(t *testing.T) {
	want := completeSnapshot(platforms.Instagram, "someone", "public")
	strategy := &fakeStrategy{
		name: "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){
			failWith(KindServiceUnavailable),
			failWith(KindServiceUnavailable),
			succeedWith(want),
		},
	}
	service, ctx := setupOrchestrator(t, testConfig(), strategy)

	got, err := service.FetchUserData(ctx, platforms.Instagram, "someone")
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, int64(3), strategy.attempts.Load())
}

func TestFetchDoesNotRetryTerminal(t *testing.T) {
	strategy := &fakeStrategy{
		name:      "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){failWith(KindPrivacyRestricted)},
	}
	service, ctx := setupOrchestrator(t, testConfig(), strategy)

	_, err := service.FetchUserData(ctx, platforms.Instagram, "someone")
	require.Error(t, err)
	require.Equal(t, KindPrivacyRestricted, KindOf(err))
	require.Equal(t, int64(1), strategy.attempts.Load())
}

func TestFetchRetriesUnknownOnce(t *testing.T) {
	strategy := &fakeStrategy{
		name:      "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){failWith(KindUnknown)},
	}
	service, ctx := setupOrchestrator(t, testConfig(), strategy)

	_, err := service.FetchUserData(ctx, platforms.Instagram, "someone")
	require.Error(t, err)
	require.Equal(t, KindUnknown, KindOf(err))
	require.Equal(t, int64(2), strategy.attempts.Load())
}

func TestFetchFailureIsNotCached(t *testing.T) {
	want := completeSnapshot(platforms.Instagram, "someone", "public")
	strategy := &fakeStrategy{
		name: "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){
			failWith(KindPrivacyRestricted),
			succeedWith(want),
		},
	}
	service, ctx := setupOrchestrator(t, testConfig(), strategy)

	_, err := service.FetchUserData(ctx, platforms.Instagram, "someone")
	require.Error(t, err)

	// privacy settings change, the next fetch goes upstream again
	got, err := service.FetchUserData(ctx, platforms.Instagram, "someone")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFetchDegradedTtl(t *testing.T) {
	partial := &Snapshot{
		Platform:     platforms.Instagram,
		Username:     "someone",
		Completeness: CompletenessPartial,
		FetchedVia:   "public",
		FetchedAt:    time.Now(),
	}
	strategy := &fakeStrategy{
		name:      "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){succeedWith(partial)},
	}

	config := testConfig()
	config.DegradedTtl = time.Millisecond * 50
	service, ctx := setupOrchestrator(t, config, strategy)

	_, err := service.FetchUserData(ctx, platforms.Instagram, "someone")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 80)

	_, err = service.FetchUserData(ctx, platforms.Instagram, "someone")
	require.NoError(t, err)
	require.Equal(t, int64(2), strategy.attempts.Load())
}

func TestFetchAdmissionTimeout(t *testing.T) {
	strategy := &fakeStrategy{
		name: "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){
			func(*keychain.Credential) (*Snapshot, error) {
				return completeSnapshot(platforms.Instagram, "first", "public"), nil
			},
		},
	}

	config := testConfig()
	config.AdmissionWait = time.Millisecond * 50
	config.RateLimits = map[platforms.Platform]ratelimit.Config{
		platforms.Instagram: {Capacity: 1, Window: time.Hour},
	}
	service, ctx := setupOrchestrator(t, config, strategy)

	_, err := service.FetchUserData(ctx, platforms.Instagram, "first")
	require.NoError(t, err)

	// the bucket is drained for the next hour
	_, err = service.FetchUserData(ctx, platforms.Instagram, "second")
	require.Error(t, err)
	require.Equal(t, KindRateLimited, KindOf(err))
	require.Equal(t, int64(1), strategy.attempts.Load())
}

func TestAggregate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	instagram := &Snapshot{
		Platform:     platforms.Instagram,
		Username:     "someone",
		Profile:      Profile{DisplayName: "Jane Doe", FollowerCount: 100},
		Completeness: CompletenessComplete,
		FetchedVia:   "public",
		FetchedAt:    time.Now(),
	}
	instagram.Analysis = Analysis{
		ExposureScore:   60,
		PrivacyConcerns: []string{"email address visible in bio"},
	}
	twitter := &Snapshot{
		Platform:     platforms.Twitter,
		Username:     "someone",
		Profile:      Profile{DisplayName: "Jane Doe"},
		Completeness: CompletenessComplete,
		FetchedVia:   "public",
		FetchedAt:    time.Now(),
	}
	twitter.Analysis = Analysis{
		ExposureScore:   20,
		PrivacyConcerns: []string{"email address visible in bio", "public profile with a large audience"},
	}

	chains := map[platforms.Platform]*Chain{
		platforms.Instagram: {Platform: platforms.Instagram, Strategies: []Strategy{&fakeStrategy{
			name:      "public",
			responses: []func(*keychain.Credential) (*Snapshot, error){succeedWith(instagram)},
		}}},
		platforms.Twitter: {Platform: platforms.Twitter, Strategies: []Strategy{&fakeStrategy{
			name:      "public",
			responses: []func(*keychain.Credential) (*Snapshot, error){succeedWith(twitter)},
		}}},
		platforms.Reddit: {Platform: platforms.Reddit, Strategies: []Strategy{&fakeStrategy{
			name:      "public",
			responses: []func(*keychain.Credential) (*Snapshot, error){failWith(KindNotFound)},
		}}},
	}
	service, err := NewService(ctx, testConfig(), &fakeCreds{creds: map[platforms.Platform]keychain.Credential{}}, chains)
	require.NoError(t, err)

	result, err := service.Aggregate(ctx, []platforms.Platform{platforms.Instagram, platforms.Twitter, platforms.Reddit}, "someone")
	require.NoError(t, err)
	require.Len(t, result.Results, 3)

	require.NotNil(t, result.Results[0].Snapshot)
	require.NotNil(t, result.Results[1].Snapshot)
	require.Nil(t, result.Results[2].Snapshot)
	require.Equal(t, KindNotFound, result.Results[2].Kind)

	require.Equal(t, 40, result.AverageExposure)
	diff := cmp.Diff([]string{
		"email address visible in bio",
		"public profile with a large audience",
	}, result.Concerns)
	if diff != "" {
		t.Fatal(diff)
	}
	// identical display names
	require.Equal(t, 1.0, result.HandleConsistency)
}

func TestStatuses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	authedOnly := &fakeStrategy{
		name:      "api",
		needsCred: true,
		responses: []func(*keychain.Credential) (*Snapshot, error){failWith(KindNotAuthorized)},
	}
	public := &fakeStrategy{
		name: "public",
		responses: []func(*keychain.Credential) (*Snapshot, error){
			succeedWith(completeSnapshot(platforms.Twitter, "someone", "public")),
		},
	}

	chains := map[platforms.Platform]*Chain{
		platforms.Instagram: {Platform: platforms.Instagram, Strategies: []Strategy{authedOnly}},
		platforms.Twitter:   {Platform: platforms.Twitter, Strategies: []Strategy{public}},
	}
	service, err := NewService(ctx, testConfig(), &fakeCreds{creds: map[platforms.Platform]keychain.Credential{}}, chains)
	require.NoError(t, err)

	statuses := service.Statuses(ctx)
	require.Len(t, statuses, 2)

	// canonical order puts instagram first
	require.Equal(t, platforms.Instagram, statuses[0].Platform)
	require.False(t, statuses[0].Configured)
	require.Equal(t, "no credential connected", statuses[0].Message)

	require.Equal(t, platforms.Twitter, statuses[1].Platform)
	require.True(t, statuses[1].Configured)
	require.True(t, statuses[1].Operational)

	// a successful fetch keeps the platform operational
	_, err = service.FetchUserData(ctx, platforms.Twitter, "someone")
	require.NoError(t, err)
	status := service.ApiStatus(ctx, platforms.Twitter)
	require.True(t, status.Operational)
	require.Equal(t, "ok", status.Message)
}
