// Package acquisition turns "fetch this person's footprint on that
// platform" into a normalized snapshot, surviving upstream flakiness
// with ordered strategy fallback, admission control, retries and a TTL
// result cache.
package acquisition

import (
	"context"
	"fmt"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/ratelimit"
	"socialscope-backend/lib/resultcache"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("socialscope.services.acquisition")
var meter = otel.Meter("socialscope.services.acquisition")

// Keychain is the credential surface the orchestrator needs, satisfied
// by *keychain.Service.
type Keychain interface {
	CredentialSource
	HasValid(ctx context.Context, platform platforms.Platform) bool
	Exists(ctx context.Context, platform platforms.Platform) bool
}

type Config struct {
	// CacheSize bounds the result cache, oldest entries are evicted.
	CacheSize int
	// CompleteTtl is how long a complete snapshot stays cached.
	CompleteTtl time.Duration
	// DegradedTtl is the shorter lifetime of partial and exists-only
	// snapshots, so a recovered upstream is retried sooner.
	DegradedTtl time.Duration
	// NegativeTtl is how long a confirmed-absent username is remembered.
	NegativeTtl time.Duration
	// AdmissionWait bounds how long a fetch waits for a rate limit slot.
	AdmissionWait time.Duration
	// BackoffBase and BackoffMax shape the retry delay, which doubles
	// from base up to max.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	RateLimits map[platforms.Platform]ratelimit.Config
}

func DefaultConfig() Config {
	limits := map[platforms.Platform]ratelimit.Config{}
	for _, platform := range platforms.All() {
		limits[platform] = ratelimit.Config{Capacity: 30, Window: time.Minute}
	}
	return Config{
		CacheSize:     4096,
		CompleteTtl:   time.Hour,
		DegradedTtl:   time.Minute * 10,
		NegativeTtl:   time.Minute * 5,
		AdmissionWait: time.Second * 15,
		BackoffBase:   time.Second,
		BackoffMax:    time.Second * 8,
		RateLimits:    limits,
	}
}

// cached distinguishes a stored snapshot from a remembered miss.
type cached struct {
	snapshot *Snapshot
	notFound bool
}

type Service struct {
	config Config
	chains map[platforms.Platform]*Chain
	creds  Keychain
	limits *ratelimit.Registry
	cache  *resultcache.Cache[cached]

	executor failsafe.Executor[*Snapshot]
	health   *healthTracker

	fetchCounter metric.Int64Counter
}

func NewService(ctx context.Context, config Config, creds Keychain, chains map[platforms.Platform]*Chain) (*Service, error) {
	fetchCounter, err := meter.Int64Counter(
		"acquisition_fetch_total",
		metric.WithDescription("The total amount of upstream fetches that produced a snapshot."),
	)
	if err != nil {
		return nil, err
	}

	cache, err := resultcache.New[cached](config.CacheSize)
	if err != nil {
		return nil, err
	}

	// rate limit admission failures and upstream throttling/outages are
	// retried with doubling backoff; anything unclassified earns exactly
	// one blind retry before it is surfaced
	transientRetry := retrypolicy.NewBuilder[*Snapshot]().
		WithBackoff(config.BackoffBase, config.BackoffMax).
		WithJitterFactor(0.1).
		WithMaxRetries(2).
		HandleIf(func(_ *Snapshot, err error) bool {
			return err != nil && KindOf(err).Transient()
		}).
		Build()
	unknownRetry := retrypolicy.NewBuilder[*Snapshot]().
		WithMaxRetries(1).
		HandleIf(func(_ *Snapshot, err error) bool {
			return err != nil && KindOf(err) == KindUnknown
		}).
		Build()

	return &Service{
		config:       config,
		chains:       chains,
		creds:        creds,
		limits:       ratelimit.NewRegistry(ctx, config.RateLimits),
		cache:        cache,
		executor:     failsafe.With(transientRetry, unknownRetry),
		health:       newHealthTracker(),
		fetchCounter: fetchCounter,
	}, nil
}

func cacheKey(platform platforms.Platform, username string) string {
	return platform.String() + "/" + username
}

// FetchUserData is the single entrypoint for retrieving one username's
// data on one platform. Results are served from the cache when fresh;
// otherwise the platform's strategy chain runs behind admission control
// and a retry policy, and the outcome (including a confirmed miss) is
// cached with a completeness-dependent lifetime.
func (s *Service) FetchUserData(ctx context.Context, platform platforms.Platform, username string) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "FetchUserData")
	defer span.End()

	username = platforms.NormalizeUsername(platform, username)
	span.SetAttributes(
		attribute.String("platform", platform.String()),
		attribute.String("username", username),
	)

	chain, ok := s.chains[platform]
	if !ok {
		return nil, fmt.Errorf("no fetch chain registered for platform %q", platform)
	}
	if username == "" {
		return nil, NewError(KindNotFound, "empty username")
	}

	key := cacheKey(platform, username)
	if hit, ok := s.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		if hit.notFound {
			return nil, NewError(KindNotFound, "no profile with username %q on %s", username, platform)
		}
		return hit.snapshot, nil
	}

	snapshot, err := s.fetch(ctx, chain, username)
	s.health.record(platform, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if KindOf(err) == KindNotFound {
			s.cache.Set(key, cached{notFound: true}, s.config.NegativeTtl)
		}
		return nil, err
	}

	ttl := s.config.DegradedTtl
	if snapshot.Completeness == CompletenessComplete {
		ttl = s.config.CompleteTtl
	}
	s.cache.Set(key, cached{snapshot: snapshot}, ttl)
	s.fetchCounter.Add(ctx, 1)

	return snapshot, nil
}

// fetch runs the whole chain as one retryable unit. Each attempt waits
// for its own rate limit slot; a slot that does not open up within the
// admission bound counts as upstream throttling.
func (s *Service) fetch(ctx context.Context, chain *Chain, username string) (*Snapshot, error) {
	return s.executor.WithContext(ctx).Get(func() (*Snapshot, error) {
		admitCtx, cancel := context.WithTimeout(ctx, s.config.AdmissionWait)
		defer cancel()
		err := s.limits.Admit(admitCtx, chain.Platform)
		if err != nil {
			return nil, WrapError(KindRateLimited, err, "timed out waiting for a request slot")
		}
		return chain.Execute(ctx, username, s.creds)
	})
}

// Invalidate drops one cached result so the next fetch goes upstream.
func (s *Service) Invalidate(platform platforms.Platform, username string) {
	username = platforms.NormalizeUsername(platform, username)
	s.cache.Remove(cacheKey(platform, username))
}

func (s *Service) CacheStats() resultcache.Stats {
	return s.cache.Stats()
}
