package acquisition

import (
	"context"
	"sync"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/ratelimit"
	"socialscope-backend/lib/timezone"
)

// ApiStatus is the operator-facing health summary for one platform.
type ApiStatus struct {
	Platform platforms.Platform `json:"platform"`
	// Configured means the platform can be fetched at all: a valid
	// credential is stored, or the chain has a credential-free strategy.
	Configured bool `json:"configured"`
	// Operational means the most recent upstream outcome was a success.
	Operational bool            `json:"operational"`
	Message     string          `json:"message"`
	RateLimit   ratelimit.Stats `json:"rate_limit"`
}

type outcome struct {
	lastSuccess     time.Time
	lastFailure     time.Time
	lastFailureKind Kind
}

// healthTracker remembers the most recent success and failure per
// platform, which is all the status surface needs.
type healthTracker struct {
	mu       sync.Mutex
	outcomes map[platforms.Platform]*outcome
}

func newHealthTracker() *healthTracker {
	return &healthTracker{outcomes: map[platforms.Platform]*outcome{}}
}

// record classifies a fetch outcome. A confirmed miss or a privacy
// block means the upstream answered us, so both count as healthy.
func (h *healthTracker) record(platform platforms.Platform, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	o, ok := h.outcomes[platform]
	if !ok {
		o = &outcome{}
		h.outcomes[platform] = o
	}

	if err == nil {
		o.lastSuccess = timezone.Now()
		return
	}
	switch KindOf(err) {
	case KindNotFound, KindPrivacyRestricted:
		o.lastSuccess = timezone.Now()
	default:
		o.lastFailure = timezone.Now()
		o.lastFailureKind = KindOf(err)
	}
}

func (h *healthTracker) get(platform platforms.Platform) outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.outcomes[platform]
	if !ok {
		return outcome{}
	}
	return *o
}

// ApiStatus reports whether a platform is usable right now and why not
// if it is not.
func (s *Service) ApiStatus(ctx context.Context, platform platforms.Platform) ApiStatus {
	status := ApiStatus{
		Platform:  platform,
		RateLimit: s.limits.Stats(platform),
	}

	chain, ok := s.chains[platform]
	if !ok {
		status.Message = "platform is not wired up"
		return status
	}

	hasValid := s.creds.HasValid(ctx, platform)
	for _, strategy := range chain.Strategies {
		if !strategy.NeedsCredential() || hasValid {
			status.Configured = true
			break
		}
	}
	if !status.Configured {
		if s.creds.Exists(ctx, platform) {
			status.Message = "stored credential is expired and could not be refreshed"
		} else {
			status.Message = "no credential connected"
		}
		return status
	}

	o := s.health.get(platform)
	if !o.lastFailure.IsZero() && o.lastFailure.After(o.lastSuccess) {
		status.Message = o.lastFailureKind.UserMessage()
		return status
	}

	status.Operational = true
	status.Message = "ok"
	return status
}

// Statuses reports every wired platform in the canonical order.
func (s *Service) Statuses(ctx context.Context) []ApiStatus {
	var statuses []ApiStatus
	for _, platform := range platforms.All() {
		if _, ok := s.chains[platform]; !ok {
			continue
		}
		statuses = append(statuses, s.ApiStatus(ctx, platform))
	}
	return statuses
}
