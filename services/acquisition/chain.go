package acquisition

import (
	"context"
	"log/slog"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/keychain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Strategy is one concrete way of retrieving a platform's data for a
// username: an authenticated business API, an OAuth personal API, a
// public unauthenticated scrape. Strategies either produce a normalized
// snapshot or a classified error, never a silent nil.
type Strategy interface {
	Name() string
	// strategies that need a credential are skipped when none is stored
	NeedsCredential() bool
	Attempt(ctx context.Context, username string, cred *keychain.Credential) (*Snapshot, error)
}

// Prober is a cheap existence-only check, consulted after every
// data-bearing strategy has failed so a confirmed-real account is
// reported as degraded instead of missing.
type Prober interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// CredentialSource is the slice of the keychain the chain needs.
type CredentialSource interface {
	GetCredential(ctx context.Context, platform platforms.Platform, allowRefresh bool) (keychain.Credential, bool, error)
	// ForceRefresh refreshes regardless of the recorded expiry, for
	// tokens revoked upstream before they were due to expire.
	ForceRefresh(ctx context.Context, platform platforms.Platform) (keychain.Credential, bool, error)
}

// Chain is the ordered list of strategies for one platform, resolved
// once at startup.
type Chain struct {
	Platform   platforms.Platform
	Strategies []Strategy
	Probe      Prober
}

// Execute walks the strategies strictly in order.
//
// Fallthrough rules, decided from the error classification only:
//   - not_authorized: refresh the credential once, re-attempt the same
//     strategy once, then fall through
//   - rate_limited: abort the whole chain, further strategies would be
//     throttled too
//   - privacy_restricted: terminal, the subject's own settings block us
//   - not_found / service_unavailable / unknown: fall through
//
// On exhaustion the existence probe decides between a minimal
// exists-but-unavailable snapshot and a terminal not_found.
func (c *Chain) Execute(ctx context.Context, username string, creds CredentialSource) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Chain.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("platform", c.Platform.String()),
		attribute.String("username", username),
	)

	for _, strategy := range c.Strategies {
		snapshot, err := c.attempt(ctx, strategy, username, creds)
		if err == nil && snapshot == nil {
			// strategy skipped for lack of a credential
			continue
		}
		if err == nil {
			span.SetAttributes(attribute.String("winning_strategy", strategy.Name()))
			return snapshot, nil
		}

		kind := KindOf(err)
		slog.DebugContext(
			ctx, "strategy failed",
			"platform", c.Platform,
			"strategy", strategy.Name(),
			"kind", kind,
			"err", err,
		)

		switch kind {
		case KindRateLimited:
			span.SetStatus(codes.Error, "chain aborted, upstream rate limited")
			return nil, err
		case KindPrivacyRestricted:
			span.SetStatus(codes.Error, "profile is privacy restricted")
			return nil, err
		}
		// everything else falls through to the next strategy
	}

	if c.Probe != nil {
		exists, err := c.Probe.Exists(ctx, username)
		if err != nil {
			slog.WarnContext(
				ctx, "existence probe failed",
				"platform", c.Platform,
				"err", err,
			)
		}
		if err == nil && exists {
			span.SetAttributes(attribute.Bool("exists_only", true))
			return existsOnlySnapshot(c.Platform, username), nil
		}
	}

	span.SetStatus(codes.Error, "all strategies exhausted")
	return nil, NewError(KindNotFound, "no strategy could locate %q on %s", username, c.Platform)
}

// attempt runs one strategy, handling the credential lookup and the
// single refresh-and-retry a not_authorized failure earns. A (nil, nil)
// return means the strategy was skipped.
func (c *Chain) attempt(ctx context.Context, strategy Strategy, username string, creds CredentialSource) (*Snapshot, error) {
	var cred *keychain.Credential
	if strategy.NeedsCredential() {
		got, ok, err := creds.GetCredential(ctx, c.Platform, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			slog.DebugContext(
				ctx, "skipping strategy, no credential",
				"platform", c.Platform,
				"strategy", strategy.Name(),
			)
			return nil, nil
		}
		cred = &got
	}

	snapshot, err := strategy.Attempt(ctx, username, cred)
	if err == nil {
		return snapshot, nil
	}
	if KindOf(err) != KindNotAuthorized || !strategy.NeedsCredential() {
		return nil, err
	}

	// the upstream rejected a token whose recorded expiry may still be
	// far off (revoked early), so the refresh must not be gated on the
	// expiry: force it, then re-attempt once
	refreshed, ok, refreshErr := creds.ForceRefresh(ctx, c.Platform)
	if refreshErr != nil || !ok {
		return nil, err
	}
	return strategy.Attempt(ctx, username, &refreshed)
}

func existsOnlySnapshot(platform platforms.Platform, username string) *Snapshot {
	snapshot := Snapshot{
		Platform:     platform,
		Username:     username,
		Completeness: CompletenessExistsOnly,
		FetchedVia:   "existence-probe",
		FetchedAt:    timezone.Now(),
	}
	snapshot = Analyze(snapshot)
	return &snapshot
}
