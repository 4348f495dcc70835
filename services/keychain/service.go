package keychain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/services/keychain/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("socialscope.services.keychain")
var meter = otel.Meter("socialscope.services.keychain")

// Refresher is a platform-specific refresh procedure, parameterized by
// the credential's auxiliary data. Implementations live next to each
// platform's strategy chain.
type Refresher interface {
	Refresh(ctx context.Context, current Credential) (Credential, error)
}

type Service struct {
	db  *sql.DB
	qry *db.Queries

	mu         sync.RWMutex
	refreshers map[platforms.Platform]Refresher

	// collapses concurrent refreshes for one platform into one upstream
	// call, all callers observe the same result
	group singleflight.Group

	refreshCounter metric.Int64Counter
}

func NewService(ctx context.Context, database *sql.DB) (*Service, error) {
	refreshCounter, err := meter.Int64Counter(
		"keychain_refresh_total",
		metric.WithDescription("The total amount of times a credential has been refreshed."),
	)
	if err != nil {
		return nil, err
	}

	s := &Service{
		db:             database,
		qry:            db.New(database),
		refreshers:     map[platforms.Platform]Refresher{},
		refreshCounter: refreshCounter,
	}

	go s.sweepDaemon(ctx)

	return s, nil
}

// RegisterRefresher wires a platform's refresh procedure. Called once
// at startup while the chain registry is assembled.
func (s *Service) RegisterRefresher(platform platforms.Platform, refresher Refresher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshers[platform] = refresher
}

func (s *Service) refresher(platform platforms.Platform) (Refresher, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.refreshers[platform]
	return r, ok
}

// GetCredential returns the current credential for a platform, absent
// is signaled by ok=false with a nil error. With allowRefresh, a
// credential that is expired or expiring soon is refreshed first; if
// the refresh fails the stale credential is left stored untouched and
// absent is reported, so status endpoints can still see that a
// credential exists but is invalid.
func (s *Service) GetCredential(ctx context.Context, platform platforms.Platform, allowRefresh bool) (Credential, bool, error) {
	ctx, span := tracer.Start(ctx, "GetCredential")
	defer span.End()
	span.SetAttributes(attribute.String("platform", platform.String()))

	row, err := s.qry.GetCredential(ctx, platform.String())
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read credential")
		return Credential{}, false, err
	}

	cred, err := credentialFromRow(row)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize credential")
		return Credential{}, false, err
	}

	if !cred.ExpiringSoon() {
		return cred, true, nil
	}

	if !allowRefresh {
		if cred.Expired() {
			return Credential{}, false, nil
		}
		return cred, true, nil
	}

	refreshed, err := s.refresh(ctx, platform, cred)
	if err != nil {
		slog.WarnContext(
			ctx, "credential refresh failed",
			"platform", platform,
			"err", err,
		)
		// the stale row stays put so it can still be reported as
		// "exists but invalid" by status endpoints
		return Credential{}, false, nil
	}

	return refreshed, true, nil
}

// ForceRefresh refreshes a platform's credential immediately, even when
// its recorded expiry is still far off. This is the path taken after an
// upstream rejects a token that should still be valid, which happens
// when a token is revoked before its expiry. Like GetCredential, a
// failed refresh reports absent and leaves the stale row stored.
func (s *Service) ForceRefresh(ctx context.Context, platform platforms.Platform) (Credential, bool, error) {
	ctx, span := tracer.Start(ctx, "ForceRefresh")
	defer span.End()
	span.SetAttributes(attribute.String("platform", platform.String()))

	row, err := s.qry.GetCredential(ctx, platform.String())
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read credential")
		return Credential{}, false, err
	}

	cred, err := credentialFromRow(row)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize credential")
		return Credential{}, false, err
	}

	refreshed, err := s.refresh(ctx, platform, cred)
	if err != nil {
		slog.WarnContext(
			ctx, "forced credential refresh failed",
			"platform", platform,
			"err", err,
		)
		return Credential{}, false, nil
	}

	return refreshed, true, nil
}

// SetCredential replaces a platform's credential wholesale and
// persists it before returning.
func (s *Service) SetCredential(ctx context.Context, platform platforms.Platform, cred Credential) error {
	ctx, span := tracer.Start(ctx, "SetCredential")
	defer span.End()
	span.SetAttributes(attribute.String("platform", platform.String()))

	if cred.AccessToken == "" {
		return fmt.Errorf("refusing to store a credential with no access token")
	}

	params, err := rowFromCredential(platform.String(), cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize credential")
		return err
	}
	err = s.qry.UpsertCredential(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist credential")
		return err
	}

	slog.InfoContext(ctx, "stored credential", "platform", platform)
	return nil
}

// Revoke removes a platform's credential entirely. This is the only
// deletion path.
func (s *Service) Revoke(ctx context.Context, platform platforms.Platform) error {
	ctx, span := tracer.Start(ctx, "Revoke")
	defer span.End()
	span.SetAttributes(attribute.String("platform", platform.String()))

	return s.qry.DeleteCredential(ctx, platform.String())
}

func (s *Service) HasValid(ctx context.Context, platform platforms.Platform) bool {
	row, err := s.qry.GetCredential(ctx, platform.String())
	if err != nil {
		return false
	}
	cred, err := credentialFromRow(row)
	if err != nil {
		return false
	}
	return !cred.Expired()
}

// Exists reports whether any credential row is stored for the
// platform, valid or not.
func (s *Service) Exists(ctx context.Context, platform platforms.Platform) bool {
	_, err := s.qry.GetCredential(ctx, platform.String())
	return err == nil
}

// refresh funnels through singleflight so at most one refresh is in
// flight per platform at any time.
func (s *Service) refresh(ctx context.Context, platform platforms.Platform, current Credential) (Credential, error) {
	result, err, _ := s.group.Do(platform.String(), func() (interface{}, error) {
		ctx, span := tracer.Start(ctx, "refresh")
		defer span.End()
		span.SetAttributes(attribute.String("platform", platform.String()))

		refresher, ok := s.refresher(platform)
		if !ok {
			return nil, fmt.Errorf("no refresher registered for platform %q", platform)
		}

		refreshed, err := refresher.Refresh(ctx, current)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upstream refresh failed")
			return nil, err
		}

		params, err := rowFromCredential(platform.String(), refreshed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to serialize refreshed credential")
			return nil, err
		}
		err = s.qry.UpsertCredential(ctx, params)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to persist refreshed credential")
			return nil, err
		}

		s.refreshCounter.Add(ctx, 1)
		slog.InfoContext(ctx, "refreshed credential", "platform", platform)

		return refreshed, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return result.(Credential), nil
}
