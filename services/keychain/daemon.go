package keychain

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/timezone"

	"go.opentelemetry.io/otel/codes"
)

const sweepInterval = time.Hour
const sweepHorizon = time.Hour * 24

// sweepDaemon proactively refreshes credentials expiring within the
// horizon so request latency never pays for a refresh it could have
// avoided.
func (s *Service) sweepDaemon(ctx context.Context) {
	slog.InfoContext(ctx, "start daemon", "task", "refresh expiring credentials", "interval", sweepInterval)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	s.sweepOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.sweepOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "sweepOnce")
	defer span.End()

	horizon := timezone.Now().Add(sweepHorizon)
	rows, err := s.qry.GetExpiringBefore(ctx, horizon.Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list expiring credentials")
		return
	}

	wg := sync.WaitGroup{}
	for _, row := range rows {
		platform, err := platforms.Parse(row.Platform)
		if err != nil {
			slog.WarnContext(ctx, "stored credential for unknown platform", "platform", row.Platform)
			continue
		}
		cred, err := credentialFromRow(row)
		if err != nil {
			slog.WarnContext(ctx, "stored credential is unreadable", "platform", row.Platform, "err", err)
			continue
		}
		if !cred.Refreshable() {
			continue
		}

		wg.Add(1)
		go func(platform platforms.Platform, cred Credential) {
			defer wg.Done()
			_, err := s.refresh(ctx, platform, cred)
			if err != nil {
				slog.WarnContext(
					ctx, "sweep refresh failed",
					"platform", platform,
					"err", err,
				)
			}
		}(platform, cred)
	}
	wg.Wait()
}
