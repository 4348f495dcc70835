package keychain

import (
	"context"
	"log/slog"

	"socialscope-backend/lib/platforms"
)

type SeedCredential struct {
	Platform   platforms.Platform
	Credential Credential
}

// Seed pre-populates the store from environment-provided credentials
// at process start. A platform that already has a stored row is left
// alone, environment values never clobber a refreshed credential that
// survived a restart.
func (s *Service) Seed(ctx context.Context, seeds []SeedCredential) error {
	ctx, span := tracer.Start(ctx, "Seed")
	defer span.End()

	for _, seed := range seeds {
		if seed.Credential.AccessToken == "" {
			continue
		}
		if s.Exists(ctx, seed.Platform) {
			slog.InfoContext(
				ctx, "skipping seed, credential already stored",
				"platform", seed.Platform,
			)
			continue
		}
		err := s.SetCredential(ctx, seed.Platform, seed.Credential)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "seeded credential", "platform", seed.Platform)
	}

	return nil
}
