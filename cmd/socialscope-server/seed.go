package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/keychain"
)

// seedFromEnv reads per-platform credentials from the environment, e.g.
// INSTAGRAM_ACCESS_TOKEN / INSTAGRAM_REFRESH_TOKEN plus any number of
// INSTAGRAM_EXTRA_* keys (INSTAGRAM_EXTRA_CLIENT_ID becomes the extra
// key "client_id"). INSTAGRAM_EXPIRES_AT optionally carries the token
// expiry as unix seconds or RFC3339; without it the credential is
// treated as never expiring and the sweep daemon leaves it alone.
// Platforms with no access token in the environment are skipped, and
// the keychain never overwrites a stored row with a seeded one.
func seedFromEnv() []keychain.SeedCredential {
	var seeds []keychain.SeedCredential
	for _, platform := range platforms.All() {
		prefix := strings.ToUpper(platform.String()) + "_"

		accessToken := os.Getenv(prefix + "ACCESS_TOKEN")
		if accessToken == "" {
			continue
		}

		var expiresAt time.Time
		if raw := os.Getenv(prefix + "EXPIRES_AT"); raw != "" {
			parsed, err := parseExpiry(raw)
			if err != nil {
				slog.Warn(
					"ignoring unparseable credential expiry",
					"var", prefix+"EXPIRES_AT",
					"err", err,
				)
			} else {
				expiresAt = parsed
			}
		}

		extra := map[string]string{}
		for _, pair := range os.Environ() {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || !strings.HasPrefix(key, prefix+"EXTRA_") {
				continue
			}
			name := strings.ToLower(strings.TrimPrefix(key, prefix+"EXTRA_"))
			extra[name] = value
		}

		seeds = append(seeds, keychain.SeedCredential{
			Platform: platform,
			Credential: keychain.Credential{
				AccessToken:  accessToken,
				RefreshToken: os.Getenv(prefix + "REFRESH_TOKEN"),
				ExpiresAt:    expiresAt,
				Extra:        extra,
			},
		})
	}
	return seeds
}

func parseExpiry(value string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).In(timezone.Location), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.In(timezone.Location), nil
}
