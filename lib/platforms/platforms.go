package platforms

import (
	"fmt"
	"strings"
)

// Platform is one external social-media data source. The set is fixed;
// every platform owns exactly one credential slot, one rate-limit
// bucket and one strategy chain.
type Platform string

const (
	Instagram Platform = "instagram"
	Twitter   Platform = "twitter"
	Reddit    Platform = "reddit"
	Facebook  Platform = "facebook"
)

func All() []Platform {
	return []Platform{Instagram, Twitter, Reddit, Facebook}
}

func Parse(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case Instagram, Twitter, Reddit, Facebook:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform: %q", raw)
}

func (p Platform) String() string {
	return string(p)
}

// NormalizeUsername strips the conventional "@" prefix and surrounding
// whitespace. handles are case-insensitive on every platform we talk
// to, reddit only preserves case for display, so everything is folded
// to keep cache keys and credential lookups stable.
func NormalizeUsername(p Platform, raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimPrefix(name, "@")
	if p == Reddit {
		name = strings.TrimPrefix(name, "u/")
	}
	return strings.ToLower(name)
}
