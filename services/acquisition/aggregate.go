package acquisition

import (
	"context"
	"math"
	"sort"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/textutil"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// PlatformResult is one platform's slice of an aggregate audit, either
// a snapshot or the classified reason there is none.
type PlatformResult struct {
	Platform platforms.Platform `json:"platform"`
	Snapshot *Snapshot          `json:"snapshot,omitempty"`
	Error    string             `json:"error,omitempty"`
	Kind     Kind               `json:"error_kind,omitempty"`
}

type AggregateResult struct {
	Username string           `json:"username"`
	Results  []PlatformResult `json:"results"`

	// AverageExposure averages the exposure scores of the platforms the
	// username was actually found on.
	AverageExposure int `json:"average_exposure"`
	// Concerns is the deduplicated union of every platform's concerns.
	Concerns []string `json:"concerns,omitempty"`
	// HandleConsistency is the lowest pairwise display name similarity
	// across found platforms, 1 when every profile uses the same name.
	// A low value suggests some of the accounts belong to someone else.
	HandleConsistency float64 `json:"handle_consistency"`
}

// Aggregate audits one username across several platforms concurrently.
// Per-platform failures are captured in the result rather than failing
// the whole audit; only context cancellation aborts early.
func (s *Service) Aggregate(ctx context.Context, targets []platforms.Platform, username string) (*AggregateResult, error) {
	ctx, span := tracer.Start(ctx, "Aggregate")
	defer span.End()
	span.SetAttributes(
		attribute.String("username", username),
		attribute.Int("platform_count", len(targets)),
	)

	results := make([]PlatformResult, len(targets))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, platform := range targets {
		i, platform := i, platform
		group.Go(func() error {
			snapshot, err := s.FetchUserData(groupCtx, platform, username)
			if err != nil {
				results[i] = PlatformResult{
					Platform: platform,
					Error:    KindOf(err).UserMessage(),
					Kind:     KindOf(err),
				}
				return groupCtx.Err()
			}
			results[i] = PlatformResult{Platform: platform, Snapshot: snapshot}
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}

	aggregate := &AggregateResult{
		Username: username,
		Results:  results,
	}
	summarize(aggregate)
	return aggregate, nil
}

func summarize(aggregate *AggregateResult) {
	var found []*Snapshot
	for _, result := range aggregate.Results {
		if result.Snapshot != nil {
			found = append(found, result.Snapshot)
		}
	}
	if len(found) == 0 {
		return
	}

	var exposureSum float64
	concernSet := map[string]bool{}
	for _, snapshot := range found {
		exposureSum += float64(snapshot.Analysis.ExposureScore)
		for _, concern := range snapshot.Analysis.PrivacyConcerns {
			concernSet[concern] = true
		}
	}
	aggregate.AverageExposure = int(math.Round(exposureSum / float64(len(found))))

	for concern := range concernSet {
		aggregate.Concerns = append(aggregate.Concerns, concern)
	}
	sort.Strings(aggregate.Concerns)

	aggregate.HandleConsistency = handleConsistency(found)
}

// handleConsistency is the minimum pairwise Jaro-Winkler similarity
// over normalized display names. Profiles with no display name are
// skipped, a single usable name scores 1.
func handleConsistency(found []*Snapshot) float64 {
	var names []string
	for _, snapshot := range found {
		name := textutil.NormalizeName(snapshot.Profile.DisplayName)
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) < 2 {
		return 1
	}

	lowest := 1.0
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			similarity := matchr.JaroWinkler(names[i], names[j], false)
			if similarity < lowest {
				lowest = similarity
			}
		}
	}
	return lowest
}
