package acquisition

import (
	"testing"
	"time"

	"socialscope-backend/lib/platforms"

	"github.com/stretchr/testify/require"
)

func TestExposureScoreRange(t *testing.T) {
	low := Analyze(Snapshot{
		Platform:     platforms.Instagram,
		Username:     "hermit",
		Profile:      Profile{FollowerCount: 3, Private: true},
		Completeness: CompletenessComplete,
	})
	high := Analyze(Snapshot{
		Platform: platforms.Instagram,
		Username: "celebrity",
		Profile: Profile{
			FollowerCount: 5_000_000,
			Verified:      true,
			Bio:           "bookings: mgmt@example.com / +1 (555) 123-4567",
		},
		Activity:     Activity{PostsPerWeek: 14},
		Completeness: CompletenessComplete,
	})

	require.GreaterOrEqual(t, low.Analysis.ExposureScore, 0)
	require.LessOrEqual(t, low.Analysis.ExposureScore, 15)
	require.Greater(t, high.Analysis.ExposureScore, 80)
	require.LessOrEqual(t, high.Analysis.ExposureScore, 100)
	require.Greater(t, high.Analysis.ExposureScore, low.Analysis.ExposureScore)
}

func TestExposureScoreExistsOnly(t *testing.T) {
	got := Analyze(Snapshot{
		Platform:     platforms.Instagram,
		Username:     "ghost",
		Completeness: CompletenessExistsOnly,
	})
	require.Equal(t, 0, got.Analysis.ExposureScore)
}

func TestTopicsAreDeterministic(t *testing.T) {
	snapshot := Snapshot{
		Platform: platforms.Instagram,
		Username: "someone",
		Profile:  Profile{Bio: "software developer, coffee addict"},
		Content: []ContentItem{
			{Id: "1", Text: "Beach vacation photo dump"},
			{Id: "2", Text: "New gym PR today"},
		},
		Completeness: CompletenessComplete,
		FetchedAt:    time.Now(),
	}

	first := Analyze(snapshot)
	require.Equal(t, []string{"fitness", "food", "tech", "travel"}, first.Analysis.Topics)
	for i := 0; i < 10; i++ {
		require.Equal(t, first.Analysis.Topics, Analyze(snapshot).Analysis.Topics)
	}
}

func TestSentiment(t *testing.T) {
	neutral := Analyze(Snapshot{
		Content: []ContentItem{{Id: "1", Text: "posted a photo"}},
	})
	require.Equal(t, 1.0, neutral.Analysis.Sentiment["neutral"])

	upbeat := Analyze(Snapshot{
		Content: []ContentItem{
			{Id: "1", Text: "love this amazing city"},
			{Id: "2", Text: "what an awful commute"},
		},
	})
	require.InDelta(t, 2.0/3.0, upbeat.Analysis.Sentiment["positive"], 0.001)
	require.InDelta(t, 1.0/3.0, upbeat.Analysis.Sentiment["negative"], 0.001)
}

func TestConcernsPairWithActions(t *testing.T) {
	got := Analyze(Snapshot{
		Profile: Profile{
			Bio:           "reach me at someone@example.com",
			FollowerCount: 50_000,
		},
		Activity:     Activity{PostsPerWeek: 10},
		Completeness: CompletenessComplete,
	})

	require.Len(t, got.Analysis.PrivacyConcerns, 3)
	require.Len(t, got.Analysis.RecommendedActions, 3)
	require.Contains(t, got.Analysis.PrivacyConcerns, "email address visible in bio")
	require.Contains(t, got.Analysis.PrivacyConcerns, "public profile with a large audience")
	require.Contains(t, got.Analysis.PrivacyConcerns, "very frequent posting reveals daily routine")
}
