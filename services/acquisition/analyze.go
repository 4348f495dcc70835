package acquisition

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Analysis holds the derived privacy/exposure signals attached to a
// snapshot. It is computed locally from the normalized data, no extra
// upstream calls.
type Analysis struct {
	// 0 (invisible) .. 100 (very exposed)
	ExposureScore int `json:"exposure_score"`

	Topics    []string           `json:"topics,omitempty"`
	Sentiment map[string]float64 `json:"sentiment,omitempty"`

	PrivacyConcerns    []string `json:"privacy_concerns,omitempty"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
var phonePattern = regexp.MustCompile(`(\+?\d[\d\s\-().]{7,}\d)`)

var topicKeywords = map[string][]string{
	"travel":   {"travel", "trip", "vacation", "flight", "beach", "hotel"},
	"food":     {"food", "recipe", "restaurant", "dinner", "coffee", "cooking"},
	"fitness":  {"gym", "workout", "running", "fitness", "yoga", "training"},
	"gaming":   {"game", "gaming", "stream", "twitch", "esports"},
	"tech":     {"code", "startup", "software", "developer", "ai", "tech"},
	"family":   {"family", "kids", "baby", "wedding", "birthday"},
	"politics": {"election", "policy", "vote", "government", "protest"},
	"finance":  {"crypto", "stocks", "invest", "trading", "bitcoin"},
}

var positiveWords = []string{
	"love", "great", "happy", "amazing", "awesome", "excited", "best",
	"beautiful", "thankful", "fun",
}
var negativeWords = []string{
	"hate", "awful", "terrible", "angry", "sad", "worst", "annoyed",
	"tired", "broken", "scam",
}

// Analyze computes the derived signals for a snapshot and returns a
// copy with the analysis attached.
func Analyze(snapshot Snapshot) Snapshot {
	var analysis Analysis

	analysis.ExposureScore = exposureScore(snapshot)
	analysis.Topics = topics(snapshot)
	analysis.Sentiment = sentiment(snapshot)
	analysis.PrivacyConcerns, analysis.RecommendedActions = concerns(snapshot)

	snapshot.Analysis = analysis
	return snapshot
}

func exposureScore(s Snapshot) int {
	if s.Completeness == CompletenessExistsOnly {
		return 0
	}

	score := 0.0

	// audience size on a log scale, 1M+ followers saturates at 40
	if s.Profile.FollowerCount > 0 {
		score += math.Min(40, math.Log10(float64(s.Profile.FollowerCount))*40/6)
	}

	if !s.Profile.Private {
		score += 20
	}
	if s.Profile.Verified {
		score += 5
	}

	// posting frequency, 7+ posts a week saturates at 15
	score += math.Min(15, s.Activity.PostsPerWeek*15/7)

	bio := s.Profile.Bio
	if emailPattern.MatchString(bio) {
		score += 10
	}
	if phonePattern.MatchString(bio) {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

func contentText(s Snapshot) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(s.Profile.Bio))
	for _, item := range s.Content {
		sb.WriteString(" ")
		sb.WriteString(strings.ToLower(item.Text))
	}
	return sb.String()
}

func topics(s Snapshot) []string {
	text := contentText(s)

	var matched []string
	for topic, keywords := range topicKeywords {
		for _, keyword := range keywords {
			if strings.Contains(text, keyword) {
				matched = append(matched, topic)
				break
			}
		}
	}
	// map iteration order is random
	sort.Strings(matched)
	return matched
}

func sentiment(s Snapshot) map[string]float64 {
	text := contentText(s)

	var positive, negative float64
	for _, w := range positiveWords {
		positive += float64(strings.Count(text, w))
	}
	for _, w := range negativeWords {
		negative += float64(strings.Count(text, w))
	}

	total := positive + negative
	if total == 0 {
		return map[string]float64{"positive": 0, "negative": 0, "neutral": 1}
	}
	return map[string]float64{
		"positive": positive / total,
		"negative": negative / total,
		"neutral":  0,
	}
}

func concerns(s Snapshot) (concerns []string, actions []string) {
	bio := s.Profile.Bio

	if emailPattern.MatchString(bio) {
		concerns = append(concerns, "email address visible in bio")
		actions = append(actions, "remove the email address from your bio")
	}
	if phonePattern.MatchString(bio) {
		concerns = append(concerns, "phone number visible in bio")
		actions = append(actions, "remove the phone number from your bio")
	}
	if !s.Profile.Private && s.Profile.FollowerCount > 10_000 {
		concerns = append(concerns, "public profile with a large audience")
		actions = append(actions, "review which posts are visible to non-followers")
	}
	if s.Activity.PostsPerWeek > 7 {
		concerns = append(concerns, "very frequent posting reveals daily routine")
		actions = append(actions, "consider spacing out posts or delaying location-tagged ones")
	}

	return concerns, actions
}
