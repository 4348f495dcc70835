package instagram

import (
	"strings"
	"time"

	"socialscope-backend/services/acquisition"
)

// the api emits offsets without a colon, which RFC3339 rejects
const mediaTimestampLayout = "2006-01-02T15:04:05-0700"

func parseMediaTimestamp(text string) (time.Time, error) {
	parsed, err := time.Parse(mediaTimestampLayout, text)
	if err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, text)
}

func kindFromMediaType(mediaType string) string {
	switch strings.ToUpper(mediaType) {
	case "IMAGE":
		return "photo"
	case "VIDEO":
		return "video"
	case "CAROUSEL_ALBUM":
		return "album"
	default:
		return strings.ToLower(mediaType)
	}
}

// activityFromContent estimates posting cadence from the sample of
// recent posts. The rate is posts over the span from the oldest sampled
// post to now, so a long-dormant account scores low even if it once
// posted daily.
func activityFromContent(content []acquisition.ContentItem) acquisition.Activity {
	var newest, oldest time.Time
	count := 0
	for _, item := range content {
		if item.PostedAt.IsZero() {
			continue
		}
		count++
		if newest.IsZero() || item.PostedAt.After(newest) {
			newest = item.PostedAt
		}
		if oldest.IsZero() || item.PostedAt.Before(oldest) {
			oldest = item.PostedAt
		}
	}
	if count == 0 {
		return acquisition.Activity{}
	}

	span := time.Since(oldest)
	if span < time.Hour*24 {
		span = time.Hour * 24
	}
	weeks := span.Hours() / (24 * 7)

	return acquisition.Activity{
		PostsPerWeek: float64(count) / weeks,
		LastPostAt:   newest,
	}
}
