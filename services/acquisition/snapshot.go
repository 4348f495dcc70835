package acquisition

import (
	"time"

	"socialscope-backend/lib/platforms"
)

// Completeness describes how much of a snapshot the winning strategy
// was able to produce.
type Completeness string

const (
	// profile, activity and content are all populated
	CompletenessComplete Completeness = "complete"
	// some sections are missing, usually content items
	CompletenessPartial Completeness = "partial"
	// the account was confirmed real but no data could be read
	CompletenessExistsOnly Completeness = "exists_only"
)

type Profile struct {
	DisplayName    string `json:"display_name,omitempty"`
	Bio            string `json:"bio,omitempty"`
	AvatarUrl      string `json:"avatar_url,omitempty"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	PostCount      int64  `json:"post_count"`
	Verified       bool   `json:"verified"`
	Private        bool   `json:"private"`
}

type Activity struct {
	PostsPerWeek float64   `json:"posts_per_week"`
	LastPostAt   time.Time `json:"last_post_at,omitempty"`
}

type ContentItem struct {
	Id           string    `json:"id"`
	Kind         string    `json:"kind,omitempty"`
	Text         string    `json:"text,omitempty"`
	Url          string    `json:"url,omitempty"`
	PostedAt     time.Time `json:"posted_at,omitempty"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
}

// content lists are bounded, a snapshot is a sample of recent posts,
// not an archive
const MaxContentItems = 24

// Snapshot is the normalized result shape every platform strategy
// produces. It is immutable once built, ownership passes to the cache
// and then to the caller.
type Snapshot struct {
	Platform platforms.Platform `json:"platform"`
	Username string             `json:"username"`

	Profile  Profile       `json:"profile"`
	Activity Activity      `json:"activity"`
	Content  []ContentItem `json:"content,omitempty"`
	Analysis Analysis      `json:"analysis"`

	Completeness Completeness `json:"completeness"`
	FetchedVia   string       `json:"fetched_via"`
	FetchedAt    time.Time    `json:"fetched_at"`
}
