// Package instagram implements the fetch strategies for instagram: the
// Graph API business discovery lookup, the Basic Display personal API
// and an unauthenticated profile page scrape, ordered most- to
// least-capable.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/restyutil"
	"socialscope-backend/lib/telemetry"
	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/acquisition"
	"socialscope-backend/services/keychain"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/instagram")

const DefaultGraphBaseUrl = "https://graph.facebook.com/v19.0"

// GraphClient looks up arbitrary business/creator accounts through the
// Graph API business_discovery edge. It needs a business credential:
// an access token plus the backing business account id in the
// credential's auxiliary data.
type GraphClient struct {
	http *resty.Client
}

func NewGraphClient(baseUrl string) *GraphClient {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetTimeout(time.Second * 10)

	telemetry.InstrumentResty(client, "scrapers/instagram/graph")
	restyutil.InstrumentClient(client, nil, restyInstrumentOutput)

	return &GraphClient{http: client}
}

func (c *GraphClient) Name() string {
	return "instagram-graph"
}

func (c *GraphClient) NeedsCredential() bool {
	return true
}

type graphError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
}

type graphMedia struct {
	Id            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

type graphDiscovery struct {
	Username          string `json:"username"`
	Name              string `json:"name"`
	Biography         string `json:"biography"`
	ProfilePictureUrl string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	FollowsCount      int64  `json:"follows_count"`
	MediaCount        int64  `json:"media_count"`
	Media             struct {
		Data []graphMedia `json:"data"`
	} `json:"media"`
}

type graphResponse struct {
	BusinessDiscovery *graphDiscovery `json:"business_discovery"`
	Error             *graphError     `json:"error"`
}

const discoveryFields = "business_discovery.username(%s){username,name,biography,profile_picture_url,followers_count,follows_count,media_count,media.limit(%d){id,caption,media_type,permalink,timestamp,like_count,comments_count}}"

func (c *GraphClient) Attempt(ctx context.Context, username string, cred *keychain.Credential) (*acquisition.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "GraphClient.Attempt")
	defer span.End()

	businessId := cred.Extra["business_account_id"]
	if businessId == "" {
		return nil, acquisition.NewError(
			acquisition.KindNotAuthorized,
			"credential has no business account id",
		)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fields", fmt.Sprintf(discoveryFields, username, acquisition.MaxContentItems)).
		SetQueryParam("access_token", cred.AccessToken).
		Get("/" + businessId)
	if err != nil {
		return nil, acquisition.WrapError(
			acquisition.KindServiceUnavailable, err,
			"business discovery request failed",
		)
	}

	var payload graphResponse
	err = json.Unmarshal(res.Body(), &payload)
	if err != nil {
		return nil, acquisition.WrapError(
			acquisition.KindUnknown, err,
			"failed to deserialize business discovery response",
		)
	}

	if payload.Error != nil {
		return nil, classifyGraphError(res.StatusCode(), payload.Error)
	}
	if res.StatusCode() >= 500 {
		return nil, acquisition.NewError(
			acquisition.KindServiceUnavailable,
			"graph api returned %d", res.StatusCode(),
		)
	}
	if payload.BusinessDiscovery == nil {
		return nil, acquisition.NewError(
			acquisition.KindNotFound,
			"business discovery returned nothing for %q", username,
		)
	}

	return snapshotFromDiscovery(username, payload.BusinessDiscovery), nil
}

// classifyGraphError maps the Graph API's error codes onto the fetch
// taxonomy. The codes come from the platform's published error
// reference, anything unlisted is unknown.
func classifyGraphError(status int, apiErr *graphError) *acquisition.Error {
	kind := acquisition.KindUnknown
	switch apiErr.Code {
	case 4, 17, 32, 613:
		kind = acquisition.KindRateLimited
	case 190, 102:
		kind = acquisition.KindNotAuthorized
	case 10:
		kind = acquisition.KindPrivacyRestricted
	case 100:
		// code 100 is a catch-all parameter error, the subcode narrows
		// it to "user not found"
		if apiErr.ErrorSubcode == 2207013 {
			kind = acquisition.KindNotFound
		}
	}
	if kind == acquisition.KindUnknown && status >= 500 {
		kind = acquisition.KindServiceUnavailable
	}

	return acquisition.NewError(
		kind, "graph api error %d/%d: %s",
		apiErr.Code, apiErr.ErrorSubcode, apiErr.Message,
	)
}

func snapshotFromDiscovery(username string, discovery *graphDiscovery) *acquisition.Snapshot {
	var content []acquisition.ContentItem
	for _, media := range discovery.Media.Data {
		if len(content) >= acquisition.MaxContentItems {
			break
		}
		item := acquisition.ContentItem{
			Id:           media.Id,
			Kind:         kindFromMediaType(media.MediaType),
			Text:         media.Caption,
			Url:          media.Permalink,
			LikeCount:    media.LikeCount,
			CommentCount: media.CommentsCount,
		}
		postedAt, err := parseMediaTimestamp(media.Timestamp)
		if err == nil {
			item.PostedAt = postedAt
		}
		content = append(content, item)
	}

	completeness := acquisition.CompletenessComplete
	if len(content) == 0 && discovery.MediaCount > 0 {
		completeness = acquisition.CompletenessPartial
	}

	snapshot := acquisition.Snapshot{
		Platform: platforms.Instagram,
		Username: username,
		Profile: acquisition.Profile{
			DisplayName:    discovery.Name,
			Bio:            discovery.Biography,
			AvatarUrl:      discovery.ProfilePictureUrl,
			FollowerCount:  discovery.FollowersCount,
			FollowingCount: discovery.FollowsCount,
			PostCount:      discovery.MediaCount,
			// business discovery only resolves public business accounts
			Private: false,
		},
		Activity:     activityFromContent(content),
		Content:      content,
		Completeness: completeness,
		FetchedVia:   "instagram-graph",
		FetchedAt:    timezone.Now(),
	}
	snapshot = acquisition.Analyze(snapshot)
	return &snapshot
}
