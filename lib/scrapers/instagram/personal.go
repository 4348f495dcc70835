package instagram

import (
	"context"
	"encoding/json"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/restyutil"
	"socialscope-backend/lib/telemetry"
	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/acquisition"
	"socialscope-backend/services/keychain"

	"github.com/go-resty/resty/v2"
)

const DefaultBasicBaseUrl = "https://graph.instagram.com"

// PersonalClient reads through the Basic Display API. It can only ever
// see the account that granted the token, so any other username is a
// miss by this method and the chain falls through to the public scrape.
type PersonalClient struct {
	http *resty.Client
}

func NewPersonalClient(baseUrl string) *PersonalClient {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetTimeout(time.Second * 10)

	telemetry.InstrumentResty(client, "scrapers/instagram/personal")
	restyutil.InstrumentClient(client, nil, restyInstrumentOutput)

	return &PersonalClient{http: client}
}

func (c *PersonalClient) Name() string {
	return "instagram-personal"
}

func (c *PersonalClient) NeedsCredential() bool {
	return true
}

type basicProfile struct {
	Id          string      `json:"id"`
	Username    string      `json:"username"`
	AccountType string      `json:"account_type"`
	MediaCount  int64       `json:"media_count"`
	Error       *graphError `json:"error"`
}

type basicMedia struct {
	Data []struct {
		Id        string `json:"id"`
		Caption   string `json:"caption"`
		MediaType string `json:"media_type"`
		Permalink string `json:"permalink"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
	Error *graphError `json:"error"`
}

func (c *PersonalClient) Attempt(ctx context.Context, username string, cred *keychain.Credential) (*acquisition.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "PersonalClient.Attempt")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "id,username,account_type,media_count").
		SetQueryParam("access_token", cred.AccessToken).
		Get("/me")
	if err != nil {
		return nil, acquisition.WrapError(
			acquisition.KindServiceUnavailable, err,
			"profile request failed",
		)
	}

	var profile basicProfile
	err = json.Unmarshal(res.Body(), &profile)
	if err != nil {
		return nil, acquisition.WrapError(
			acquisition.KindUnknown, err,
			"failed to deserialize profile response",
		)
	}
	if profile.Error != nil {
		return nil, classifyGraphError(res.StatusCode(), profile.Error)
	}

	if profile.Username != username {
		return nil, acquisition.NewError(
			acquisition.KindNotFound,
			"token belongs to %q, cannot read %q through it",
			profile.Username, username,
		)
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "id,caption,media_type,permalink,timestamp").
		SetQueryParam("limit", "24").
		SetQueryParam("access_token", cred.AccessToken).
		Get("/me/media")
	if err != nil {
		return nil, acquisition.WrapError(
			acquisition.KindServiceUnavailable, err,
			"media request failed",
		)
	}

	var media basicMedia
	err = json.Unmarshal(res.Body(), &media)
	if err != nil {
		return nil, acquisition.WrapError(
			acquisition.KindUnknown, err,
			"failed to deserialize media response",
		)
	}
	if media.Error != nil {
		return nil, classifyGraphError(res.StatusCode(), media.Error)
	}

	var content []acquisition.ContentItem
	for _, item := range media.Data {
		if len(content) >= acquisition.MaxContentItems {
			break
		}
		normalized := acquisition.ContentItem{
			Id:   item.Id,
			Kind: kindFromMediaType(item.MediaType),
			Text: item.Caption,
			Url:  item.Permalink,
		}
		postedAt, err := parseMediaTimestamp(item.Timestamp)
		if err == nil {
			normalized.PostedAt = postedAt
		}
		content = append(content, normalized)
	}

	// Basic Display has no follower counts or engagement numbers, a
	// snapshot through it is always partial
	snapshot := acquisition.Snapshot{
		Platform: platforms.Instagram,
		Username: username,
		Profile: acquisition.Profile{
			PostCount: profile.MediaCount,
		},
		Activity:     activityFromContent(content),
		Content:      content,
		Completeness: acquisition.CompletenessPartial,
		FetchedVia:   "instagram-personal",
		FetchedAt:    timezone.Now(),
	}
	snapshot = acquisition.Analyze(snapshot)
	return &snapshot, nil
}
