package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/restyutil"
	"socialscope-backend/lib/telemetry"
	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/acquisition"
	"socialscope-backend/services/keychain"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const DefaultPublicBaseUrl = "https://www.instagram.com"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// PublicClient scrapes the public profile page. It needs no credential
// and is the strategy of last resort: the page only exposes headline
// numbers, so its snapshots are always partial.
type PublicClient struct {
	http *resty.Client
}

func NewPublicClient(baseUrl string) (*PublicClient, error) {
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", browserUserAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsed.Hostname()))
	client.SetTimeout(time.Second * 10)

	telemetry.InstrumentResty(client, "scrapers/instagram/public")
	restyutil.InstrumentClient(client, nil, restyInstrumentOutput)

	return &PublicClient{http: client}, nil
}

func (c *PublicClient) Name() string {
	return "instagram-public"
}

func (c *PublicClient) NeedsCredential() bool {
	return false
}

// "1,234 Followers, 56 Following, 78 Posts - ..."
var statsPattern = regexp.MustCompile(`([\d,.]+[KMB]?) Followers, ([\d,.]+[KMB]?) Following, ([\d,.]+[KMB]?) Posts`)

// "... photos and videos from Jane Doe (@janedoe)"
var displayNamePattern = regexp.MustCompile(`from (.+) \(@`)

var privatePattern = regexp.MustCompile(`"is_private"\s*:\s*true`)
var biographyPattern = regexp.MustCompile(`"biography"\s*:\s*("(?:[^"\\]|\\.)*")`)

func (c *PublicClient) Attempt(ctx context.Context, username string, _ *keychain.Credential) (*acquisition.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "PublicClient.Attempt")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get("/" + url.PathEscape(username) + "/")
	if err != nil {
		return nil, acquisition.WrapError(
			acquisition.KindServiceUnavailable, err,
			"profile page request failed",
		)
	}

	switch {
	case res.StatusCode() == 404:
		return nil, acquisition.NewError(
			acquisition.KindNotFound,
			"profile page for %q does not exist", username,
		)
	case res.StatusCode() == 429:
		return nil, acquisition.NewError(
			acquisition.KindRateLimited,
			"profile page scrape is being throttled",
		)
	case res.StatusCode() >= 500:
		return nil, acquisition.NewError(
			acquisition.KindServiceUnavailable,
			"profile page returned %d", res.StatusCode(),
		)
	}

	// anonymous access being bounced to the login wall means the page
	// is not publicly readable
	finalUrl := res.RawResponse.Request.URL
	if strings.Contains(finalUrl.Path, "/accounts/login") || strings.Contains(finalUrl.Path, "/challenge") {
		return nil, acquisition.NewError(
			acquisition.KindPrivacyRestricted,
			"profile page for %q redirects to the login wall", username,
		)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, acquisition.WrapError(
			acquisition.KindUnknown, err,
			"failed to parse profile page",
		)
	}

	description := doc.Find(`meta[property="og:description"]`).AttrOr("content", "")
	if description == "" {
		return nil, acquisition.NewError(
			acquisition.KindUnknown,
			"profile page for %q has no og:description", username,
		)
	}

	profile := acquisition.Profile{
		AvatarUrl: doc.Find(`meta[property="og:image"]`).AttrOr("content", ""),
		Private:   privatePattern.Match(res.Body()),
	}

	groups := statsPattern.FindStringSubmatch(description)
	if groups != nil {
		profile.FollowerCount = parseCount(groups[1])
		profile.FollowingCount = parseCount(groups[2])
		profile.PostCount = parseCount(groups[3])
	}
	groups = displayNamePattern.FindStringSubmatch(description)
	if groups != nil {
		profile.DisplayName = groups[1]
	}
	bioGroups := biographyPattern.FindSubmatch(res.Body())
	if bioGroups != nil {
		var bio string
		if json.Unmarshal(bioGroups[1], &bio) == nil {
			profile.Bio = bio
		}
	}

	snapshot := acquisition.Snapshot{
		Platform:     platforms.Instagram,
		Username:     username,
		Profile:      profile,
		Completeness: acquisition.CompletenessPartial,
		FetchedVia:   "instagram-public",
		FetchedAt:    timezone.Now(),
	}
	snapshot = acquisition.Analyze(snapshot)
	return &snapshot, nil
}

// parseCount handles the page's abbreviated numbers: "1,234", "10.5K",
// "2M".
func parseCount(text string) int64 {
	text = strings.ReplaceAll(text, ",", "")

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(text, "K"):
		multiplier = 1_000
		text = strings.TrimSuffix(text, "K")
	case strings.HasSuffix(text, "M"):
		multiplier = 1_000_000
		text = strings.TrimSuffix(text, "M")
	case strings.HasSuffix(text, "B"):
		multiplier = 1_000_000_000
		text = strings.TrimSuffix(text, "B")
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return int64(value * float64(multiplier))
}
