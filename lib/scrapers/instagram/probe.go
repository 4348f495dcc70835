package instagram

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"socialscope-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// Prober answers "does this username exist at all" from the profile
// page status code, without parsing anything. It backstops the chain
// when every data-bearing strategy has failed.
type Prober struct {
	http *resty.Client
}

func NewProber(baseUrl string) (*Prober, error) {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", browserUserAgent)
	client.SetTimeout(time.Second * 10)

	telemetry.InstrumentResty(client, "scrapers/instagram/probe")

	return &Prober{http: client}, nil
}

func (p *Prober) Exists(ctx context.Context, username string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Prober.Exists")
	defer span.End()

	res, err := p.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/" + url.PathEscape(username) + "/")
	if err != nil {
		return false, err
	}
	defer res.RawBody().Close()

	switch {
	case res.StatusCode() == 404:
		return false, nil
	case res.StatusCode() < 400:
		// the login wall still answers 200 for real usernames
		return true, nil
	default:
		return false, fmt.Errorf("existence probe got status %d", res.StatusCode())
	}
}
