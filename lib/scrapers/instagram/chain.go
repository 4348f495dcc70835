package instagram

import (
	"context"
	"time"

	"socialscope-backend/lib/oauth"
	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/telemetry"
	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/acquisition"
	"socialscope-backend/services/keychain"

	"github.com/go-resty/resty/v2"
)

const DefaultRefreshUrl = "https://api.instagram.com/oauth/access_token"

type Options struct {
	GraphBaseUrl  string
	BasicBaseUrl  string
	PublicBaseUrl string
	RefreshUrl    string
}

func (o *Options) fillDefaults() {
	if o.GraphBaseUrl == "" {
		o.GraphBaseUrl = DefaultGraphBaseUrl
	}
	if o.BasicBaseUrl == "" {
		o.BasicBaseUrl = DefaultBasicBaseUrl
	}
	if o.PublicBaseUrl == "" {
		o.PublicBaseUrl = DefaultPublicBaseUrl
	}
	if o.RefreshUrl == "" {
		o.RefreshUrl = DefaultRefreshUrl
	}
}

// NewChain assembles the platform's fetch chain, ordered most- to
// least-capable, plus the refresher the keychain should use for its
// credential.
func NewChain(opts Options) (*acquisition.Chain, *Refresher, error) {
	opts.fillDefaults()

	public, err := NewPublicClient(opts.PublicBaseUrl)
	if err != nil {
		return nil, nil, err
	}
	probe, err := NewProber(opts.PublicBaseUrl)
	if err != nil {
		return nil, nil, err
	}

	chain := &acquisition.Chain{
		Platform: platforms.Instagram,
		Strategies: []acquisition.Strategy{
			NewGraphClient(opts.GraphBaseUrl),
			NewPersonalClient(opts.BasicBaseUrl),
			public,
		},
		Probe: probe,
	}
	return chain, NewRefresher(opts.RefreshUrl), nil
}

// Refresher performs the refresh-token grant for the platform's stored
// credential. The client id rides along in the credential's auxiliary
// data so the refresher itself stays stateless.
type Refresher struct {
	http       *resty.Client
	refreshUrl string
}

func NewRefresher(refreshUrl string) *Refresher {
	client := resty.New()
	client.SetTimeout(time.Second * 10)

	telemetry.InstrumentResty(client, "scrapers/instagram/refresh")

	return &Refresher{http: client, refreshUrl: refreshUrl}
}

func (r *Refresher) Refresh(ctx context.Context, current keychain.Credential) (keychain.Credential, error) {
	ctx, span := tracer.Start(ctx, "Refresher.Refresh")
	defer span.End()

	token, err := oauth.Refresh(ctx, r.http, oauth.OpenIdToken{
		AccessToken:  current.AccessToken,
		RefreshToken: current.RefreshToken,
		Scope:        current.Extra["scope"],
	}, r.refreshUrl, current.Extra["client_id"])
	if err != nil {
		return keychain.Credential{}, err
	}

	refreshed := keychain.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Extra:        current.Extra,
	}
	if token.ExpiresIn > 0 {
		refreshed.ExpiresAt = timezone.Now().Add(time.Second * time.Duration(token.ExpiresIn))
	}
	return refreshed, nil
}
