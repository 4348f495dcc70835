package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("socialscope.lib.oauth")

// OpenIdToken is the token payload returned by an OAuth2/OpenID token
// endpoint. Platforms that are plain OAuth2 simply leave IdToken empty.
type OpenIdToken struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	IdToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

type AuthCodeRequest struct {
	AccessType   string
	Scope        string
	RedirectUri  string
	CodeVerifier string
	ClientId     string
}

// GetLoginUrl builds the user-facing authorization url for a platform's
// OAuth consent screen.
func GetLoginUrl(ctx context.Context, req AuthCodeRequest, baseLoginUrl string) (string, error) {
	_, span := tracer.Start(ctx, "GetLoginUrl")
	defer span.End()

	endpoint, err := url.Parse(baseLoginUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse base login url")
		return "", err
	}

	values := endpoint.Query()
	values.Add("client_id", req.ClientId)
	values.Add("access_type", req.AccessType)
	values.Add("scope", req.Scope)
	values.Add("code_challenge", req.CodeVerifier)
	values.Add("redirect_uri", req.RedirectUri)

	nonce := make([]byte, 16)
	_, err = rand.Read(nonce)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate 16 random bytes")
		return "", err
	}

	state := hex.EncodeToString(nonce)
	values.Add("state", state)
	values.Add("response_type", "code")

	span.SetAttributes(
		attribute.String("client_id", req.ClientId),
		attribute.String("scope", req.Scope),
		attribute.String("state", state),
	)

	endpoint.RawQuery = values.Encode()

	return endpoint.String(), nil
}

func GenerateCodeVerifier() (string, error) {
	nonce := make([]byte, 32)
	_, err := rand.Read(nonce)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(nonce), nil
}

type ExchangeRequest struct {
	TokenUrl     string
	ClientId     string
	ClientSecret string
	AuthCode     string
	CodeVerifier string
	RedirectUri  string
}

// ExchangeCode trades a freshly obtained authorization code for a
// token. This is the path taken by the OAuth callback handler.
func ExchangeCode(ctx context.Context, client *resty.Client, req ExchangeRequest) (OpenIdToken, error) {
	ctx, span := tracer.Start(ctx, "ExchangeCode")
	defer span.End()

	form := url.Values{}
	form.Add("grant_type", "authorization_code")
	form.Add("client_id", req.ClientId)
	form.Add("code", req.AuthCode)
	form.Add("redirect_uri", req.RedirectUri)
	if req.ClientSecret != "" {
		form.Add("client_secret", req.ClientSecret)
	}
	if req.CodeVerifier != "" {
		form.Add("code_verifier", req.CodeVerifier)
	}

	res, err := client.R().
		SetContext(ctx).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		SetBody(form.Encode()).
		Post(req.TokenUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token endpoint request failed")
		return OpenIdToken{}, err
	}
	if res.StatusCode() >= 400 {
		err := fmt.Errorf("token endpoint returned %d: %s", res.StatusCode(), res.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, "token endpoint rejected exchange")
		return OpenIdToken{}, err
	}

	var token OpenIdToken
	err = json.Unmarshal(res.Body(), &token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize token response")
		return OpenIdToken{}, err
	}

	return token, nil
}

// Refresh performs the refresh-token grant. The upstream response
// usually omits the refresh token, so the original one is carried over.
func Refresh(ctx context.Context, client *resty.Client, original OpenIdToken, refreshUrl, clientId string) (OpenIdToken, error) {
	ctx, span := tracer.Start(ctx, "Refresh")
	defer span.End()

	if original.RefreshToken == "" {
		err := fmt.Errorf("token is not refreshable")
		span.RecordError(err)
		span.SetStatus(codes.Error, "no refresh token")
		return OpenIdToken{}, err
	}

	form := url.Values{}
	form.Add("grant_type", "refresh_token")
	form.Add("client_id", clientId)
	form.Add("scope", original.Scope)
	form.Add("refresh_token", original.RefreshToken)

	res, err := client.R().
		SetContext(ctx).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		SetBody(form.Encode()).
		Post(refreshUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh request failed")
		return OpenIdToken{}, err
	}
	if res.StatusCode() >= 400 {
		err := fmt.Errorf("refresh endpoint returned %d: %s", res.StatusCode(), res.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh rejected")
		return OpenIdToken{}, err
	}

	var refreshed OpenIdToken
	err = json.Unmarshal(res.Body(), &refreshed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize refreshed token")
		return OpenIdToken{}, err
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = original.RefreshToken
	}

	return refreshed, nil
}
