package oauth

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/fitline/server/pkg/types"
)

const (
	fitbitAuthURL  = "https://www.fitbit.com/oauth2/authorize"
	fitbitTokenURL = "https://api.fitbit.com/oauth2/token"

	healthPlanetAuthURL     = "https://www.healthplanet.jp/oauth/auth"
	healthPlanetTokenURL    = "https://www.healthplanet.jp/oauth/token"
	healthPlanetRedirectURL = "https://www.healthplanet.jp/success.html"
)

var fitbitScopes = []string{"activity", "heartrate", "sleep", "oxygen_saturation", "profile"}

// ClientCredentials configures one provider's OAuth client.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

func (c ClientCredentials) configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// FitbitConfig uses HTTP Basic client authentication.
func FitbitConfig(c ClientCredentials) *oauth2.Config {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = fitbitScopes
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   fitbitAuthURL,
			TokenURL:  fitbitTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// HealthPlanetConfig sends client credentials in the form body.
func HealthPlanetConfig(c ClientCredentials) *oauth2.Config {
	redirect := c.RedirectURL
	if redirect == "" {
		redirect = healthPlanetRedirectURL
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{"innerscan"}
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   healthPlanetAuthURL,
			TokenURL:  healthPlanetTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// OAuth2Endpoint drives token grants through golang.org/x/oauth2.
type OAuth2Endpoint struct {
	Config     *oauth2.Config
	HTTPClient *http.Client
	AuthParams []oauth2.AuthCodeOption
}

func (e *OAuth2Endpoint) withClient(ctx context.Context) context.Context {
	if e.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, e.HTTPClient)
}

func (e *OAuth2Endpoint) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	tok, err := e.Config.TokenSource(e.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, err
	}
	return fromOAuth2(tok), nil
}

func (e *OAuth2Endpoint) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	tok, err := e.Config.Exchange(e.withClient(ctx), code)
	if err != nil {
		return nil, err
	}
	return fromOAuth2(tok), nil
}

func (e *OAuth2Endpoint) AuthCodeURL(state string) string {
	return e.Config.AuthCodeURL(state, e.AuthParams...)
}

func (e *OAuth2Endpoint) Endpoint() Endpoint {
	return Endpoint{Refresh: e.Refresh, Exchange: e.Exchange, AuthCodeURL: e.AuthCodeURL}
}

// NewEndpoints builds an Endpoint for every provider whose client is configured.
func NewEndpoints(fitbit, healthPlanet ClientCredentials, httpClient *http.Client) map[types.Provider]Endpoint {
	endpoints := make(map[types.Provider]Endpoint)
	if fitbit.configured() {
		e := &OAuth2Endpoint{
			Config:     FitbitConfig(fitbit),
			HTTPClient: httpClient,
			AuthParams: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "consent")},
		}
		endpoints[types.ProviderFitbit] = e.Endpoint()
	}
	if healthPlanet.configured() {
		e := &OAuth2Endpoint{
			Config:     HealthPlanetConfig(healthPlanet),
			HTTPClient: httpClient,
		}
		endpoints[types.ProviderHealthPlanet] = e.Endpoint()
	}
	return endpoints
}

func fromOAuth2(tok *oauth2.Token) *TokenResponse {
	res := &TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		res.Scope = scope
	}
	if res.ExpiresIn <= 0 {
		res.ExpiresIn = extraSeconds(tok.Extra("expires_in"))
	}
	if res.ExpiresIn <= 0 && !tok.Expiry.IsZero() {
		res.ExpiresIn = int64(math.Round(time.Until(tok.Expiry).Seconds()))
	}
	return res
}

func extraSeconds(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
