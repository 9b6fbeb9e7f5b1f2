// Package oauth signs principals in through an external OpenID Connect
// provider.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	dErrors "eshop/pkg/domain-errors"
)

//go:generate mockgen -source=oauth.go -destination=mocks/mocks.go -package=mocks Provider

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Identity is what the provider asserts about the signed-in account.
type Identity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Provider is a federated identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Google implements Provider with the authorization code flow.
type Google struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

type Option func(*Google)

// WithEndpoint overrides the authorization and token endpoints.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(g *Google) {
		g.config.Endpoint = e
	}
}

func WithUserInfoURL(url string) Option {
	return func(g *Google) {
		g.userInfoURL = url
	}
}

// WithHTTPClient sets the client used for the token exchange and userinfo.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Google) {
		g.httpClient = c
	}
}

func NewGoogle(clientID, clientSecret, redirectURL string, opts ...Option) *Google {
	g := &Google{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *Google) Exchange(ctx context.Context, code string) (*Identity, error) {
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "Google sign-in failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build userinfo request")
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "Google sign-in failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, dErrors.Wrap(fmt.Errorf("userinfo status %d: %s", resp.StatusCode, body),
			dErrors.CodeUpstream, "Google sign-in failed")
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "Google sign-in failed")
	}
	if identity.Subject == "" || identity.Email == "" {
		return nil, dErrors.New(dErrors.CodeUpstream, "Google account has no email address")
	}
	return &identity, nil
}
