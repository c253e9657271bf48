package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

func newOAuth2Config(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       strings.Fields(cfg.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.ProviderURL + cfg.AuthorizePath,
			TokenURL: cfg.ProviderURL + cfg.TokenPath,
			// Credentials go in the form body, not basic auth.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizeURL builds the provider login URL. An empty state is omitted.
func (c *Controller) AuthorizeURL(state string) string {
	return c.oauth2.AuthCodeURL(state, oauth2.SetAuthURLParam("audience", c.cfg.Audience))
}

// Exchange trades an authorization code for an access token under the
// configured exchange timeout.
func (c *Controller) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrMissingCode
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)

	token, err := c.oauth2.Exchange(ctx, code)
	if err != nil {
		return "", classifyExchangeError(err)
	}
	if token.AccessToken == "" {
		return "", ErrMissingAccessToken
	}
	return token.AccessToken, nil
}

func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: provider status %d", ErrNetworkFailure, status)
		}
		if retrieveErr.ErrorCode != "" {
			return fmt.Errorf("%w: %s", ErrExchangeRejected, retrieveErr.ErrorCode)
		}
		return fmt.Errorf("%w: provider status %d", ErrExchangeRejected, status)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	// Anything else is a 2xx answer we could not use.
	return fmt.Errorf("%w: %v", ErrMissingAccessToken, err)
}
