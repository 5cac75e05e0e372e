// Package idp provisions staff accounts in the external identity provider
// through its SCIM2 API, authenticating with OAuth2 client credentials.
package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// ErrAccountNotFound is returned when the provider has no account with the
// requested id.
var ErrAccountNotFound = errors.New("identity provider account not found")

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("identity provider is not configured")

// Account is the provider's view of a staff account.
type Account struct {
	ID    string
	Email string
}

// StatusError carries a non-success response from the provider.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("failed to %s, status code: %d", e.Op, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

type Client struct {
	BaseURL     string
	OAuthConfig *clientcredentials.Config
	HTTP        *http.Client
}

func NewClient(baseURL, clientID, clientSecret string, scopes []string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	oauthConfig := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/oauth2/token",
		Scopes:       scopes,
	}

	return &Client{
		BaseURL:     baseURL,
		OAuthConfig: oauthConfig,
		HTTP:        oauthConfig.Client(context.Background()),
	}
}

// Disabled stands in for the provider when none is configured (development
// only). Every call fails with ErrNotConfigured.
type Disabled struct{}

func (Disabled) InviteUser(context.Context, string, string) (*Account, error) {
	return nil, ErrNotConfigured
}

func (Disabled) DeleteUser(context.Context, string) error { return ErrNotConfigured }

func (Disabled) GetUser(context.Context, string) (*Account, error) {
	return nil, ErrNotConfigured
}
