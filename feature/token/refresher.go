package token

import (
	"context"
	"net/http"
	"strings"

	"channel-manager/core/provider"
	"channel-manager/core/secret"
	"channel-manager/core/utils"

	"golang.org/x/oauth2"
)

// Refresher exchanges a refresh credential for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, creds *secret.Credentials, scopes []string) (*oauth2.Token, error)
}

// OAuthRefresher performs an OAuth2 refresh_token grant against the provider's token URL.
// Without HTTPClient the grant runs with provider.DefaultTimeout.
type OAuthRefresher struct {
	TokenURL   string
	HTTPClient *http.Client
}

func (r *OAuthRefresher) client() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: provider.DefaultTimeout}
}

// Refresh runs the refresh_token grant. The returned token keeps the previous
// refresh token when the provider does not rotate it.
func (r *OAuthRefresher) Refresh(ctx context.Context, creds *secret.Credentials, scopes []string) (*oauth2.Token, error) {
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client())
	// An empty access token is never valid, so the source goes straight to the token endpoint.
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}).Token()
}

func grantedScopes(t *oauth2.Token, fallback []string) []string {
	if s, ok := t.Extra("scope").(string); ok && s != "" {
		return strings.Fields(s)
	}
	return fallback
}

func propertiesCount(t *oauth2.Token) int {
	return utils.ToInt(t.Extra("properties_count"))
}
