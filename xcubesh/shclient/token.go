// Package shclient provides the concrete remote-provider collaborators
// the core depends on only through its narrow CatalogClient and
// TileClient interfaces: OAuth2 client-credentials authentication and
// HTTP clients for the catalog and process APIs.
package shclient

import (
	"context"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Default Sentinel Hub service endpoints.
const (
	DefaultTokenURL   = "https://services.sentinel-hub.com/oauth/token"
	DefaultCatalogURL = "https://services.sentinel-hub.com/api/v1/catalog"
	DefaultProcessURL = "https://services.sentinel-hub.com/api/v1/process"
)

// Credentials is the immutable pair of OAuth2 client credentials used to
// authenticate against the provider. The environment is read exactly
// once, at construction; changing SH_CLIENT_ID/SH_CLIENT_SECRET after
// that has no effect on a live client.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// CredentialsFromEnv reads SH_CLIENT_ID and SH_CLIENT_SECRET.
func CredentialsFromEnv() Credentials {
	return Credentials{
		ClientID:     os.Getenv("SH_CLIENT_ID"),
		ClientSecret: os.Getenv("SH_CLIENT_SECRET"),
	}
}

// NewHTTPClient returns an *http.Client that injects and refreshes an
// OAuth2 client-credentials bearer token on every request. The token
// source caches the token and refreshes it transparently on expiry.
func NewHTTPClient(ctx context.Context, creds Credentials, tokenURL string) *http.Client {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cfg.Client(ctx)
}
