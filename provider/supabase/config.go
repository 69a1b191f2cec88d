package supabase

import (
	"net/http"
	"strings"
	"time"

	"github.com/grid78/go-gate"
)

// Config holds the provider client options. URL and AnonKey are the two
// required external values; their absence degrades calls instead of
// failing startup.
type Config struct {
	// URL is the project base URL (e.g. "https://abc.supabase.co").
	URL string

	// AnonKey is the public API key sent with every request.
	AnonKey string

	// JWTSecret enables HS256 validation of provider access tokens.
	JWTSecret string

	// JWKSURL overrides the JWKS endpoint for asymmetric tokens.
	// Default: "{URL}/auth/v1/.well-known/jwks.json".
	JWKSURL string

	// HTTPClient overrides the transport. Default: 10s timeout client.
	HTTPClient *http.Client

	// Storage keeps the session across restarts. Default: in-memory.
	Storage SessionStorage

	// StorageKey namespaces the stored session. Default: "grid78.auth".
	StorageKey string

	// AutoRefresh refreshes the access token ahead of expiry.
	AutoRefresh bool

	// RefreshMargin is how early before expiry a refresh runs.
	// Default: 60 seconds.
	RefreshMargin time.Duration

	// Logger defaults to the gate package logger.
	Logger gate.Logger
}

// Configured reports whether both required values are present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.AnonKey) != ""
}

func (c Config) authURL(path string) string {
	return strings.TrimRight(c.URL, "/") + "/auth/v1" + path
}

func (c Config) jwksURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	if strings.TrimSpace(c.URL) == "" {
		return ""
	}
	return c.authURL("/.well-known/jwks.json")
}

func (c Config) storageKey() string {
	if c.StorageKey != "" {
		return c.StorageKey
	}
	return "grid78.auth"
}

func (c Config) refreshMargin() time.Duration {
	if c.RefreshMargin > 0 {
		return c.RefreshMargin
	}
	return 60 * time.Second
}
