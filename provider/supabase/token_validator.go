package supabase

import (
	stderrors "errors"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/grid78/go-gate"
)

// AccessClaims are the claims GoTrue puts in its access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// TokenValidator verifies provider-issued access tokens. Projects with an
// asymmetric signing key expose a JWKS endpoint; legacy projects sign with
// a shared HS256 secret.
type TokenValidator struct {
	keyFunc jwt.Keyfunc
	methods []string
	jwks    *keyfunc.JWKS
}

var errTokenInvalid = goerrors.New("invalid access token", goerrors.CategoryAuth).
	WithTextCode("TOKEN_INVALID")

var errTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(gate.TextCodeTokenExpired)

// NewTokenValidator builds a validator from the client config. One of
// JWKSURL (or a provider URL to derive it from) or JWTSecret is required.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	if cfg.JWTSecret != "" {
		secret := []byte(cfg.JWTSecret)
		return &TokenValidator{
			keyFunc: func(_ *jwt.Token) (any, error) { return secret, nil },
			methods: []string{"HS256"},
		}, nil
	}

	if !cfg.Configured() && cfg.JWKSURL == "" {
		return nil, ErrValidatorNotConfigured
	}

	jwks, err := keyfunc.Get(cfg.jwksURL(), keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to fetch provider JWK set")
	}

	return &TokenValidator{
		keyFunc: jwks.Keyfunc,
		methods: []string{"RS256", "ES256"},
		jwks:    jwks,
	}, nil
}

// ErrValidatorNotConfigured signals that neither a JWKS source nor a
// shared secret is available.
var ErrValidatorNotConfigured = goerrors.New(
	"token validator requires a JWKS URL or shared secret",
	goerrors.CategoryOperation,
).WithTextCode("VALIDATOR_NOT_CONFIGURED")

// Validate parses and verifies an access token and returns its claims.
func (v *TokenValidator) Validate(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods(v.methods))
	if err != nil {
		return nil, normalizeValidationError(err)
	}
	if !token.Valid {
		return nil, errTokenInvalid
	}
	return claims, nil
}

// EndBackground stops the JWKS refresh goroutine. No-op for secret-based
// validators.
func (v *TokenValidator) EndBackground() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	clone := errTokenInvalid.Clone()
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		clone = errTokenExpired.Clone()
	}

	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"cause": err.Error(),
	})
}
