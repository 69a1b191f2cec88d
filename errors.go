package gate

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeRecoveryLinkInvalid marks the terminal recovery-link error state.
	TextCodeRecoveryLinkInvalid = "RECOVERY_LINK_INVALID"
	// TextCodeNotConfigured marks calls degraded by missing provider config.
	TextCodeNotConfigured = "NOT_CONFIGURED"
	// TextCodeTokenExpired marks an access token past its expiry.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
)

// ErrNoActiveSession is returned when an operation needs a session and none is set.
var ErrNoActiveSession = errors.New("no active session")

// ErrStreamClosed is returned when subscribing to a closed event stream.
var ErrStreamClosed = errors.New("auth event stream closed")

// ErrRecoveryLinkInvalid is the terminal recovery-link error. Distinct from
// provider call errors: the only remedy is requesting a new link.
var ErrRecoveryLinkInvalid = goerrors.New(
	"Lien de réinitialisation invalide ou expiré",
	goerrors.CategoryValidation,
).WithTextCode(TextCodeRecoveryLinkInvalid).WithCode(goerrors.CodeBadRequest)

// ErrNotConfigured signals that the provider base URL or public key is
// missing. Startup stays alive; every provider call fails with this.
var ErrNotConfigured = goerrors.New(
	"identity provider is not configured",
	goerrors.CategoryOperation,
).WithTextCode(TextCodeNotConfigured)

// IsTokenExpiredError will check for expired provider tokens. Rich errors
// carry the text code; raw jwt parse errors are matched on their message.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTokenExpired
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsRecoveryLinkError reports whether err is the terminal recovery-link error.
func IsRecoveryLinkError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeRecoveryLinkInvalid
	}
	return false
}

// IsNotConfiguredError reports whether err is the degraded-config error.
func IsNotConfiguredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeNotConfigured
	}
	return false
}

// ProviderMessage extracts the user-facing message for a provider call
// failure. The provider's own text is surfaced verbatim; wrapped rich
// errors keep their message.
func ProviderMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}
