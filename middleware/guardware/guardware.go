// Package guardware evaluates the route guard on every navigation. It is
// deliberately thin: the decision itself is gate.Routes.Decide, a pure
// function; this middleware only reads the freshest session snapshot and
// acts on the outcome.
package guardware

import (
	"github.com/goliatone/go-router"
	"github.com/grid78/go-gate"
)

// SessionSource provides the freshest session snapshot. Implemented by
// *gate.SessionStore.
type SessionSource interface {
	Snapshot() gate.Snapshot
}

type Config struct {
	// Source is required: where the snapshot comes from.
	Source SessionSource

	// Routes defaults to gate.DefaultRoutes().
	Routes gate.Routes

	// Filter skips the guard when it returns true (assets, health checks).
	Filter func(router.Context) bool

	// OnRedirect handles a redirect decision. The default captures the
	// rejected route for post-login replay and issues the redirect.
	OnRedirect func(router.Context, gate.Decision) error

	// Redirects captures rejected routes; only used by the default handler.
	Redirects *gate.RedirectCapture
}

// New builds the middleware. The guard runs per request — never cached —
// because the session mutates asynchronously relative to navigation.
func New(config ...Config) router.MiddlewareFunc {
	cfg := getDefaultConfig(config...)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			decision := cfg.Routes.Decide(cfg.Source.Snapshot(), ctx.Path())
			if decision.Allow {
				return ctx.Next()
			}

			return cfg.OnRedirect(ctx, decision)
		}
	}
}

func getDefaultConfig(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Source == nil {
		panic("guardware: missing session source")
	}

	if len(cfg.Routes.Known) == 0 {
		cfg.Routes = gate.DefaultRoutes()
	}

	if cfg.Redirects == nil {
		cfg.Redirects = gate.NewRedirectCapture(nil)
	}

	if cfg.OnRedirect == nil {
		redirects := cfg.Redirects
		login := cfg.Routes.Login
		cfg.OnRedirect = func(ctx router.Context, decision gate.Decision) error {
			if decision.Redirect == login {
				// Remember where the user was headed so a successful
				// sign-in can return there.
				redirects.SetRedirect(ctx)
			}
			return ctx.Redirect(decision.Redirect, gate.RedirectStatus(ctx))
		}
	}

	return cfg
}
