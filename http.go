package gate

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

const (
	// DefaultRejectedRouteKey is the cookie that remembers where a rejected
	// navigation was headed, so a successful sign-in can return there.
	DefaultRejectedRouteKey = "grid78_rejected_route"
	// DefaultRejectedRouteTTL bounds how long a captured route survives.
	DefaultRejectedRouteTTL = 5 * time.Minute
)

// RedirectCapture remembers the route a guard rejection bounced the user
// away from and replays it after authentication. Cookie-scoped, short lived.
type RedirectCapture struct {
	cfg    Config
	Logger Logger
}

// NewRedirectCapture builds the capture helper around HTTP config.
func NewRedirectCapture(cfg Config) *RedirectCapture {
	return &RedirectCapture{
		cfg:    cfg,
		Logger: defLogger{},
	}
}

// SetRedirect stores the originally requested URL before bouncing to login.
func (a *RedirectCapture) SetRedirect(ctx router.Context) {
	rejectedRoute := a.rejectedRouteKey()

	a.Logger.Info("setting redirect cookie %s -> %s", rejectedRoute, ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(DefaultRejectedRouteTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the captured route, falling back to def.
func (a *RedirectCapture) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.rejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return a.rejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

// GetRedirectOrDefault pops the captured route, trying the referer header
// before the configured default.
func (a *RedirectCapture) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := a.rejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = a.rejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RedirectCapture) rejectedRouteKey() string {
	if a.cfg != nil && a.cfg.GetRejectedRouteKey() != "" {
		return a.cfg.GetRejectedRouteKey()
	}
	return DefaultRejectedRouteKey
}

func (a *RedirectCapture) rejectedRouteDefault() string {
	if a.cfg != nil && a.cfg.GetRejectedRouteDefault() != "" {
		return a.cfg.GetRejectedRouteDefault()
	}
	return DefaultRoutes().Dashboard
}

func (a *RedirectCapture) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// RedirectStatus picks the redirect status the way browsers expect: 303 for
// form posts, 302 for plain navigations.
func RedirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
