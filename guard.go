package gate

import "strings"

// Decision is the outcome of a route-guard evaluation.
type Decision struct {
	Allow    bool
	Redirect string
}

// Allowed is the decision that lets the navigation proceed.
func Allowed() Decision {
	return Decision{Allow: true}
}

// RedirectTo is the decision that sends the user elsewhere.
func RedirectTo(path string) Decision {
	return Decision{Redirect: path}
}

// Routes declares the application route table the guard decides against.
type Routes struct {
	Root      string
	Login     string
	Signup    string
	Dashboard string

	// Protected paths require an authenticated session.
	Protected []string
	// PreAuth paths are left behind after a successful sign-in.
	PreAuth []string
	// Known is the full declared route set; anything else is catch-all.
	Known []string
}

// DefaultRoutes returns the Grid78 route table.
func DefaultRoutes() Routes {
	return Routes{
		Root:      "/",
		Login:     "/login",
		Signup:    "/signup",
		Dashboard: "/dashboard",
		Protected: []string{"/dashboard", "/profile"},
		PreAuth:   []string{"/", "/login", "/signup"},
		Known: []string{
			"/", "/login", "/signup",
			"/forgot-password", "/reset-password",
			"/dashboard", "/profile",
		},
	}
}

// IsProtected reports whether path requires authentication.
func (r Routes) IsProtected(path string) bool {
	return containsPath(r.Protected, path)
}

// IsPreAuth reports whether path is a pre-auth page.
func (r Routes) IsPreAuth(path string) bool {
	return containsPath(r.PreAuth, path)
}

// IsKnown reports whether path is a declared route.
func (r Routes) IsKnown(path string) bool {
	return containsPath(r.Known, path)
}

// Decide is the route guard: a pure function from (session, requested path)
// to allow/redirect. It must be re-evaluated on every navigation — the
// session mutates asynchronously relative to navigation, so a one-time
// check at startup would go stale.
//
// Rules, in order: protected and unauthenticated redirects to login; the
// root path always redirects to dashboard (it is never rendered directly);
// unknown paths redirect to dashboard when authenticated, login otherwise;
// everything else is allowed.
func (r Routes) Decide(snap Snapshot, requestedPath string) Decision {
	path := normalizePath(requestedPath)

	if r.IsProtected(path) && !snap.Authenticated() {
		return RedirectTo(r.Login)
	}

	if path == r.Root {
		return RedirectTo(r.Dashboard)
	}

	if !r.IsKnown(path) {
		if snap.Authenticated() {
			return RedirectTo(r.Dashboard)
		}
		return RedirectTo(r.Login)
	}

	return Allowed()
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		path = "/"
	}
	return path
}

func containsPath(set []string, path string) bool {
	for _, p := range set {
		if p == path {
			return true
		}
	}
	return false
}
