// Package supabase is the hosted identity-provider client. It speaks the
// GoTrue HTTP surface (sign-in, sign-up, sign-out, recovery email, user
// update, token refresh) and emits the ordered auth-event stream the gate
// Coordinator subscribes to, the way the provider's browser client does.
//
// The client owns session continuity: the current session is cached through
// a SessionStorage (in-memory by default, bun/sqlite for restarts) and
// refreshed ahead of expiry when auto-refresh is enabled. None of this is
// part of the gate core's contract; it is the provider client's own storage.
//
// Missing configuration (base URL, public API key) is non-fatal: the client
// constructs fine and every call degrades to gate.ErrNotConfigured.
package supabase
