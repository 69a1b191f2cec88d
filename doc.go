// Package gate coordinates the client-side authentication lifecycle for the
// Grid78 web application. All durable identity state (accounts, credentials,
// sessions, recovery tokens) lives in an external hosted provider; this
// package owns the in-process reaction to it.
//
// Session lifecycle:
//   - SessionStore is the process-wide holder of the current user/session
//     pair. It has exactly one writer, the Coordinator, which subscribes to
//     the provider's auth-event stream and applies every event in delivery
//     order. Readers (route guard, header, pages) never observe the pair
//     mid-update.
//   - Routes.Decide is the pure route-guard function. It is evaluated fresh
//     on every navigation via middleware/guardware; nothing is cached.
//
// Password recovery:
//   - RecoveryFlow is a small state machine for the reset-password entry
//     point. It validates the one-time token carried in the page URL
//     fragment, drives the password-update call, and schedules a cancellable
//     delayed redirect once the update completes.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Coordinator,
//     the credential-form controller, and the recovery flow. Sinks run
//     best-effort (errors are logged) so you can forward events to a queue
//     or database without blocking authentication.
package gate
