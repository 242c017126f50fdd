// Package checkin coordinates authentication and attendance check-in state
// for school attendance client applications.
//
// Session lifecycle:
//   - SessionStore owns the current identity, the backend user profile, and a
//     ReadinessState derived from both. It subscribes to identity provider
//     auth-state events and drives a fixed transition table, so protected
//     surfaces can gate rendering on a single snapshot instead of juggling
//     provider callbacks.
//   - Evaluate maps a store snapshot plus required roles onto a render
//     decision (loading, login redirect, unauthorized redirect, or allow).
//
// Token refresh:
//   - RefreshCoordinator serializes credential refreshes: any number of
//     requests failing with 401 at the same time share one forced-fresh token
//     request, and every waiter observes the same outcome. Transport plugs the
//     coordinator into an http.Client so replay happens transparently.
//
// Attendance:
//   - ScanCoordinator manages class selection, the QR decoder session, scan
//     submission, and a bounded log of recent check-ins.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by SessionStore and
//     ScanCoordinator for login, registration, sign-out, and scan events.
//     Sinks run best-effort (errors are logged) so you can forward events
//     without blocking the session flow.
package checkin
