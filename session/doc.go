// Package session implements the session lifecycle: identifiers, the backend
// contract, the lazy user cache and the dirty-flag-gated session core.
//
// # Lifecycle
//
// [Acquire] loads a session for a presented token or mints a new anonymous one.
// Authentication transitions ([Session.LoginByPassword], [Session.ForceLogin],
// [Session.Logout]) mark the session dirty only when the user identifier
// changes; [Session.Save] writes only dirty sessions.
//
// # Architecture boundaries
//
// This package owns the [Backend] contract but no implementation of it; see
// store/redisstore, store/sqlstore, store/memstore and backend. Cookies,
// headers and token signing belong to the middleware package.
//
// # What this package must NOT do
//
//   - Import authcore, middleware or any store package.
//   - Retry backend errors or turn them into not-found results.
//   - Lock: a Session belongs to one unit of work at a time.
package session
