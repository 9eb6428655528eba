// Package audit delivers security events (logins, logouts, password
// changes, revocations) to a sink without blocking the request path.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, go-log, no-op).
//   - [Dispatcher]: buffered async relay, drop-if-full or block-if-full.
//   - [Event]: timestamp, type, user, session, IP, outcome, metadata.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the session manager does that.
//   - Import authcore or any sibling internal package.
//   - Record passwords, hashes or session tokens.
package audit
