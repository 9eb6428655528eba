// Package middleware binds authcore sessions to HTTP requests.
//
// # Components
//
//   - [Sessions]: reads the session cookie, acquires the session through the
//     Manager, stores it in the request context and saves it before the
//     first byte of the response is written.
//   - [TokenCodec]: maps session IDs to cookie values ([PlainCodec] or the
//     jwt-backed [SignedCodec]).
//   - [FromContext] and [RequireAuth]: handler-side access.
//
// A session created for a missing, malformed or unknown cookie gets its
// cookie set before the handler runs, so clients never choose their own
// session ID.
//
// # What this package must NOT do
//
//   - Verify passwords or throttle logins; the Manager does that.
//   - Touch a backend directly.
package middleware
