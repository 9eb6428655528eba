// Package authcore manages authenticated sessions: a session core with a lazy
// user cache, a storage-agnostic backend contract, and argon2id password
// hashing with migration from older algorithms.
//
// Transports build a [Manager] once through [Builder.Build] and call it per
// request: [Manager.Acquire] turns a client token into a session (renewing
// unknown or expired tokens), [Manager.Login] and [Manager.ChangePassword]
// run the credential flows, and [Manager.Save] writes the session back only
// when something changed.
//
// # Architecture boundaries
//
// authcore is the public facade. The session core lives in package session,
// hashing in package password, and storage in store/redisstore,
// store/sqlstore and store/memstore, joined by package backend. Login
// throttling and audit dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Log or audit plaintext passwords, hashes or session tokens.
//   - Tell apart unknown email, missing credential and wrong password.
//   - Save a session that has no unsaved changes.
//   - Import any sub-package that re-imports authcore (no import cycles).
package authcore
