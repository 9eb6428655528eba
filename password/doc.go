// Package password validates, hashes and verifies user passwords.
//
// # Output format
//
// Hashes are self-describing strings. The default generator writes argon2id in
// PHC format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes ($2a$, $2b$, $2y$) are accepted by the default verifier list so
// that credentials created before the switch to argon2id keep working.
//
// # Algorithm sets
//
// A [Registry] has exactly one [Generator] and an ordered list of [Verifier]s.
// Rotating to a stronger algorithm means a new set whose verifier list still
// contains every previous generator. [Registry.NeedsRehash] lets callers
// re-hash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and persist [Hashed].
//   - Import any other authcore package.
//   - Log plaintext passwords or hashes.
package password
