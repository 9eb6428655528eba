// Package rate throttles failed password logins.
//
// # Implementations
//
//   - [Limiter]: fixed-window Redis counters. INCR + conditional EXPIRE on
//     first hit. Keys: <prefix>:<identifier> and <prefix>i:<ip>.
//   - [Local]: per-key token buckets from golang.org/x/time/rate, used when
//     no Redis client is configured. Budgets are per process.
//
// Both refuse further attempts once MaxLoginAttempts failures were recorded
// inside the cooldown window. A successful login resets the identifier
// budget only.
//
// # What this package must NOT do
//
//   - Decide what an identifier is (the caller normalizes emails).
//   - Be imported outside the authcore module.
package rate
