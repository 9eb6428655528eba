// Package jwt signs session IDs into tamper-evident tokens and verifies them
// with strict algorithm, issuer, audience and key-id checks. The session ID
// stays the only state; the token adds integrity and an expiry.
package jwt
