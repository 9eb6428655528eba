// Package security summarizes the security posture of a configuration.
//
// # What this package must NOT do
//
//   - Read secrets. Inputs carry flags and parameters, never keys.
//   - Fail. A report describes a configuration; validation lives elsewhere.
package security
