package authcore

import "errors"

var (
	// ErrInvalidCredentials is returned for every failed password login:
	// unknown email, missing credential and wrong password look the same.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned when the email or client IP has spent
	// its failed-login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrNotAuthenticated is returned by operations that need a logged-in session.
	ErrNotAuthenticated = errors.New("session not authenticated")
	// ErrWeakPassword wraps a *password.BadPasswordError from ChangePassword.
	ErrWeakPassword = errors.New("password rejected by policy")
	// ErrRevocationUnsupported is returned when session revocation is enabled
	// but no revoker is configured.
	ErrRevocationUnsupported = errors.New("session revocation unsupported")
	// ErrSessionSaveFailed wraps backend errors from Save.
	ErrSessionSaveFailed = errors.New("session save failed")
	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("manager closed")
	// ErrBackendRequired is returned by Build without a backend.
	ErrBackendRequired = errors.New("session backend required")
)
