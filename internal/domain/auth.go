package domain

import "errors"

// Sentinel errors for the auth flows. Handlers collapse the two reset-token
// kinds into one user-facing message; logging keeps them distinct.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrInvalidResetToken  = errors.New("reset token invalid or already used")
	ErrExpiredResetToken  = errors.New("reset token expired")
)
