package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrNoToken indicates the request carried no credential at all.
	ErrNoToken = errors.New("auth: no token")
	// ErrInvalidToken indicates the token failed signature or claim checks.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired indicates an otherwise well-formed token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrWrongPassword is returned on a failed credential check.
	ErrWrongPassword = errors.New("auth: wrong password")
	// ErrForbidden covers role, permission and department-scope denials.
	ErrForbidden = errors.New("auth: forbidden")
)
