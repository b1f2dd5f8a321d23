package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail indicates signup with an already-registered email.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMalformedToken indicates a token that cannot be parsed or fails signature checks.
	ErrMalformedToken = errors.New("malformed token")
	// ErrTokenVerification indicates an external identity provider rejected a token.
	ErrTokenVerification = errors.New("token verification failed")
)
