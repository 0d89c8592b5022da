package auth

import "errors"

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrTokenExpired   = errors.New("token has expired")
	ErrMissingSession = errors.New("request has no authenticated session")
)
