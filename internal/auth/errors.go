package auth

import "errors"

var (
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrTokenMissingUserID = errors.New("token payload has no user id")
)
