package app

import "errors"

var (
	// Registration conflicts distinguish which field collided.
	ErrEmailAndUsernameTaken = errors.New("email and username already in use")
	ErrEmailTaken            = errors.New("email already in use")
	ErrUsernameTaken         = errors.New("username already in use")

	ErrFieldsRequired   = errors.New("name, username, email and password are required")
	ErrPasswordMismatch = errors.New("password and verification must match")

	// ErrInvalidCredentials is deliberately generic so a failed login does
	// not reveal whether an account exists for the identifier.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWrongPassword means the account exists but the password failed
	// verification. Surfaced as 401 rather than 400.
	ErrWrongPassword = errors.New("incorrect password")

	ErrForbidden    = errors.New("cannot modify another user")
	ErrUserNotFound = errors.New("user not found")

	ErrCaptionRequired  = errors.New("caption is required")
	ErrInvalidImage     = errors.New("imageData must be base64 encoded")
	ErrImageUnsupported = errors.New("image uploads are not configured")

	ErrSelfFriend = errors.New("cannot add yourself as a friend")
)
