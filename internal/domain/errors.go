package domain

import "errors"

var (
	// ErrMissingEmail signals that the provider profile carried no email.
	ErrMissingEmail = errors.New("identity: profile missing email")
	// ErrIdentityNotFound signals no record for the requested identity.
	ErrIdentityNotFound = errors.New("identity: not found")
	// ErrConflictingWrite signals a uniqueness race during insert; the
	// caller should retry the lookup.
	ErrConflictingWrite = errors.New("identity: conflicting write")
	// ErrInvalidState signals an unknown, expired, or mismatched login
	// state nonce on the provider callback.
	ErrInvalidState = errors.New("identity: invalid login state")
	// ErrUnknownSession signals a session key with no backing user record.
	ErrUnknownSession = errors.New("session: unknown session")
)
