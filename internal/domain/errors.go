package domain

import "fmt"

// SessionError indicates that a directory session could not be opened or
// the transport-level bind failed. Recoverable: the next sync cycle or
// login attempt simply retries.
type SessionError struct {
	Server string
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("directory session to %s: %v", e.Server, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// DirectoryError indicates a search or unbind failure after a session was
// already open. Same recovery posture as SessionError.
type DirectoryError struct {
	Op  string
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// TokenError covers every way a bearer token can be unusable: bad
// signature, expired, missing claims, wrong kind, or a subject that no
// longer exists. The Reason is for logs only; the HTTP layer collapses
// all token errors into one opaque 401.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token: %s: %v", e.Reason, e.Err)
	}
	return "token: " + e.Reason
}

func (e *TokenError) Unwrap() error { return e.Err }

// SigningError indicates that token issuance failed because the key
// material is missing or unreadable. This is infrastructure
// misconfiguration, not a failed login, and is surfaced distinctly.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("token signing: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }
