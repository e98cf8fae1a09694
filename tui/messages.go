package tui

import (
	"time"
)

// SessionInfo summarizes the stored session for display.
type SessionInfo struct {
	Email        string
	Subject      string
	Role         string
	TokenPreview string
	TokenType    string
	ExpiresIn    time.Duration
}

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgSessionFound signals that stored credentials were loaded.
type MsgSessionFound struct{ Email string }

// MsgSessionNotFound signals that the store holds no session.
type MsgSessionNotFound struct{}

// MsgRequesting signals that a backend call has started.
type MsgRequesting struct{ Key string }

// MsgAccessTokenRejected signals that the access token was rejected (401).
type MsgAccessTokenRejected struct{}

// MsgTokenRefreshedRetrying signals that the token was refreshed and a retry is starting.
type MsgTokenRefreshedRetrying struct{}

// MsgSessionExpired signals that the session was cleared and a new login is required.
type MsgSessionExpired struct{ Err error }

type MsgLoggedIn struct{ Email string }

// MsgRegistered signals a new account. Pending is set when the email
// address still has to be confirmed.
type MsgRegistered struct {
	Email   string
	Pending bool
}

// MsgLoggedOut signals that the local session was cleared. RemoteErr is set
// when the backend could not be told.
type MsgLoggedOut struct{ RemoteErr error }

// MsgCredentialsSaved signals that the session was written to disk.
type MsgCredentialsSaved struct{ Path string }

// MsgCredentialsSaveFailed signals that writing the session failed.
type MsgCredentialsSaveFailed struct{ Err error }

// MsgAPICallOK signals that a backend call succeeded.
type MsgAPICallOK struct{ Key string }

// MsgAPICallFailed signals that a backend call failed.
type MsgAPICallFailed struct{ Err error }

// MsgContactSent signals that the contact form was accepted.
type MsgContactSent struct{}

// MsgSessionInfo carries the session summary panel.
type MsgSessionInfo struct{ Info SessionInfo }

// MsgDone signals that the command finished successfully.
type MsgDone struct{ Message string }

// MsgFatal signals a fatal error that should terminate the command.
type MsgFatal struct{ Err error }
