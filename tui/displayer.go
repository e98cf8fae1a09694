package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/common-nighthawk/go-figure"
)

const appName = "LDE"

// Displayer abstracts all progress output of a command. Command results are
// written separately so stdout stays pipeable.
type Displayer interface {
	Banner()
	SessionFound(email string)
	SessionNotFound()
	Requesting(key string)
	AccessTokenRejected()
	TokenRefreshedRetrying()
	SessionExpired(err error)
	LoggedIn(email string)
	Registered(email string, pending bool)
	LoggedOut(remoteErr error)
	CredentialsSaved(path string)
	CredentialsSaveFailed(err error)
	APICallOK(key string)
	APICallFailed(err error)
	ContactSent()
	Session(info SessionInfo)
	Done(message string)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, figure.NewFigure(appName, "cybermedium", true).String())
	fmt.Fprintln(p.w, "=== LDE command-line client ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionFound(email string) {
	if email == "" {
		fmt.Fprintln(p.w, "Found existing session!")
		return
	}
	fmt.Fprintf(p.w, "Found existing session for %s\n", email)
}

func (p *PlainDisplayer) SessionNotFound() {
	fmt.Fprintln(p.w, "No session found, calling as anonymous client...")
}

func (p *PlainDisplayer) Requesting(key string) {
	fmt.Fprintf(p.w, "Calling %s...\n", key)
}

func (p *PlainDisplayer) AccessTokenRejected() {
	fmt.Fprintln(p.w, "Access token rejected (401), refreshing...")
}

func (p *PlainDisplayer) TokenRefreshedRetrying() {
	fmt.Fprintln(p.w, "Token refreshed, retrying API call...")
}

func (p *PlainDisplayer) SessionExpired(err error) {
	fmt.Fprintf(p.w, "Session expired: %v\n", err)
	fmt.Fprintln(p.w, "Please log in again.")
}

func (p *PlainDisplayer) LoggedIn(email string) {
	fmt.Fprintf(p.w, "\nLogged in as %s\n", email)
}

func (p *PlainDisplayer) Registered(email string, pending bool) {
	if pending {
		fmt.Fprintf(p.w, "\nAccount %s created. Check your inbox to confirm it before logging in.\n", email)
		return
	}
	fmt.Fprintf(p.w, "\nAccount %s created and logged in\n", email)
}

func (p *PlainDisplayer) LoggedOut(remoteErr error) {
	fmt.Fprintln(p.w, "Local session cleared.")
	if remoteErr != nil {
		fmt.Fprintf(p.w, "Warning: server logout failed: %v\n", remoteErr)
	}
}

func (p *PlainDisplayer) CredentialsSaved(path string) {
	fmt.Fprintf(p.w, "Session saved to %s\n", path)
}

func (p *PlainDisplayer) CredentialsSaveFailed(err error) {
	fmt.Fprintf(p.w, "Warning: Failed to save session: %v\n", err)
}

func (p *PlainDisplayer) APICallOK(key string) {
	fmt.Fprintf(p.w, "%s successful!\n", key)
}

func (p *PlainDisplayer) APICallFailed(err error) {
	fmt.Fprintf(p.w, "API call failed: %v\n", err)
}

func (p *PlainDisplayer) ContactSent() {
	fmt.Fprintln(p.w, "Contact form sent. Thank you!")
}

func (p *PlainDisplayer) Session(info SessionInfo) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintln(p.w, "Current Session:")
	if info.Email != "" {
		fmt.Fprintf(p.w, "User: %s\n", info.Email)
	}
	if info.Role != "" {
		fmt.Fprintf(p.w, "Role: %s\n", info.Role)
	}
	fmt.Fprintf(p.w, "Access Token: %s...\n", info.TokenPreview)
	fmt.Fprintf(p.w, "Token Type: %s\n", info.TokenType)
	fmt.Fprintf(p.w, "Expires In: %s\n", info.ExpiresIn.Round(time.Second))
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Done(message string) {
	if message != "" {
		fmt.Fprintln(p.w, message)
	}
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                       {}
func (NoopDisplayer) SessionFound(_ string)         {}
func (NoopDisplayer) SessionNotFound()              {}
func (NoopDisplayer) Requesting(_ string)           {}
func (NoopDisplayer) AccessTokenRejected()          {}
func (NoopDisplayer) TokenRefreshedRetrying()       {}
func (NoopDisplayer) SessionExpired(_ error)        {}
func (NoopDisplayer) LoggedIn(_ string)             {}
func (NoopDisplayer) Registered(_ string, _ bool)   {}
func (NoopDisplayer) LoggedOut(_ error)             {}
func (NoopDisplayer) CredentialsSaved(_ string)     {}
func (NoopDisplayer) CredentialsSaveFailed(_ error) {}
func (NoopDisplayer) APICallOK(_ string)            {}
func (NoopDisplayer) APICallFailed(_ error)         {}
func (NoopDisplayer) ContactSent()                  {}
func (NoopDisplayer) Session(_ SessionInfo)         {}
func (NoopDisplayer) Done(_ string)                 {}
func (NoopDisplayer) Fatal(_ error)                 {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) SessionFound(email string) {
	t.p.Send(MsgSessionFound{Email: email})
}

func (t *ProgramDisplayer) SessionNotFound() {
	t.p.Send(MsgSessionNotFound{})
}

func (t *ProgramDisplayer) Requesting(key string) {
	t.p.Send(MsgRequesting{Key: key})
}

func (t *ProgramDisplayer) AccessTokenRejected() {
	t.p.Send(MsgAccessTokenRejected{})
}

func (t *ProgramDisplayer) TokenRefreshedRetrying() {
	t.p.Send(MsgTokenRefreshedRetrying{})
}

func (t *ProgramDisplayer) SessionExpired(err error) {
	t.p.Send(MsgSessionExpired{Err: err})
}

func (t *ProgramDisplayer) LoggedIn(email string) {
	t.p.Send(MsgLoggedIn{Email: email})
}

func (t *ProgramDisplayer) Registered(email string, pending bool) {
	t.p.Send(MsgRegistered{Email: email, Pending: pending})
}

func (t *ProgramDisplayer) LoggedOut(remoteErr error) {
	t.p.Send(MsgLoggedOut{RemoteErr: remoteErr})
}

func (t *ProgramDisplayer) CredentialsSaved(path string) {
	t.p.Send(MsgCredentialsSaved{Path: path})
}

func (t *ProgramDisplayer) CredentialsSaveFailed(err error) {
	t.p.Send(MsgCredentialsSaveFailed{Err: err})
}

func (t *ProgramDisplayer) APICallOK(key string) {
	t.p.Send(MsgAPICallOK{Key: key})
}

func (t *ProgramDisplayer) APICallFailed(err error) {
	t.p.Send(MsgAPICallFailed{Err: err})
}

func (t *ProgramDisplayer) ContactSent() {
	t.p.Send(MsgContactSent{})
}

func (t *ProgramDisplayer) Session(info SessionInfo) {
	t.p.Send(MsgSessionInfo{Info: info})
}

func (t *ProgramDisplayer) Done(message string) {
	t.p.Send(MsgDone{Message: message})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
