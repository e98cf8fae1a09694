package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func update(t *testing.T, m Model, msgs ...any) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		if m, ok = next.(Model); !ok {
			t.Fatalf("Update returned %T", next)
		}
	}
	return m
}

func TestModel_RefreshFlow(t *testing.T) {
	m := update(t, NewModel(), MsgRequesting{Key: "mensaje.listar"})
	if m.state != stateRequesting || m.current != "mensaje.listar" {
		t.Fatalf("state = %v, current = %q", m.state, m.current)
	}
	if !strings.Contains(m.viewMain(), "mensaje.listar") {
		t.Errorf("main view does not name the call in flight")
	}

	m = update(t, m, MsgAccessTokenRejected{})
	if m.state != stateRefreshing {
		t.Errorf("state = %v, want refreshing", m.state)
	}

	m = update(t, m, MsgTokenRefreshedRetrying{}, MsgAPICallOK{Key: "mensaje.listar"}, MsgDone{Message: "3 messages"})
	if m.state != stateSuccess {
		t.Fatalf("state = %v, want success", m.state)
	}
	if len(m.statusLines) != 3 {
		t.Errorf("status lines = %d, want 3", len(m.statusLines))
	}
	if !strings.Contains(m.viewSuccess(), "3 messages") {
		t.Errorf("success view missing done message")
	}
}

func TestModel_SessionPanel(t *testing.T) {
	m := update(t, NewModel(),
		MsgSessionInfo{Info: SessionInfo{Email: "ana@example.com", TokenPreview: "eyJ", TokenType: "bearer", ExpiresIn: 90 * time.Second}},
		MsgDone{},
	)

	view := m.viewSuccess()
	for _, want := range []string{"ana@example.com", "eyJ...", "bearer", "1m 30s"} {
		if !strings.Contains(view, want) {
			t.Errorf("session view missing %q", want)
		}
	}
}

func TestModel_Fatal(t *testing.T) {
	m := update(t, NewModel(), MsgFatal{Err: errors.New("session expired")})
	if m.state != stateError || !strings.Contains(m.viewError(), "session expired") {
		t.Errorf("state = %v, view = %q", m.state, m.viewError())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{42 * time.Second, "42s"},
		{61 * time.Second, "1m 1s"},
		{time.Hour + 5*time.Minute, "1h 5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	d.AccessTokenRejected()
	d.TokenRefreshedRetrying()
	d.LoggedOut(errors.New("boom"))
	d.Registered("ana@example.com", true)

	out := buf.String()
	for _, want := range []string{
		"Access token rejected (401), refreshing...",
		"Token refreshed, retrying API call...",
		"server logout failed: boom",
		"Check your inbox",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlainDisplayer_Banner(t *testing.T) {
	var buf bytes.Buffer
	NewPlainDisplayer(&buf).Banner()
	if !strings.Contains(buf.String(), "LDE command-line client") {
		t.Errorf("banner = %q", buf.String())
	}
}
