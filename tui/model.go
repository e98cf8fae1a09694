package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// state represents the current phase of a command.
type state int

const (
	stateInit       state = iota
	stateRequesting       // a backend call is in flight
	stateRefreshing       // access token rejected, refreshing
	stateSuccess          // all done
	stateError            // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for command progress.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	// endpoint of the call in flight
	current string

	session *SessionInfo
	doneMsg string
	errMsg  string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles, defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── Command messages ────────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgSessionFound:
		if msg.Email != "" {
			m.addStatus(statusOK, "Found session for "+msg.Email)
		} else {
			m.addStatus(statusOK, "Found existing session")
		}
		return m, nil

	case MsgSessionNotFound:
		m.addStatus(statusInfo, "No session, calling as anonymous client")
		return m, nil

	case MsgRequesting:
		m.current = msg.Key
		m.state = stateRequesting
		return m, nil

	case MsgAccessTokenRejected:
		m.state = stateRefreshing
		m.addStatus(statusWarn, "Access token rejected (401), refreshing...")
		return m, nil

	case MsgTokenRefreshedRetrying:
		m.state = stateRequesting
		m.addStatus(statusOK, "Token refreshed, retrying API call...")
		return m, nil

	case MsgSessionExpired:
		m.addStatus(statusWarn, fmt.Sprintf("Session expired, please log in again (%v)", msg.Err))
		return m, nil

	case MsgLoggedIn:
		m.addStatus(statusOK, "Logged in as "+msg.Email)
		return m, nil

	case MsgRegistered:
		if msg.Pending {
			m.addStatus(statusInfo, "Account "+msg.Email+" created, confirm it from your inbox")
		} else {
			m.addStatus(statusOK, "Account "+msg.Email+" created and logged in")
		}
		return m, nil

	case MsgLoggedOut:
		m.addStatus(statusOK, "Local session cleared")
		if msg.RemoteErr != nil {
			m.addStatus(statusWarn, fmt.Sprintf("Server logout failed: %v", msg.RemoteErr))
		}
		return m, nil

	case MsgCredentialsSaved:
		m.addStatus(statusOK, "Session saved to "+msg.Path)
		return m, nil

	case MsgCredentialsSaveFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Warning: failed to save session: %v", msg.Err))
		return m, nil

	case MsgAPICallOK:
		m.addStatus(statusOK, msg.Key+" successful")
		return m, nil

	case MsgAPICallFailed:
		m.addStatus(statusWarn, fmt.Sprintf("API call failed: %v", msg.Err))
		return m, nil

	case MsgContactSent:
		m.addStatus(statusOK, "Contact form sent")
		return m, nil

	case MsgSessionInfo:
		info := msg.Info
		m.session = &info
		return m, nil

	case MsgDone:
		m.doneMsg = msg.Message
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown while the command is running.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  " + appName + " Client  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateRequesting:
		b.WriteString(m.spinner.View())
		b.WriteString(" Calling ")
		b.WriteString(styleBold.Render(m.current))
		b.WriteString("...\n")

	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing access token...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown after the command completed.
func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	msg := m.doneMsg
	if msg == "" {
		msg = "Done"
	}
	b.WriteString(styleOK.Render("  ✓ " + msg))
	b.WriteString("\n\n")

	if s := m.session; s != nil {
		if s.Email != "" {
			b.WriteString(styleBold.Render("User:         "))
			b.WriteString(s.Email + "\n")
		}
		if s.Role != "" {
			b.WriteString(styleBold.Render("Role:         "))
			b.WriteString(s.Role + "\n")
		}
		b.WriteString(styleBold.Render("Access Token: "))
		b.WriteString(s.TokenPreview + "...\n")

		b.WriteString(styleBold.Render("Token Type:   "))
		b.WriteString(s.TokenType + "\n")

		b.WriteString(styleBold.Render("Expires In:   "))
		b.WriteString(formatDuration(s.ExpiresIn) + "\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Command failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// formatDuration formats a duration as "Xh Ym", "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
