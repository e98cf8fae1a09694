package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lde-admin/lde-cli/apiclient"
	"github.com/lde-admin/lde-cli/auth"
	"github.com/lde-admin/lde-cli/contact"
	"github.com/lde-admin/lde-cli/endpoint"
	"github.com/lde-admin/lde-cli/logging"
	"github.com/lde-admin/lde-cli/profile"
	"github.com/lde-admin/lde-cli/store"
	"github.com/lde-admin/lde-cli/tui"
)

const (
	defaultAPIURL      = "https://fallback-url.com"
	defaultAPIKey      = "ANON_KEY_FALLBACK"
	defaultSessionFile = ".lde-session.json"
	defaultMaxRetries  = 2
)

var (
	flagAPIURL      *string
	flagAPIKey      *string
	flagSessionFile *string
	flagProfile     *string
	flagTimeout     *string
	flagMaxRetries  *string
	flagLogLevel    *string
	flagLogFormat   *string
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagAPIURL = flag.String("api-url", "", "Backend base URL (default: "+defaultAPIURL+" or API_URL env)")
	flagAPIKey = flag.String("api-key", "", "Anonymous API key (or set API_KEY env)")
	flagSessionFile = flag.String(
		"session-file",
		"",
		"Session storage file (default: "+defaultSessionFile+" or SESSION_FILE env)",
	)
	flagProfile = flag.String("profile", "", "Session profile name (default: API host or PROFILE env)")
	flagTimeout = flag.String("timeout", "", "Per-request timeout, e.g. 10s (or API_TIMEOUT env)")
	flagMaxRetries = flag.String("max-retries", "", "Transport retries for 5xx, 429 and network errors on reads (or MAX_RETRIES env)")
	flagLogLevel = flag.String("log-level", "", "Log level: debug, info, warn, error (or LOG_LEVEL env)")
	flagLogFormat = flag.String("log-format", "", "Log format: console or json (or LOG_FORMAT env)")

	flag.Usage = usage
}

// config is the resolved runtime configuration.
type config struct {
	APIURL      string
	APIKey      string
	SessionFile string
	Profile     string
	Timeout     time.Duration
	MaxRetries  int
	LogLevel    string
	LogFormat   string
}

// loadConfig resolves every setting with priority flag > env > default.
func loadConfig() (*config, error) {
	cfg := &config{
		APIURL:      getConfig(*flagAPIURL, "API_URL", defaultAPIURL),
		APIKey:      getConfig(*flagAPIKey, "API_KEY", defaultAPIKey),
		SessionFile: getConfig(*flagSessionFile, "SESSION_FILE", defaultSessionFile),
		Profile:     getConfig(*flagProfile, "PROFILE", ""),
		LogLevel:    getConfig(*flagLogLevel, "LOG_LEVEL", "warn"),
		LogFormat:   getConfig(*flagLogFormat, "LOG_FORMAT", logging.FormatConsole),
	}

	if err := validateServerURL(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("invalid API_URL: %w", err)
	}
	if cfg.Profile == "" {
		u, _ := url.Parse(cfg.APIURL)
		cfg.Profile = u.Host
	}

	timeout, err := time.ParseDuration(getConfig(*flagTimeout, "API_TIMEOUT", apiclient.DefaultTimeout.String()))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid API_TIMEOUT: must be a positive duration such as 10s")
	}
	cfg.Timeout = timeout

	retries, err := strconv.Atoi(getConfig(*flagMaxRetries, "MAX_RETRIES", strconv.Itoa(defaultMaxRetries)))
	if err != nil || retries < 0 {
		return nil, fmt.Errorf("invalid MAX_RETRIES: must be a non-negative integer")
	}
	cfg.MaxRetries = retries

	return cfg, nil
}

// warnings lists configuration problems that do not stop the client.
func (c *config) warnings() []string {
	var w []string
	if strings.HasPrefix(strings.ToLower(c.APIURL), "http://") {
		w = append(w,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
			"⚠️  This is only safe for local development. Use HTTPS in production.",
		)
	}
	if c.APIURL == defaultAPIURL {
		w = append(w, "⚠️  Warning: API_URL not set, using the fallback backend URL.")
	}
	if c.APIKey == defaultAPIKey {
		w = append(w, "⚠️  Warning: API_KEY not set, anonymous calls will use a placeholder key.")
	}
	return w
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}
}

// app wires the services a command needs.
type app struct {
	cfg     *config
	store   *store.FileStore
	client  *apiclient.Client
	auth    *auth.Service
	contact *contact.Service
	profile *profile.Service
	d       tui.Displayer
	out     io.Writer
	log     zerolog.Logger
}

func newApp(cfg *config, httpClient *http.Client, d tui.Displayer, out, logOut io.Writer) (*app, error) {
	log, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	s := store.NewFileStore(cfg.SessionFile, cfg.Profile,
		store.WithLogger(logging.Component(log, "store")))

	client, err := apiclient.New(
		apiclient.Config{
			BaseURL:    cfg.APIURL,
			AnonKey:    cfg.APIKey,
			HTTPClient: httpClient,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		},
		s,
		apiclient.WithLogger(logging.Component(log, "apiclient")),
		apiclient.WithHooks(apiclient.Hooks{
			Unauthorized:   func(_ endpoint.Key) { d.AccessTokenRejected() },
			Refreshed:      func(_ endpoint.Key) { d.TokenRefreshedRetrying() },
			SessionCleared: d.SessionExpired,
		}),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		store:   s,
		client:  client,
		auth:    auth.NewService(client, s, logging.Component(log, "auth")),
		contact: contact.NewService(client, logging.Component(log, "contact")),
		profile: profile.NewService(client),
		d:       d,
		out:     out,
		log:     log,
	}, nil
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func usage() {
	fmt.Fprintln(flag.CommandLine.Output(), `Usage: lde [global flags] <command> [arguments]

Commands:
  login [-email E]                     sign in (password from LDE_PASSWORD or prompt)
  register [-email E]                  create an account
  logout                               clear the session and revoke it
  session                              show the current session
  refresh                              renew the session now
  call <group.action> [k=v ...] [-data JSON]
                                       call any endpoint
  messages list [-page N] [-page-size N]
  messages get|delete <id>
  messages update <id> -data JSON
  contact -nombre N -correo C -telefono T -edad E -asunto A -descripcion D -captcha TOKEN
  profile get
  profile update <id> -data JSON

Global flags:`)
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range cfg.warnings() {
		fmt.Fprintln(os.Stderr, w)
	}

	// Commands are parsed, and prompts answered, before any TUI owns the terminal.
	cmd, err := parseCommand(flag.Args(), newPrompter(os.Stdin, os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		// results are held back until the TUI has released the terminal
		var out bytes.Buffer
		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(cfg, cmd, d, &out)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		os.Stdout.Write(out.Bytes())
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(cfg, cmd, d, os.Stdout); err != nil {
			os.Exit(1)
		}
	}
}

func run(cfg *config, cmd command, d tui.Displayer, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, newHTTPClient(), d, out, os.Stderr)
	if err != nil {
		d.Fatal(err)
		return err
	}

	if err := cmd(ctx, a); err != nil {
		d.Fatal(err)
		return err
	}
	return nil
}
