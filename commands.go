package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lde-admin/lde-cli/auth"
	"github.com/lde-admin/lde-cli/contact"
	"github.com/lde-admin/lde-cli/endpoint"
	"github.com/lde-admin/lde-cli/profile"
	"github.com/lde-admin/lde-cli/store"
	"github.com/lde-admin/lde-cli/tui"
)

// command runs one parsed invocation against a wired app.
type command func(ctx context.Context, a *app) error

// tokenPreviewLen is how much of the access token is shown.
const tokenPreviewLen = 50

// parseCommand parses args into a command. Missing credentials are prompted
// for here, before any TUI takes over the terminal.
func parseCommand(args []string, p *prompter) (command, error) {
	if len(args) == 0 {
		return nil, errors.New("no command given")
	}

	name, rest := args[0], args[1:]
	switch name {
	case "login":
		return parseLogin(rest, p, false)
	case "register":
		return parseLogin(rest, p, true)
	case "logout":
		return noArgs(name, rest, runLogout)
	case "session":
		return noArgs(name, rest, runSession)
	case "refresh":
		return noArgs(name, rest, runRefresh)
	case "call":
		return parseCall(rest)
	case "messages":
		return parseMessages(rest)
	case "contact":
		return parseContact(rest)
	case "profile":
		return parseProfile(rest)
	}
	return nil, fmt.Errorf("unknown command %q", name)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseArgs parses flags that may appear before, between or after
// positional arguments and returns the positional ones in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%s: %w", fs.Name(), err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func noArgs(name string, args []string, cmd command) (command, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("%s takes no arguments", name)
	}
	return cmd, nil
}

func parseLogin(args []string, p *prompter, register bool) (command, error) {
	name := "login"
	if register {
		name = "register"
	}
	fs := newFlagSet(name)
	email := fs.String("email", "", "account email (or LDE_EMAIL env)")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(pos) > 0 {
		return nil, fmt.Errorf("%s: unexpected argument %q", name, pos[0])
	}

	creds := auth.Credentials{
		Email:    getConfig(*email, "LDE_EMAIL", ""),
		Password: os.Getenv("LDE_PASSWORD"),
	}
	if creds.Email == "" {
		if creds.Email, err = p.Line("Email: "); err != nil {
			return nil, fmt.Errorf("failed to read email: %w", err)
		}
	}
	if creds.Password == "" {
		if creds.Password, err = p.Password("Password: "); err != nil {
			return nil, err
		}
	}

	if register {
		return func(ctx context.Context, a *app) error {
			return runRegister(ctx, a, creds)
		}, nil
	}
	return func(ctx context.Context, a *app) error {
		return runLogin(ctx, a, creds)
	}, nil
}

func runLogin(ctx context.Context, a *app, creds auth.Credentials) error {
	a.d.Requesting(string(endpoint.AuthLogin))
	session, err := a.auth.Login(ctx, creds)
	if err != nil {
		reportSaveFailure(a, err)
		return err
	}

	a.d.LoggedIn(creds.Email)
	a.d.CredentialsSaved(a.store.Path())
	a.d.Session(sessionInfo(session, creds.Email))
	a.d.Done("Logged in")
	return nil
}

func runRegister(ctx context.Context, a *app, creds auth.Credentials) error {
	a.d.Requesting(string(endpoint.AuthSignup))
	session, err := a.auth.Register(ctx, creds)
	if errors.Is(err, auth.ErrConfirmationPending) {
		a.d.Registered(creds.Email, true)
		a.d.Done("Confirmation pending")
		return nil
	}
	if err != nil {
		reportSaveFailure(a, err)
		return err
	}

	a.d.Registered(creds.Email, false)
	a.d.CredentialsSaved(a.store.Path())
	a.d.Session(sessionInfo(session, creds.Email))
	a.d.Done("Registered")
	return nil
}

func runLogout(ctx context.Context, a *app) error {
	err := a.auth.Logout(ctx)
	if err != nil && !errors.Is(err, auth.ErrRemoteLogout) {
		return err
	}

	// the local clear stands even when the backend was unreachable
	a.d.LoggedOut(err)
	a.d.Done("Logged out")
	return nil
}

func runSession(ctx context.Context, a *app) error {
	creds, ok := store.LoadCredentials(a.store)
	if !ok {
		a.d.SessionNotFound()
		return auth.ErrNoSession
	}
	a.d.SessionFound(userEmail(creds.User))

	a.d.Requesting(string(endpoint.AuthUser))
	user, err := a.auth.Session(ctx)
	if err != nil {
		a.d.APICallFailed(err)
		return err
	}
	a.d.APICallOK(string(endpoint.AuthUser))

	// the call may have refreshed the tokens
	if fresh, ok := store.LoadCredentials(a.store); ok {
		creds = fresh
	}
	a.d.Session(sessionInfo(creds, user.Email))
	writeJSON(a.out, user.Raw)
	a.d.Done("Session is active")
	return nil
}

func runRefresh(ctx context.Context, a *app) error {
	a.d.Requesting(string(endpoint.AuthRefresh))
	session, err := a.auth.Refresh(ctx)
	if err != nil {
		reportSaveFailure(a, err)
		return err
	}

	a.d.CredentialsSaved(a.store.Path())
	a.d.Session(sessionInfo(session, userEmail(session.User)))
	a.d.Done("Session refreshed")
	return nil
}

func parseCall(args []string) (command, error) {
	fs := newFlagSet("call")
	data := fs.String("data", "", "JSON request body")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(pos) == 0 {
		return nil, errors.New("call: missing endpoint key such as mensaje.listar")
	}

	key := pos[0]
	if _, err := endpoint.Lookup(key); err != nil {
		return nil, fmt.Errorf("%w (known keys: %s)", err, joinKeys(endpoint.Keys()))
	}
	params, err := parseParams(pos[1:])
	if err != nil {
		return nil, err
	}
	body, err := parseData(*data)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, a *app) error {
		a.d.Requesting(key)
		resp, err := a.client.Call(ctx, key, params, body, nil)
		if err != nil {
			a.d.APICallFailed(err)
			return err
		}
		a.d.APICallOK(key)
		writeJSON(a.out, resp.Body)
		a.d.Done(fmt.Sprintf("%s returned %d", key, resp.StatusCode))
		return nil
	}, nil
}

// parseParams turns name=value pairs into endpoint params.
func parseParams(pairs []string) (endpoint.Params, error) {
	params := make(endpoint.Params, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", pair)
		}
		params[name] = value
	}
	return params, nil
}

func parseData(data string) (any, error) {
	if data == "" {
		return nil, nil
	}
	if !json.Valid([]byte(data)) {
		return nil, errors.New("-data is not valid JSON")
	}
	return json.RawMessage(data), nil
}

// parseObject accepts only a JSON object, as update endpoints expect.
func parseObject(data string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(data)
	if !strings.HasPrefix(trimmed, "{") || !json.Valid([]byte(trimmed)) {
		return nil, errors.New("-data must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

func parseMessages(args []string) (command, error) {
	if len(args) == 0 {
		return nil, errors.New("messages: missing subcommand (list, get, delete, update)")
	}

	sub, rest := args[0], args[1:]
	fs := newFlagSet("messages " + sub)
	switch sub {
	case "list":
		page := fs.Int("page", 1, "page number")
		size := fs.Int("page-size", tui.DefaultPageSize, "rows per page")
		pos, err := parseArgs(fs, rest)
		if err != nil {
			return nil, err
		}
		if len(pos) > 0 {
			return nil, fmt.Errorf("messages list: unexpected argument %q", pos[0])
		}
		return func(ctx context.Context, a *app) error {
			return runMessagesList(ctx, a, *page, *size)
		}, nil

	case "get", "delete", "update":
		var data *string
		if sub == "update" {
			data = fs.String("data", "", "JSON object with the fields to update")
		}
		pos, err := parseArgs(fs, rest)
		if err != nil {
			return nil, err
		}
		if len(pos) != 1 {
			return nil, fmt.Errorf("messages %s: expected exactly one message id", sub)
		}
		id := contact.ID(pos[0])

		switch sub {
		case "get":
			return func(ctx context.Context, a *app) error {
				return runMessageGet(ctx, a, id)
			}, nil
		case "delete":
			return func(ctx context.Context, a *app) error {
				return runMessageDelete(ctx, a, id)
			}, nil
		default:
			fields, err := parseObject(*data)
			if err != nil {
				return nil, fmt.Errorf("messages update: %w", err)
			}
			return func(ctx context.Context, a *app) error {
				return runMessageUpdate(ctx, a, id, fields)
			}, nil
		}
	}
	return nil, fmt.Errorf("messages: unknown subcommand %q", sub)
}

func runMessagesList(ctx context.Context, a *app, page, size int) error {
	a.d.Requesting(string(endpoint.MensajeListar))
	msgs, err := a.contact.List(ctx)
	if err != nil {
		a.d.APICallFailed(err)
		return err
	}
	a.d.APICallOK(string(endpoint.MensajeListar))

	items, info := tui.Paginate(msgs, page, size)
	rows := make([][]string, 0, len(items))
	for _, m := range items {
		rows = append(rows, []string{string(m.ID), m.Nombre, m.Correo, truncate(m.Text(), 40)})
	}
	fmt.Fprint(a.out, tui.RenderTable([]string{"ID", "Nombre", "Correo", "Mensaje"}, rows, info))
	a.d.Done(fmt.Sprintf("%d messages", len(msgs)))
	return nil
}

func runMessageGet(ctx context.Context, a *app, id contact.ID) error {
	a.d.Requesting(string(endpoint.MensajeObtener))
	m, err := a.contact.Get(ctx, id)
	if err != nil {
		a.d.APICallFailed(err)
		return err
	}
	a.d.APICallOK(string(endpoint.MensajeObtener))
	writeValue(a.out, m)
	a.d.Done("Message " + string(id))
	return nil
}

func runMessageDelete(ctx context.Context, a *app, id contact.ID) error {
	a.d.Requesting(string(endpoint.MensajeEliminar))
	if err := a.contact.Delete(ctx, id); err != nil {
		a.d.APICallFailed(err)
		return err
	}
	a.d.APICallOK(string(endpoint.MensajeEliminar))
	a.d.Done("Message " + string(id) + " deleted")
	return nil
}

func runMessageUpdate(ctx context.Context, a *app, id contact.ID, fields json.RawMessage) error {
	a.d.Requesting(string(endpoint.MensajeActualizar))
	body, err := a.contact.Update(ctx, id, fields)
	if err != nil {
		a.d.APICallFailed(err)
		return err
	}
	a.d.APICallOK(string(endpoint.MensajeActualizar))
	writeJSON(a.out, body)
	a.d.Done("Message " + string(id) + " updated")
	return nil
}

func parseContact(args []string) (command, error) {
	fs := newFlagSet("contact")
	var f contact.Form
	fs.StringVar(&f.Nombre, "nombre", "", "full name")
	fs.StringVar(&f.Correo, "correo", "", "email address")
	fs.StringVar(&f.Telefono, "telefono", "", "phone number, digits only")
	fs.StringVar(&f.Edad, "edad", "", "age")
	fs.StringVar(&f.Asunto, "asunto", "", "subject")
	fs.StringVar(&f.Descripcion, "descripcion", "", "message")
	fs.StringVar(&f.CaptchaToken, "captcha", "", "reCAPTCHA response token")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(pos) > 0 {
		return nil, fmt.Errorf("contact: unexpected argument %q", pos[0])
	}

	return func(ctx context.Context, a *app) error {
		a.d.Requesting(string(endpoint.MensajeCrear))
		if err := a.contact.Submit(ctx, f); err != nil {
			a.d.APICallFailed(err)
			return err
		}
		a.d.ContactSent()
		a.d.Done("Message sent")
		return nil
	}, nil
}

func parseProfile(args []string) (command, error) {
	if len(args) == 0 {
		return nil, errors.New("profile: missing subcommand (get, update)")
	}

	sub, rest := args[0], args[1:]
	fs := newFlagSet("profile " + sub)
	switch sub {
	case "get":
		pos, err := parseArgs(fs, rest)
		if err != nil {
			return nil, err
		}
		if len(pos) > 0 {
			return nil, fmt.Errorf("profile get: unexpected argument %q", pos[0])
		}
		return runProfileGet, nil

	case "update":
		data := fs.String("data", "", "JSON fields to update")
		pos, err := parseArgs(fs, rest)
		if err != nil {
			return nil, err
		}
		if len(pos) != 1 {
			return nil, errors.New("profile update: expected exactly one profile id")
		}

		if *data == "" {
			return nil, errors.New("profile update: -data is required")
		}
		var in profile.UpdateInput
		dec := json.NewDecoder(strings.NewReader(*data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return nil, fmt.Errorf("profile update: invalid -data: %w", err)
		}
		id := pos[0]
		return func(ctx context.Context, a *app) error {
			return runProfileUpdate(ctx, a, id, in)
		}, nil
	}
	return nil, fmt.Errorf("profile: unknown subcommand %q", sub)
}

func runProfileGet(ctx context.Context, a *app) error {
	a.d.Requesting(string(endpoint.PerfilObtener))
	p, err := a.profile.Get(ctx)
	if err != nil {
		a.d.APICallFailed(err)
		return err
	}
	a.d.APICallOK(string(endpoint.PerfilObtener))
	writeValue(a.out, p)
	a.d.Done(fmt.Sprintf("Role %s, landing page %s", p.Rol, p.Rol.Route()))
	return nil
}

func runProfileUpdate(ctx context.Context, a *app, id string, in profile.UpdateInput) error {
	a.d.Requesting(string(endpoint.PerfilActualizar))
	p, err := a.profile.Update(ctx, id, in)
	if err != nil {
		a.d.APICallFailed(err)
		return err
	}
	a.d.APICallOK(string(endpoint.PerfilActualizar))
	writeValue(a.out, p)
	a.d.Done("Profile updated")
	return nil
}

func reportSaveFailure(a *app, err error) {
	if errors.Is(err, auth.ErrPersist) {
		a.d.CredentialsSaveFailed(err)
	}
}

// sessionInfo builds the display summary. Claims from the access token win
// over the stored lifetime when they can be decoded.
func sessionInfo(c *store.Credentials, email string) tui.SessionInfo {
	preview := c.AccessToken
	if len(preview) > tokenPreviewLen {
		preview = preview[:tokenPreviewLen]
	}

	info := tui.SessionInfo{
		Email:        email,
		TokenPreview: preview,
		TokenType:    c.TokenType,
		ExpiresIn:    time.Duration(c.ExpiresIn) * time.Second,
	}
	if claims, err := auth.ParseClaims(c.AccessToken); err == nil {
		if info.Email == "" {
			info.Email = claims.Email
		}
		info.Subject = claims.Subject
		info.Role = claims.Role
		if !claims.ExpiresAt.IsZero() {
			info.ExpiresIn = time.Until(claims.ExpiresAt)
		}
	}
	return info
}

func userEmail(raw json.RawMessage) string {
	var u struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &u) != nil {
		return ""
	}
	return u.Email
}

// writeJSON pretty-prints body, falling back to the raw bytes.
func writeJSON(w io.Writer, body []byte) {
	if len(bytes.TrimSpace(body)) == 0 {
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		w.Write(body)
		fmt.Fprintln(w)
		return
	}
	buf.WriteByte('\n')
	w.Write(buf.Bytes())
}

func writeValue(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%+v\n", v)
		return
	}
	w.Write(append(data, '\n'))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func joinKeys(keys []endpoint.Key) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
