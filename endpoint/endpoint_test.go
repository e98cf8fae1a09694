package endpoint

import (
	"errors"
	"net/http"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		wantMethod string
		wantURL    string
		wantErr    bool
	}{
		{
			name:       "message item",
			key:        "mensaje.obtener",
			wantMethod: http.MethodGet,
			wantURL:    "/functions/v1/rapid-responder/{id}",
		},
		{
			name:       "login keeps fixed grant type",
			key:        "auth.login",
			wantMethod: http.MethodPost,
			wantURL:    "/auth/v1/token?grant_type=password",
		},
		{name: "unknown group", key: "foo.bar", wantErr: true},
		{name: "unknown action", key: "auth.nope", wantErr: true},
		{name: "group only", key: "auth", wantErr: true},
		{name: "too deep", key: "auth.login.extra", wantErr: true},
		{name: "empty", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Lookup(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("Lookup(%q) error = %v, want ErrNotFound", tt.key, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) unexpected error = %v", tt.key, err)
			}
			if d.Method != tt.wantMethod || d.URLTemplate != tt.wantURL {
				t.Errorf("Lookup(%q) = %+v, want %s %s", tt.key, d, tt.wantMethod, tt.wantURL)
			}
		})
	}
}

func TestTypedKeysAreRegistered(t *testing.T) {
	keys := []Key{
		AuthSignup, AuthLogin, AuthRefresh, AuthLogout, AuthUser,
		AlertasListar, AlertasObtener, AlertasCrear, AlertasActualizar, AlertasEliminar,
		PacientesListar, PacientesObtener, PacientesCrear, PacientesActualizar, PacientesEliminar,
		PerfilObtener, PerfilCrear, PerfilActualizar,
		InvitacionCrear, InvitacionAceptar,
		MensajeListar, MensajeObtener, MensajeCrear, MensajeActualizar, MensajeEliminar,
	}
	for _, k := range keys {
		if _, err := Lookup(string(k)); err != nil {
			t.Errorf("key %s is not in the table: %v", k, err)
		}
	}
	if got := len(Keys()); got != len(keys) {
		t.Errorf("Keys() returned %d keys, want %d", got, len(keys))
	}
}

func TestResolve_PathParamNotInQuery(t *testing.T) {
	d := MustLookup(MensajeObtener)
	params := Params{"id": 42}

	path, query := d.Resolve(params)

	if path != "/functions/v1/rapid-responder/42" {
		t.Errorf("path = %q, want /functions/v1/rapid-responder/42", path)
	}
	if query.Has("id") {
		t.Errorf("id leaked into query: %v", query)
	}
	if _, ok := params["id"]; !ok {
		t.Errorf("Resolve modified caller params")
	}
}

func TestResolve_QueryAndEscaping(t *testing.T) {
	d := MustLookup(AuthLogin)
	path, query := d.Resolve(Params{"redirect": "a b"})
	if path != "/auth/v1/token" {
		t.Errorf("path = %q", path)
	}
	if query.Get("grant_type") != "password" {
		t.Errorf("fixed query lost: %v", query)
	}
	if query.Get("redirect") != "a b" {
		t.Errorf("extra param missing: %v", query)
	}

	path, _ = MustLookup(PacientesEliminar).Resolve(Params{"id": "a/b c"})
	if path != "/functions/v1/pacientes/a%2Fb%20c" {
		t.Errorf("escaped path = %q", path)
	}
}

func TestKeyParts(t *testing.T) {
	if MensajeListar.Group() != "mensaje" || MensajeListar.Action() != "listar" {
		t.Errorf("unexpected parts: %q %q", MensajeListar.Group(), MensajeListar.Action())
	}
}
