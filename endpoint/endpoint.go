package endpoint

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// ErrNotFound indicates that a dotted key does not resolve to a descriptor.
var ErrNotFound = errors.New("endpoint not found")

// Key identifies an endpoint as "<group>.<action>".
type Key string

// Group returns the part of the key before the dot.
func (k Key) Group() string {
	group, _, _ := strings.Cut(string(k), ".")
	return group
}

// Action returns the part of the key after the dot.
func (k Key) Action() string {
	_, action, _ := strings.Cut(string(k), ".")
	return action
}

const (
	AuthSignup  Key = "auth.signup"
	AuthLogin   Key = "auth.login"
	AuthRefresh Key = "auth.refresh"
	AuthLogout  Key = "auth.logout"
	AuthUser    Key = "auth.user"

	AlertasListar     Key = "alertas.listar"
	AlertasObtener    Key = "alertas.obtener"
	AlertasCrear      Key = "alertas.crear"
	AlertasActualizar Key = "alertas.actualizar"
	AlertasEliminar   Key = "alertas.eliminar"

	PacientesListar     Key = "pacientes.listar"
	PacientesObtener    Key = "pacientes.obtener"
	PacientesCrear      Key = "pacientes.crear"
	PacientesActualizar Key = "pacientes.actualizar"
	PacientesEliminar   Key = "pacientes.eliminar"

	PerfilObtener    Key = "perfil.obtener"
	PerfilCrear      Key = "perfil.crear"
	PerfilActualizar Key = "perfil.actualizar"

	InvitacionCrear   Key = "invitacion.crear"
	InvitacionAceptar Key = "invitacion.aceptar"

	MensajeListar     Key = "mensaje.listar"
	MensajeObtener    Key = "mensaje.obtener"
	MensajeCrear      Key = "mensaje.crear"
	MensajeActualizar Key = "mensaje.actualizar"
	MensajeEliminar   Key = "mensaje.eliminar"
)

// Descriptor is the static method and URL template of an endpoint.
type Descriptor struct {
	Method      string
	URLTemplate string
}

// table is built once and never mutated.
var table = map[string]map[string]Descriptor{
	"auth": {
		"signup":  {http.MethodPost, "/auth/v1/signup"},
		"login":   {http.MethodPost, "/auth/v1/token?grant_type=password"},
		"refresh": {http.MethodPost, "/auth/v1/token?grant_type=refresh_token"},
		"logout":  {http.MethodPost, "/auth/v1/logout"},
		"user":    {http.MethodGet, "/auth/v1/user"},
	},
	"alertas":   crud("/functions/v1/alertas"),
	"pacientes": crud("/functions/v1/pacientes"),
	"perfil": {
		"obtener":    {http.MethodGet, "/functions/v1/perfil"},
		"crear":      {http.MethodPost, "/functions/v1/perfil"},
		"actualizar": {http.MethodPut, "/functions/v1/perfil/{id}"},
	},
	"invitacion": {
		"crear": {http.MethodGet, "/functions/v1/invitacion/crear-invitacion"},
		// expects the invitation as a "token" query parameter
		"aceptar": {http.MethodGet, "/functions/v1/invitacion/aceptar-invitacion"},
	},
	"mensaje": crud("/functions/v1/rapid-responder"),
}

func crud(base string) map[string]Descriptor {
	item := base + "/{id}"
	return map[string]Descriptor{
		"listar":     {http.MethodGet, base},
		"obtener":    {http.MethodGet, item},
		"crear":      {http.MethodPost, base},
		"actualizar": {http.MethodPut, item},
		"eliminar":   {http.MethodDelete, item},
	}
}

// Lookup resolves a dotted key. Every segment must resolve, and the last one
// must land on a descriptor rather than on a group.
func Lookup(key string) (Descriptor, error) {
	segments := strings.Split(key, ".")
	if len(segments) != 2 {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	group, ok := table[segments[0]]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	d, ok := group[segments[1]]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return d, nil
}

// MustLookup is Lookup for the typed keys declared in this package.
func MustLookup(key Key) Descriptor {
	d, err := Lookup(string(key))
	if err != nil {
		panic(err)
	}
	return d
}

// Keys lists every registered key, grouped and sorted for display.
func Keys() []Key {
	keys := make([]Key, 0, 32)
	for group, actions := range table {
		for action := range actions {
			keys = append(keys, Key(group+"."+action))
		}
	}
	slices.Sort(keys)
	return keys
}

// Params are caller-supplied values for path placeholders. Anything not bound
// to a placeholder is sent as a query parameter.
type Params map[string]any

// Resolve substitutes {name} placeholders with escaped values and returns the
// path together with the remaining query parameters. Fixed query parameters
// from the template are kept. The caller's Params are not modified.
func (d Descriptor) Resolve(params Params) (string, url.Values) {
	path, rawQuery, _ := strings.Cut(d.URLTemplate, "?")

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}

	for name, value := range params {
		placeholder := "{" + name + "}"
		str := fmt.Sprint(value)
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(str))
			continue
		}
		query.Add(name, str)
	}

	return path, query
}
