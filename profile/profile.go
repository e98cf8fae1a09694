// Package profile reads and edits the signed-in user's profile.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lde-admin/lde-cli/apiclient"
	"github.com/lde-admin/lde-cli/endpoint"
	"github.com/lde-admin/lde-cli/validation"
)

// Role decides where a user lands after signing in.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

var roleRoutes = map[Role]string{
	RoleAdmin: "dashboard",
	RoleUser:  "home",
}

// Route returns the landing page for r. Unknown roles land on the user page.
func (r Role) Route() string {
	if route, ok := roleRoutes[r]; ok {
		return route
	}
	return roleRoutes[RoleUser]
}

// Perfil is a stored profile.
type Perfil struct {
	ID            string          `json:"id"`
	Nombre        string          `json:"nombre"`
	Numero        string          `json:"numero"`
	Foto          string          `json:"foto"`
	Rol           Role            `json:"rol,omitempty"`
	FechaCreacion string          `json:"fecha_creacion,omitempty"`
	UserID        json.RawMessage `json:"user_id,omitempty"`
}

// CreateInput is a new profile. Identity, role and timestamps are assigned
// by the backend.
type CreateInput struct {
	Nombre string          `json:"nombre" validate:"required"`
	Numero string          `json:"numero" validate:"required,numeric"`
	Foto   string          `json:"foto" validate:"omitempty,url"`
	UserID json.RawMessage `json:"user_id,omitempty"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Nombre *string `json:"nombre,omitempty" validate:"omitempty,min=1"`
	Numero *string `json:"numero,omitempty" validate:"omitempty,numeric"`
	Foto   *string `json:"foto,omitempty" validate:"omitempty,url"`
}

// ErrUnsuccessful is returned when the backend answers 2xx with success=false.
var ErrUnsuccessful = errors.New("backend reported failure")

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// Service wraps the perfil endpoints.
type Service struct {
	client *apiclient.Client
}

func NewService(c *apiclient.Client) *Service {
	return &Service{client: c}
}

// Get returns the profile of the signed-in user.
func (s *Service) Get(ctx context.Context) (*Perfil, error) {
	return call(ctx, s.client, endpoint.PerfilObtener, apiclient.Request{})
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Perfil, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return call(ctx, s.client, endpoint.PerfilCrear, apiclient.Request{Body: in})
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Perfil, error) {
	if id == "" {
		return nil, errors.New("profile id is required")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return call(ctx, s.client, endpoint.PerfilActualizar, apiclient.Request{
		Params: endpoint.Params{"id": id},
		Body:   in,
	})
}

func call(ctx context.Context, c *apiclient.Client, key endpoint.Key, req apiclient.Request) (*Perfil, error) {
	resp, err := c.Do(ctx, key, req)
	if err != nil {
		return nil, err
	}

	var env envelope[Perfil]
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("%s: %w", key, ErrUnsuccessful)
	}
	return &env.Data, nil
}
