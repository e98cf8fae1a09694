// Package contact submits the public contact form and manages the messages it
// produces.
package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/lde-admin/lde-cli/apiclient"
	"github.com/lde-admin/lde-cli/endpoint"
	"github.com/lde-admin/lde-cli/validation"
)

// Form is the public contact form. The captcha token is checked by the
// backend; here it only has to be present.
type Form struct {
	Nombre       string `json:"nombre" validate:"required"`
	Correo       string `json:"correo" validate:"required,email"`
	Telefono     string `json:"telefono" validate:"required,numeric"`
	Edad         string `json:"edad" validate:"required,numeric"`
	Asunto       string `json:"asunto" validate:"required"`
	Descripcion  string `json:"descripcion" validate:"required"`
	CaptchaToken string `json:"captchaToken" validate:"required"`
}

// ID is a message identifier. The backend sends either a number or a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message id must be a number or a string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids back as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Message is one row of the message table.
type Message struct {
	ID          ID     `json:"id"`
	Nombre      string `json:"nombre"`
	Correo      string `json:"correo"`
	Telefono    string `json:"telefono,omitempty"`
	Edad        string `json:"edad,omitempty"`
	Asunto      string `json:"asunto,omitempty"`
	Descripcion string `json:"descripcion,omitempty"`
	Mensaje     string `json:"mensaje,omitempty"`
}

// Text is the message body, whichever field the backend filled.
func (m *Message) Text() string {
	if m.Mensaje != "" {
		return m.Mensaje
	}
	return m.Descripcion
}

// Service wraps the mensaje endpoints.
type Service struct {
	client *apiclient.Client
	log    zerolog.Logger
}

func NewService(c *apiclient.Client, log zerolog.Logger) *Service {
	return &Service{client: c, log: log}
}

// Submit sends the form as the anonymous client.
func (s *Service) Submit(ctx context.Context, f Form) error {
	if err := validation.Struct(f); err != nil {
		return err
	}

	_, err := s.client.Do(ctx, endpoint.MensajeCrear, apiclient.Request{
		Body:   f,
		Header: s.client.AnonymousHeader(),
	})
	if err != nil {
		return fmt.Errorf("failed to submit contact form: %w", err)
	}

	s.log.Info().Str("asunto", f.Asunto).Msg("contact form submitted")
	return nil
}

// List returns every message.
func (s *Service) List(ctx context.Context) ([]Message, error) {
	resp, err := s.client.Do(ctx, endpoint.MensajeListar, apiclient.Request{})
	if err != nil {
		return nil, err
	}

	var msgs []Message
	if err := resp.Decode(&msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Service) Get(ctx context.Context, id ID) (*Message, error) {
	resp, err := s.client.Do(ctx, endpoint.MensajeObtener, apiclient.Request{
		Params: endpoint.Params{"id": string(id)},
	})
	if err != nil {
		return nil, err
	}

	var m Message
	if err := resp.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Update sends a partial update and returns the raw response body.
func (s *Service) Update(ctx context.Context, id ID, fields json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(fields) {
		return nil, fmt.Errorf("update for message %s is not valid JSON", id)
	}

	resp, err := s.client.Do(ctx, endpoint.MensajeActualizar, apiclient.Request{
		Params: endpoint.Params{"id": string(id)},
		Body:   fields,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *Service) Delete(ctx context.Context, id ID) error {
	_, err := s.client.Do(ctx, endpoint.MensajeEliminar, apiclient.Request{
		Params: endpoint.Params{"id": string(id)},
	})
	return err
}
