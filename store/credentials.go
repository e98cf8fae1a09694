package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the session issued by the backend on login, registration or
// refresh. It is persisted as five separate keys.
type Credentials struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
	ExpiresIn    int             `json:"expires_in"`
	TokenType    string          `json:"token_type"`
}

// Token converts the credentials into an oauth2.Token. Expiry is counted from
// issuedAt since the backend only reports a lifetime.
func (c *Credentials) Token(issuedAt time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       issuedAt.Add(time.Duration(c.ExpiresIn) * time.Second),
	}
}

// ValidateCredentials checks a token response before it is persisted.
func ValidateCredentials(c *Credentials) error {
	if c.AccessToken == "" {
		return errors.New("access_token is empty")
	}
	if c.RefreshToken == "" {
		return errors.New("refresh_token is empty")
	}
	if c.ExpiresIn <= 0 {
		return fmt.Errorf("expires_in must be positive, got: %d", c.ExpiresIn)
	}
	if !strings.EqualFold(c.TokenType, "bearer") {
		return fmt.Errorf("unexpected token_type: %q (expected bearer)", c.TokenType)
	}
	if len(c.User) == 0 || !json.Valid(c.User) {
		return errors.New("user payload is missing or not valid JSON")
	}
	return nil
}

// SaveCredentials overwrites all five fields in one write.
func SaveCredentials(s Store, c *Credentials) error {
	if err := ValidateCredentials(c); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	return s.SetAll(map[Key]string{
		KeyAccessToken:  c.AccessToken,
		KeyRefreshToken: c.RefreshToken,
		KeyUser:         string(c.User),
		KeyExpiresIn:    strconv.Itoa(c.ExpiresIn),
		KeyTokenType:    c.TokenType,
	})
}

// LoadCredentials returns the stored session, or false when any field is
// missing or malformed. A partial record is never returned.
func LoadCredentials(s Store) (*Credentials, bool) {
	values := s.GetAll(CredentialKeys...)
	for _, k := range CredentialKeys {
		if values[k] == "" {
			return nil, false
		}
	}

	expiresIn, err := strconv.Atoi(values[KeyExpiresIn])
	if err != nil {
		return nil, false
	}
	user := json.RawMessage(values[KeyUser])
	if !json.Valid(user) {
		return nil, false
	}

	return &Credentials{
		AccessToken:  values[KeyAccessToken],
		RefreshToken: values[KeyRefreshToken],
		User:         user,
		ExpiresIn:    expiresIn,
		TokenType:    values[KeyTokenType],
	}, true
}

// ClearCredentials removes the session.
func ClearCredentials(s Store) error {
	return s.ClearAll()
}
