package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleCredentials() *Credentials {
	return &Credentials{
		AccessToken:  "access-token-123456",
		RefreshToken: "refresh-token-123456",
		User:         json.RawMessage(`{"id":"u-1","email":"ana@example.com"}`),
		ExpiresIn:    3600,
		TokenType:    "bearer",
	}
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("file", func(t *testing.T) {
		fn(t, NewFileStore(filepath.Join(t.TempDir(), "session.json"), "default"))
	})
}

func TestStore_GetSetRemove(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		if _, ok := s.Get(KeyAccessToken); ok {
			t.Fatalf("empty store returned a value")
		}
		if err := s.Set(KeyAccessToken, "abc"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if v, ok := s.Get(KeyAccessToken); !ok || v != "abc" {
			t.Errorf("Get = %q, %v; want abc, true", v, ok)
		}
		if err := s.Remove(KeyAccessToken); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if _, ok := s.Get(KeyAccessToken); ok {
			t.Errorf("value still present after Remove")
		}
	})
}

func TestStore_GetAll(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		if got := s.GetAll(CredentialKeys...); len(got) != 0 {
			t.Errorf("empty store GetAll = %v", got)
		}
		s.SetAll(map[Key]string{KeyAccessToken: "abc", KeyTokenType: "bearer"})

		got := s.GetAll(KeyAccessToken, KeyRefreshToken)
		if len(got) != 1 || got[KeyAccessToken] != "abc" {
			t.Errorf("GetAll = %v, want only the access token", got)
		}
	})
}

func TestFileStore_LoadDuringRewriteNeverMixesPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	writer := NewFileStore(path, "default")
	reader := NewFileStore(path, "default")
	if err := SaveCredentials(writer, sampleCredentials()); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 50 {
			c := sampleCredentials()
			c.AccessToken = fmt.Sprintf("access-%d", i)
			c.RefreshToken = fmt.Sprintf("refresh-%d", i)
			if err := SaveCredentials(writer, c); err != nil {
				t.Errorf("save %d: %v", i, err)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		c, ok := LoadCredentials(reader)
		if !ok {
			t.Fatalf("session read as absent during a rewrite")
		}
		access := strings.TrimPrefix(c.AccessToken, "access-")
		refresh := strings.TrimPrefix(c.RefreshToken, "refresh-")
		if access != refresh {
			t.Fatalf("mixed record: %s with %s", c.AccessToken, c.RefreshToken)
		}
	}
}

func TestStore_ClearAllLeavesNoPartialRecord(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		if err := SaveCredentials(s, sampleCredentials()); err != nil {
			t.Fatalf("SaveCredentials: %v", err)
		}
		if _, ok := LoadCredentials(s); !ok {
			t.Fatalf("LoadCredentials returned absent after save")
		}

		if err := s.ClearAll(); err != nil {
			t.Fatalf("ClearAll: %v", err)
		}

		if c, ok := LoadCredentials(s); ok {
			t.Errorf("LoadCredentials after ClearAll = %+v, want absent", c)
		}
		for _, k := range CredentialKeys {
			if _, ok := s.Get(k); ok {
				t.Errorf("key %s survived ClearAll", k)
			}
		}
	})
}

func TestLoadCredentials_PartialIsAbsent(t *testing.T) {
	for _, missing := range CredentialKeys {
		t.Run(string(missing), func(t *testing.T) {
			s := NewMemoryStore()
			if err := SaveCredentials(s, sampleCredentials()); err != nil {
				t.Fatalf("SaveCredentials: %v", err)
			}
			s.Remove(missing)

			if _, ok := LoadCredentials(s); ok {
				t.Errorf("record without %s loaded as present", missing)
			}
		})
	}
}

func TestLoadCredentials_Malformed(t *testing.T) {
	s := NewMemoryStore()
	SaveCredentials(s, sampleCredentials())

	s.Set(KeyExpiresIn, "soon")
	if _, ok := LoadCredentials(s); ok {
		t.Errorf("non-numeric expiresIn loaded as present")
	}

	s.Set(KeyExpiresIn, "3600")
	s.Set(KeyUser, "{not json")
	if _, ok := LoadCredentials(s); ok {
		t.Errorf("invalid user JSON loaded as present")
	}
}

func TestLoadCredentials_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	want := sampleCredentials()
	SaveCredentials(s, want)

	got, ok := LoadCredentials(s)
	if !ok {
		t.Fatalf("LoadCredentials returned absent")
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken ||
		got.ExpiresIn != want.ExpiresIn || got.TokenType != want.TokenType ||
		string(got.User) != string(want.User) {
		t.Errorf("LoadCredentials = %+v, want %+v", got, want)
	}
	if v, _ := s.Get(KeyExpiresIn); v != "3600" {
		t.Errorf("expiresIn persisted as %q, want stringified integer", v)
	}
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Credentials)
		errContains string
	}{
		{name: "valid", mutate: func(c *Credentials) {}},
		{name: "bearer is case insensitive", mutate: func(c *Credentials) { c.TokenType = "Bearer" }},
		{
			name:        "empty access token",
			mutate:      func(c *Credentials) { c.AccessToken = "" },
			errContains: "access_token is empty",
		},
		{
			name:        "empty refresh token",
			mutate:      func(c *Credentials) { c.RefreshToken = "" },
			errContains: "refresh_token is empty",
		},
		{
			name:        "zero expires_in",
			mutate:      func(c *Credentials) { c.ExpiresIn = 0 },
			errContains: "expires_in must be positive",
		},
		{
			name:        "wrong token type",
			mutate:      func(c *Credentials) { c.TokenType = "Basic" },
			errContains: "unexpected token_type",
		},
		{
			name:        "missing user",
			mutate:      func(c *Credentials) { c.User = nil },
			errContains: "user payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleCredentials()
			tt.mutate(c)
			err := ValidateCredentials(c)

			if tt.errContains == "" {
				if err != nil {
					t.Errorf("ValidateCredentials() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidateCredentials() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestSaveCredentials_RejectsInvalid(t *testing.T) {
	s := NewMemoryStore()
	c := sampleCredentials()
	c.AccessToken = ""

	if err := SaveCredentials(s, c); err == nil {
		t.Fatalf("SaveCredentials accepted an empty access token")
	}
	if _, ok := s.Get(KeyRefreshToken); ok {
		t.Errorf("invalid record was partially written")
	}
}

func TestCredentials_Token(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tok := sampleCredentials().Token(issued)

	if tok.AccessToken != "access-token-123456" || tok.RefreshToken != "refresh-token-123456" {
		t.Errorf("unexpected token: %+v", tok)
	}
	if !tok.Expiry.Equal(issued.Add(time.Hour)) {
		t.Errorf("Expiry = %v, want %v", tok.Expiry, issued.Add(time.Hour))
	}
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	const goroutines = 10
	var wg sync.WaitGroup

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			s := NewFileStore(path, fmt.Sprintf("profile-%d", id))
			c := sampleCredentials()
			c.AccessToken = fmt.Sprintf("access-token-%d", id)
			if err := SaveCredentials(s, c); err != nil {
				t.Errorf("Goroutine %d: failed to save: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("Failed to parse session file: %v", err)
	}
	if len(f.Profiles) != goroutines {
		t.Errorf("Expected %d profiles, got %d", goroutines, len(f.Profiles))
	}
	for i := 0; i < goroutines; i++ {
		want := fmt.Sprintf("access-token-%d", i)
		if got := f.Profiles[fmt.Sprintf("profile-%d", i)][KeyAccessToken]; got != want {
			t.Errorf("profile-%d access token = %q, want %q", i, got, want)
		}
	}

	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after all saves completed")
	}
}

func TestFileStore_ClearAllPreservesOtherProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	prod := NewFileStore(path, "prod")
	staging := NewFileStore(path, "staging")

	SaveCredentials(prod, sampleCredentials())
	SaveCredentials(staging, sampleCredentials())

	if err := staging.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	if _, ok := LoadCredentials(staging); ok {
		t.Errorf("staging session survived ClearAll")
	}
	if _, ok := LoadCredentials(prod); !ok {
		t.Errorf("prod session was lost when staging was cleared")
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	SaveCredentials(NewFileStore(path, "default"), sampleCredentials())

	if _, ok := LoadCredentials(NewFileStore(path, "default")); !ok {
		t.Errorf("session not visible to a fresh FileStore")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}
}

func TestFileStore_CorruptFileReadsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path, "default")

	if _, ok := s.Get(KeyAccessToken); ok {
		t.Errorf("corrupt file returned a value")
	}
	if err := s.Set(KeyAccessToken, "fresh"); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	if v, _ := s.Get(KeyAccessToken); v != "fresh" {
		t.Errorf("Get = %q, want fresh", v)
	}
}

func BenchmarkFileStore_SaveCredentials(b *testing.B) {
	s := NewFileStore(filepath.Join(b.TempDir(), "session.json"), "bench")
	c := sampleCredentials()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := SaveCredentials(s, c); err != nil {
			b.Fatalf("Failed to save: %v", err)
		}
	}
}
