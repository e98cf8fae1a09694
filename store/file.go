package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// sessionFile is the on-disk layout. Several profiles (one per backend) can
// share a file; each profile is an independent key/value map.
type sessionFile struct {
	Profiles map[string]map[Key]string `json:"profiles"`
}

// FileStore is a Store backed by a JSON file. Writes hold an exclusive lock
// and replace the file atomically, so readers never see a half-written map.
type FileStore struct {
	path    string
	profile string
	log     zerolog.Logger
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithLogger sets the logger used for read failures.
func WithLogger(l zerolog.Logger) FileOption {
	return func(s *FileStore) {
		s.log = l
	}
}

// NewFileStore returns a store for profile inside the file at path. The file
// is created on first write.
func NewFileStore(path, profile string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:    path,
		profile: profile,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get reads key from the current profile. Unreadable or missing files read as absent.
func (s *FileStore) Get(key Key) (string, bool) {
	v, ok := s.profileValues()[key]
	return v, ok
}

// GetAll reads keys from one read of the file, so a concurrent rewrite by
// another process cannot mix old and new values.
func (s *FileStore) GetAll(keys ...Key) map[Key]string {
	return pick(s.profileValues(), keys)
}

func (s *FileStore) profileValues() map[Key]string {
	f, err := s.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("session file unreadable")
		}
		return nil
	}
	return f.Profiles[s.profile]
}

func (s *FileStore) Set(key Key, value string) error {
	return s.update(func(values map[Key]string) {
		values[key] = value
	})
}

func (s *FileStore) SetAll(values map[Key]string) error {
	return s.update(func(current map[Key]string) {
		for k, v := range values {
			current[k] = v
		}
	})
}

func (s *FileStore) Remove(key Key) error {
	return s.update(func(values map[Key]string) {
		delete(values, key)
	})
}

// ClearAll drops the credential fields of this profile in a single write.
func (s *FileStore) ClearAll() error {
	return s.update(func(values map[Key]string) {
		for _, k := range CredentialKeys {
			delete(values, k)
		}
	})
}

func (s *FileStore) read() (*sessionFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &f, nil
}

// update applies fn to this profile's map under the file lock and writes the
// result through a temp file and rename. Other profiles are preserved.
func (s *FileStore) update(fn func(values map[Key]string)) error {
	lock, err := acquireFileLock(s.path)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.release(); err != nil {
			s.log.Warn().Err(err).Msg("failed to release session lock")
		}
	}()

	f, err := s.read()
	if err != nil {
		// missing or corrupt files start over
		f = &sessionFile{}
	}
	if f.Profiles == nil {
		f.Profiles = make(map[string]map[Key]string)
	}

	values := f.Profiles[s.profile]
	if values == nil {
		values = make(map[Key]string)
	}
	fn(values)
	if len(values) == 0 {
		delete(f.Profiles, s.profile)
	} else {
		f.Profiles[s.profile] = values
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
