package session

// This file contains the local session file shared between record session,
// subset and record tests invocations.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/perfgo/subsetter/model"
)

const (
	FileName = "build.json"

	// NamelessBuild is the build the service files sessions under when
	// recording with --no-build.
	NamelessBuild = "nameless"
)

// Entry is the content of the session file.
type Entry struct {
	Build   string `json:"build"`
	Session string `json:"session"`
}

// Store reads and writes the session file in a directory.
type Store struct {
	logger zerolog.Logger
	dir    string
}

func New(logger zerolog.Logger, dir string) *Store {
	return &Store{logger: logger, dir: dir}
}

// Path returns the location of the session file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Save remembers the session created for a build.
func (s *Store) Save(build, session string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(Entry{Build: build, Session: session}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// write to a temporary file first, so a concurrent reader never sees a
	// truncated file
	tmp, err := os.CreateTemp(s.dir, FileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session file: %w", err)
	}

	s.logger.Debug().Str("path", s.Path()).Str("build", build).Str("session", session).Msg("Session saved")
	return nil
}

// Load returns the stored entry, or nil when no session was recorded yet.
func (s *Store) Load() (*Entry, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		s.logger.Warn().Err(err).Str("path", s.Path()).Msg("Failed to parse session file")
		return nil, fmt.Errorf("failed to parse %s: %w", s.Path(), err)
	}
	return &e, nil
}

// Resolve picks the session to use: the explicit one when given, the
// stored one otherwise.
func (s *Store) Resolve(explicit string) (string, error) {
	if explicit != "" {
		if err := Validate(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	e, err := s.Load()
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", model.Usagef("no session found: run `record session --build <name>` first or pass --session")
	}
	return e.Session, nil
}

// Validate checks the builds/<build>/test_sessions/<id> form.
func Validate(session string) error {
	parts := strings.Split(strings.Trim(session, "/"), "/")
	if len(parts) != 4 || parts[0] != "builds" || parts[1] == "" || parts[2] != "test_sessions" || parts[3] == "" {
		return model.Usagef("invalid session %q: expected builds/<build>/test_sessions/<id>", session)
	}
	return nil
}

// Build returns the build name of a session path.
func Build(session string) string {
	parts := strings.Split(strings.Trim(session, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// ID returns the trailing id of a session path.
func ID(session string) string {
	session = strings.Trim(session, "/")
	return session[strings.LastIndex(session, "/")+1:]
}
