// Package transcript keeps a durable, human-readable markdown record of every
// dialogue session.
//
// Each session is framed by a start marker and an end marker, and every turn
// is written as one entry carrying a timestamp, a role label and the body
// text. The active file rotates into numbered backups (.1 newest) once it
// grows past the configured size.
package transcript

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

// DefaultFileName is the name of the active transcript file.
const DefaultFileName = "conversation.md"

var (
	// ErrNoSession is returned when a record is written outside a session.
	ErrNoSession = errors.New("transcript: no active session")
	// ErrSessionActive is returned when a session is started twice.
	ErrSessionActive = errors.New("transcript: session already active")
)

// PersistenceWarning reports a failed transcript write. It never ends a
// conversation.
type PersistenceWarning struct {
	Op   string
	Path string
	Err  error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("transcript %s %s: %v", w.Op, w.Path, w.Err)
}

func (w *PersistenceWarning) Unwrap() error {
	return w.Err
}

// Config holds transcript store settings.
type Config struct {
	Dir      string
	FileName string
	Rotation RotationConfig
}

// Store appends session markers and turns to the active transcript file.
// Each call opens, writes, syncs and closes the file.
type Store struct {
	mu      sync.Mutex
	path    string
	file    *rotatingFile
	now     func() time.Time
	session *model.Session
	ended   bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source for session markers.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store writing to cfg.Dir/cfg.FileName.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("transcript directory is required")
	}
	name := cfg.FileName
	if name == "" {
		name = DefaultFileName
	}
	if cfg.Rotation.MaxBytes < 0 || cfg.Rotation.MaxBackups < 0 {
		return nil, errors.New("transcript rotation limits must be >= 0")
	}

	path := filepath.Join(cfg.Dir, name)
	s := &Store{
		path: path,
		file: newRotatingFile(path, cfg.Rotation),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the active transcript file path.
func (s *Store) Path() string {
	return s.path
}

// StartSession writes the session header with its start time and topic.
func (s *Store) StartSession(session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && !s.ended {
		return ErrSessionActive
	}
	s.session = &session
	s.ended = false

	at := session.StartedAt
	if at.IsZero() {
		at = s.now()
	}
	return s.write("start_session", formatStart(at, session.ID, session.Topic))
}

// Append writes one turn entry.
func (s *Store) Append(turn model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.ended {
		return ErrNoSession
	}
	return s.write("append", formatEntry(turn.Timestamp, turn.Label(), turn.Text))
}

// EndSession writes the closing marker. It succeeds at most once per
// session; later calls return ErrNoSession.
func (s *Store) EndSession(result model.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.ended {
		return ErrNoSession
	}
	s.ended = true

	at := result.EndedAt
	if at.IsZero() {
		at = s.now()
	}
	return s.write("end_session", formatEnd(at, string(result.Status), result.Reason))
}

func (s *Store) write(op string, p []byte) error {
	if err := s.file.write(p); err != nil {
		return &PersistenceWarning{Op: op, Path: s.path, Err: err}
	}
	return nil
}
