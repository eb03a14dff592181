package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Storage keys, kept as the two fixed file names of the persisted state.
const (
	sessionIDFile = "voter_session_id"
	votedFile     = "voted_questions.json"
)

type Config struct {
	// Dir is the directory holding the persisted session state.
	Dir string
}

// Store is the client-local pseudo-identity: a generated session id plus the
// list of question ids this session has already voted on. Both are plain text
// on disk with no expiry. Clearing the directory allows a repeat vote; that is
// an accepted weakness of the anonymous-session model, not something the
// store defends against.
type Store struct {
	mu    sync.Mutex
	dir   string
	id    string
	voted []string
}

// NewStore opens the session state under c.Dir, creating the directory and a
// fresh session id on first use.
func NewStore(c Config) (*Store, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create dir: %w", err)
	}

	s := &Store{dir: c.Dir}

	if err := s.loadID(); err != nil {
		return nil, err
	}
	if err := s.loadVoted(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) loadID() error {
	p := filepath.Join(s.dir, sessionIDFile)

	b, err := os.ReadFile(p)
	switch {
	case err == nil:
		s.id = strings.TrimSpace(string(b))
		if s.id != "" {
			return nil
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("session: read id: %w", err)
	}

	s.id = uuid.NewString()
	if err := os.WriteFile(p, []byte(s.id+"\n"), 0o644); err != nil {
		return fmt.Errorf("session: write id: %w", err)
	}

	return nil
}

func (s *Store) loadVoted() error {
	p := filepath.Join(s.dir, votedFile)

	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: read voted questions: %w", err)
	}

	if err := json.Unmarshal(b, &s.voted); err != nil {
		return fmt.Errorf("session: parse voted questions: %w", err)
	}

	return nil
}

// ID returns the session identifier.
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.id
}

// HasVoted reports whether this session already voted on the question.
func (s *Store) HasVoted(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.voted {
		if id == questionID {
			return true
		}
	}
	return false
}

// MarkVoted records a cast vote for the question. Idempotent.
func (s *Store) MarkVoted(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.voted {
		if id == questionID {
			return nil
		}
	}
	s.voted = append(s.voted, questionID)

	b, err := json.Marshal(s.voted)
	if err != nil {
		return fmt.Errorf("session: marshal voted questions: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, votedFile), b, 0o644); err != nil {
		return fmt.Errorf("session: write voted questions: %w", err)
	}

	return nil
}
