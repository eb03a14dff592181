package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Novapool/ParallelTracks/internal/session"
)

func TestStore_ID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := session.NewStore(session.Config{Dir: dir})
	require.NoError(t, err)

	id := s.ID()
	_, err = uuid.Parse(id)
	require.NoError(t, err, "session id should be a UUID")

	// Reopening the same directory keeps the identity.
	s2, err := session.NewStore(session.Config{Dir: dir})
	require.NoError(t, err)
	require.Equal(t, id, s2.ID())

	// A fresh directory gets a fresh identity.
	s3, err := session.NewStore(session.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NotEqual(t, id, s3.ID())
}

func TestStore_VotedQuestions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := session.NewStore(session.Config{Dir: dir})
	require.NoError(t, err)

	require.False(t, s.HasVoted("q1"))

	require.NoError(t, s.MarkVoted("q1"))
	require.True(t, s.HasVoted("q1"))
	require.False(t, s.HasVoted("q2"))

	// Idempotent.
	require.NoError(t, s.MarkVoted("q1"))

	// Survives reopening.
	s2, err := session.NewStore(session.Config{Dir: dir})
	require.NoError(t, err)
	require.True(t, s2.HasVoted("q1"))
	require.False(t, s2.HasVoted("q2"))
}

func TestStore_CorruptVotedList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "voted_questions.json"), []byte("not json"), 0o644))

	_, err := session.NewStore(session.Config{Dir: dir})
	require.Error(t, err)
}
