package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Novapool/ParallelTracks/internal/domain"
)

func makeSynthesizer(t *testing.T, handler http.Handler) (*Synthesizer, string) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	s, err := NewSynthesizer(Config{
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		AudioDir: dir,
	})
	require.NoError(t, err)

	return s, dir
}

func TestSynthesizer_Narrate(t *testing.T) {
	t.Parallel()

	s, dir := makeSynthesizer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		require.True(t, strings.HasPrefix(r.URL.Path, "/text-to-speech/"))

		_, _ = w.Write([]byte("mp3-bytes"))
	}))

	url, err := s.Narrate(context.Background(), domain.ModelAnthropic, "q-1", "Pull the lever.")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^/static/audio/anthropic_q-1_[0-9a-f]{8}\.mp3$`), url)

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
}

func TestSynthesizer_NarrateAll(t *testing.T) {
	t.Parallel()

	s, _ := makeSynthesizer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The grok voice is down; everyone else narrates fine.
		if strings.HasSuffix(r.URL.Path, defaultVoices[domain.ModelGrok]) {
			http.Error(w, "voice unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("mp3-bytes"))
	}))

	got := s.NarrateAll(context.Background(), "q-1", map[domain.Model]string{
		domain.ModelAnthropic: "Pull the lever.",
		domain.ModelGrok:      "Do nothing.",
		domain.ModelDeepseek:  "Pull the lever.",
	})

	assert.Len(t, got, 2)
	assert.Contains(t, got, domain.ModelAnthropic)
	assert.Contains(t, got, domain.ModelDeepseek)
	assert.NotContains(t, got, domain.ModelGrok)
}
