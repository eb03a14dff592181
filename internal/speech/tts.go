package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Novapool/ParallelTracks/internal/domain"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io/v1"
	defaultTimeout   = 120 * time.Second
	defaultPublicDir = "/static/audio"
)

// defaultVoices gives each model a distinct narrator.
var defaultVoices = map[domain.Model]string{
	domain.ModelAnthropic: "21m00Tcm4TlvDq8ikWAM",
	domain.ModelGPT:       "AZnzlk1XvdvUeBnXmlld",
	domain.ModelGemini:    "EXAVITQu4vr4xnSDxMaL",
	domain.ModelGrok:      "ErXwobaYiN019PkySvjV",
	domain.ModelDeepseek:  "MF3mGyEYCl7XYWbV9V6O",
}

type Config struct {
	BaseURL string
	APIKey  string

	// AudioDir is where generated clips are written.
	AudioDir string
	// PublicPath is the URL prefix clips are served under.
	PublicPath string

	// Voices overrides the narrator per model.
	Voices map[domain.Model]string

	HTTPClient *http.Client
}

// Synthesizer turns model answers into narration clips on disk.
type Synthesizer struct {
	baseURL    string
	key        string
	audioDir   string
	publicPath string
	voices     map[domain.Model]string
	hc         *http.Client
}

func NewSynthesizer(c Config) (*Synthesizer, error) {
	s := &Synthesizer{
		baseURL:    c.BaseURL,
		key:        c.APIKey,
		audioDir:   c.AudioDir,
		publicPath: c.PublicPath,
		voices:     c.Voices,
		hc:         c.HTTPClient,
	}
	if s.baseURL == "" {
		s.baseURL = defaultBaseURL
	}
	if s.publicPath == "" {
		s.publicPath = defaultPublicDir
	}
	if s.voices == nil {
		s.voices = defaultVoices
	}
	if s.hc == nil {
		s.hc = &http.Client{Timeout: defaultTimeout}
	}

	if err := os.MkdirAll(s.audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	return s, nil
}

// Narrate synthesizes one clip and returns its public URL path.
func (s *Synthesizer) Narrate(ctx context.Context, m domain.Model, questionID, text string) (string, error) {
	voice, ok := s.voices[m]
	if !ok {
		return "", fmt.Errorf("no voice for model %s", m)
	}

	audio, err := s.synthesize(ctx, voice, text)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s_%s.mp3", m, questionID, shortID())
	if err := os.WriteFile(filepath.Join(s.audioDir, name), audio, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}

	return s.publicPath + "/" + name, nil
}

// NarrateAll synthesizes clips for every answered model concurrently. A model
// whose synthesis fails is simply absent from the result.
func (s *Synthesizer) NarrateAll(ctx context.Context, questionID string, answers map[domain.Model]string) map[domain.Model]string {
	var (
		mu  sync.Mutex
		out = make(map[domain.Model]string, len(answers))
	)

	var eg errgroup.Group
	for m, text := range answers {
		m, text := m, text
		eg.Go(func() error {
			url, err := s.Narrate(ctx, m, questionID, text)
			if err != nil {
				slog.WarnContext(ctx, "speech: narration failed", "model", m, "error", err)
				return nil
			}

			mu.Lock()
			out[m] = url
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

func (s *Synthesizer) synthesize(ctx context.Context, voice, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": "eleven_monolingual_v1",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/text-to-speech/"+voice, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("xi-api-key", s.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tts: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts: status %d: %s", resp.StatusCode, raw)
	}

	return raw, nil
}

// shortID yields the 8-hex suffix that keeps clip names unique per synthesis.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
