package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Novapool/ParallelTracks/internal/domain"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second
)

// modelMapping translates the five fixed identifiers to provider model ids.
var modelMapping = map[domain.Model]string{
	domain.ModelAnthropic: "anthropic/claude-3.5-sonnet",
	domain.ModelGPT:       "openai/gpt-3.5-turbo",
	domain.ModelGemini:    "google/gemini-2.5-pro",
	domain.ModelGrok:      "x-ai/grok-3",
	domain.ModelDeepseek:  "deepseek/deepseek-chat",
}

type Config struct {
	// BaseURL of the chat-completions API; defaults to OpenRouter.
	BaseURL string
	APIKey  string

	HTTPClient *http.Client

	// Redis caches responses per (question, model) so a resubmitted dilemma
	// never re-queries a model that already answered it.
	Redis  redis.UniversalClient
	Prefix string
}

// Client queries the five models for their answers to a dilemma.
type Client struct {
	baseURL string
	key     string
	hc      *http.Client
	redis   redis.UniversalClient
	prefix  string
}

func NewClient(c Config) *Client {
	cl := &Client{
		baseURL: c.BaseURL,
		key:     c.APIKey,
		hc:      c.HTTPClient,
		redis:   c.Redis,
		prefix:  c.Prefix,
	}
	if cl.baseURL == "" {
		cl.baseURL = defaultBaseURL
	}
	if cl.hc == nil {
		cl.hc = &http.Client{Timeout: defaultTimeout}
	}

	return cl
}

// Responses queries all five models concurrently and returns whatever answers
// were obtained, keyed by model. A model that fails is simply absent from the
// result; an error is returned only when every model failed.
func (c *Client) Responses(ctx context.Context, questionID, text string) (map[domain.Model]string, error) {
	var (
		mu  sync.Mutex
		out = make(map[domain.Model]string, len(modelMapping))
	)

	var eg errgroup.Group
	eg.SetLimit(len(modelMapping))

	for _, m := range domain.Models() {
		m := m
		eg.Go(func() error {
			answer, err := c.response(ctx, questionID, m, text)
			if err != nil {
				slog.WarnContext(ctx, "genai: model query failed", "model", m, "error", err)
				return nil
			}

			mu.Lock()
			out[m] = answer
			mu.Unlock()
			return nil
		})
	}

	_ = eg.Wait()

	if len(out) == 0 {
		return nil, fmt.Errorf("genai: no model produced a response for question %s", questionID)
	}

	return out, nil
}

func (c *Client) response(ctx context.Context, questionID string, m domain.Model, text string) (string, error) {
	if cached, err := c.cached(ctx, questionID, m); err == nil {
		return cached, nil
	} else if err != redis.Nil {
		slog.WarnContext(ctx, "genai: cache read failed", "model", m, "error", err)
	}

	answer, err := c.complete(ctx, m, text)
	if err != nil {
		return "", err
	}

	if err := c.cache(ctx, questionID, m, answer); err != nil {
		slog.WarnContext(ctx, "genai: cache write failed", "model", m, "error", err)
	}

	return answer, nil
}

func (c *Client) cached(ctx context.Context, questionID string, m domain.Model) (string, error) {
	if c.redis == nil {
		return "", redis.Nil
	}
	return c.redis.Get(ctx, c.cacheKey(questionID, m)).Result()
}

func (c *Client) cache(ctx context.Context, questionID string, m domain.Model, answer string) error {
	if c.redis == nil {
		return nil
	}
	// Answers are immutable once generated, so no expiry.
	return c.redis.Set(ctx, c.cacheKey(questionID, m), answer, 0).Err()
}

func (c *Client) cacheKey(questionID string, m domain.Model) string {
	return fmt.Sprintf("%s:responses:%s:%s", c.prefix, questionID, m)
}

// complete performs one chat-completions call.
func (c *Client) complete(ctx context.Context, m domain.Model, text string) (string, error) {
	id, ok := modelMapping[m]
	if !ok {
		return "", fmt.Errorf("unknown model: %s", m)
	}

	body, err := json.Marshal(map[string]any{
		"model": id,
		"messages": []map[string]string{
			{"role": "user", "content": text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", id, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d: %s", id, resp.StatusCode, raw)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", id)
	}

	return parsed.Choices[0].Message.Content, nil
}
