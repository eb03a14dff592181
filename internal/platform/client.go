package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Novapool/ParallelTracks/internal/domain"
	"github.com/Novapool/ParallelTracks/internal/errors"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	// BaseURL is the platform's function endpoint root,
	// e.g. https://project.example.co/functions/v1.
	BaseURL string
	// APIKey is sent as a bearer token on every call.
	APIKey string

	HTTPClient *http.Client
}

// Client is a thin wrapper over the hosted voting platform's REST endpoints.
// All persistence, vote-conflict enforcement and tallying happen on the
// platform; the client only shapes requests and maps failures to coded errors.
type Client struct {
	baseURL string
	key     string
	hc      *http.Client
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL: c.BaseURL,
		key:     c.APIKey,
		hc:      hc,
	}
}

// CurrentState fetches the active question, its live vote counts and the
// all-time leaderboard.
func (c *Client) CurrentState(ctx context.Context) (*domain.CurrentState, error) {
	var state domain.CurrentState
	if err := c.call(ctx, http.MethodGet, "get_current_state", nil, &state); err != nil {
		return nil, fmt.Errorf("platform: get current state: %w", err)
	}

	return &state, nil
}

// VoteSubmission is one ballot for the active question.
type VoteSubmission struct {
	QuestionID string       `json:"question_id"`
	Model      domain.Model `json:"ai_model"`
	SessionID  string       `json:"voter_session_id"`
}

// VoteResponse echoes the recorded vote on success.
type VoteResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Vote    *domain.Vote `json:"vote,omitempty"`
}

// SubmitVote casts a ballot. The platform enforces at most one vote per
// (question, session); a duplicate surfaces as CodeAlreadyExists, an inactive
// question as CodeFailedPrecondition and a missing one as CodeNotFound.
func (c *Client) SubmitVote(ctx context.Context, sub VoteSubmission) (*VoteResponse, error) {
	var resp VoteResponse
	if err := c.call(ctx, http.MethodPost, "submit_vote", sub, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// CreateQuestion submits new question text and returns the platform-assigned
// question id. The previously active question becomes inactive.
func (c *Client) CreateQuestion(ctx context.Context, text string) (string, error) {
	body := struct {
		QuestionText string `json:"question_text"`
	}{QuestionText: text}

	var resp struct {
		QuestionID string `json:"question_id"`
	}
	if err := c.call(ctx, http.MethodPost, "create_new_question", body, &resp); err != nil {
		return "", fmt.Errorf("platform: create question: %w", err)
	}

	return resp.QuestionID, nil
}

func (c *Client) call(ctx context.Context, method, fn string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+fn, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Internal(fmt.Errorf("call %s: %w", fn, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Internal(fmt.Errorf("read %s response: %w", fn, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.asError(fn, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Internal(fmt.Errorf("unmarshal %s response: %w", fn, err))
		}
	}

	return nil
}

// asError converts a non-2xx platform response into a coded error carrying
// the server-provided message verbatim when one is present.
func (c *Client) asError(fn string, status int, raw []byte) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(raw, &payload)

	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}

	opts := []errors.Option{
		errors.WithCause(fmt.Errorf("%s: status %d", fn, status)),
	}
	if msg != "" {
		opts = append(opts, errors.WithMessage(msg))
	}

	return errors.New(errors.FromHTTPStatus(status), opts...)
}
