package domain

import "time"

// Model identifies one of the five contributing AI systems.
type Model string

const (
	ModelAnthropic Model = "anthropic"
	ModelGPT       Model = "gpt"
	ModelGemini    Model = "gemini"
	ModelGrok      Model = "grok"
	ModelDeepseek  Model = "deepseek"
)

// ModelInfo carries the display attributes of a model.
type ModelInfo struct {
	ID    Model
	Label string
	Color string
}

// Registry is the single ordered model table. The order is the playback
// priority order of the display surface; views iterate it in the same order.
var Registry = []ModelInfo{
	{ID: ModelAnthropic, Label: "Claude", Color: "#D97757"},
	{ID: ModelGPT, Label: "ChatGPT", Color: "#10A37F"},
	{ID: ModelGemini, Label: "Gemini", Color: "#8E75F0"},
	{ID: ModelGrok, Label: "Grok", Color: "#1D9BF0"},
	{ID: ModelDeepseek, Label: "DeepSeek", Color: "#4A90E2"},
}

// Models returns the model identifiers in registry order.
func Models() []Model {
	ms := make([]Model, 0, len(Registry))
	for _, info := range Registry {
		ms = append(ms, info.ID)
	}
	return ms
}

// ValidModel reports whether m is one of the five fixed identifiers.
func ValidModel(m Model) bool {
	for _, info := range Registry {
		if info.ID == m {
			return true
		}
	}
	return false
}

// LabelOf returns the display label for m, or the raw identifier for an
// unknown model.
func LabelOf(m Model) string {
	for _, info := range Registry {
		if info.ID == m {
			return info.Label
		}
	}
	return string(m)
}

const (
	QuestionStatusActive   = "active"
	QuestionStatusInactive = "inactive"
)

// Question is the active dilemma. Owned and mutated by the external platform;
// at most one question is active at a time.
type Question struct {
	ID     string `json:"id"`
	Text   string `json:"question"`
	Status string `json:"status"`
}

// Answer is one model's response to a question, with optional narration audio
// and illustration. Read-only after submission.
type Answer struct {
	Model    Model  `json:"ai_model"`
	Text     string `json:"text"`
	AudioURL string `json:"audio_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Vote is a single ballot. Uniqueness per (question, session) is enforced by
// the external store, not locally.
type Vote struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	Model      Model     `json:"ai_model"`
	SessionID  string    `json:"voter_session_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// VoteCount is the derived per-model aggregate for the active question.
type VoteCount struct {
	Model Model `json:"ai_model"`
	Count int   `json:"count"`
}

// LeaderboardEntry is the externally recomputed all-time aggregate per model.
type LeaderboardEntry struct {
	Model             Model `json:"ai_model"`
	TotalWins         int   `json:"total_wins"`
	TotalVotes        int   `json:"total_votes"`
	QuestionsAnswered int   `json:"questions_answered"`
}

// CurrentState is the snapshot returned by the platform's state endpoint.
type CurrentState struct {
	ActiveQuestion *Question          `json:"active_question"`
	VoteCounts     []VoteCount        `json:"vote_counts"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
}

// VoteEvent is a single row-insert delivered over the realtime channel.
type VoteEvent struct {
	QuestionID string `json:"question_id"`
	Model      Model  `json:"ai_model"`
}
