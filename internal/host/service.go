package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/Novapool/ParallelTracks/internal/domain"
	"github.com/Novapool/ParallelTracks/internal/event"
	"github.com/Novapool/ParallelTracks/internal/telemetry"
)

const (
	minQuestionLen = 10
	maxQuestionLen = 5000
)

// audioNamePattern limits clip serving to names our synthesizer produces.
var audioNamePattern = regexp.MustCompile(`^[a-z0-9_-]+\.mp3$`)

type Platform interface {
	CreateQuestion(ctx context.Context, text string) (string, error)
}

type GenAI interface {
	Responses(ctx context.Context, questionID, text string) (map[domain.Model]string, error)
}

type Speech interface {
	NarrateAll(ctx context.Context, questionID string, answers map[domain.Model]string) map[domain.Model]string
}

type Config struct {
	Platform Platform
	GenAI    GenAI
	Speech   Speech
	EventBus *event.Bus

	// AudioDir is where narration clips live on disk.
	AudioDir string

	// SubmitRate caps question submissions per client IP.
	SubmitRate  rate.Limit
	SubmitBurst int

	// DevCommand, when set, enables the /api/get-responses shim which
	// shells out for canned model responses. Never set in production.
	DevCommand []string
}

// Service hosts the question-submission surface of the show.
type Service struct {
	platform Platform
	genai    GenAI
	speech   Speech
	eb       *event.Bus

	audioDir string

	devCommand []string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewService(c Config) *Service {
	s := &Service{
		platform:   c.Platform,
		genai:      c.GenAI,
		speech:     c.Speech,
		eb:         c.EventBus,
		audioDir:   c.AudioDir,
		devCommand: c.DevCommand,
		limiters:   make(map[string]*rate.Limiter),
		limit:      c.SubmitRate,
		burst:      c.SubmitBurst,
	}
	if s.limit == 0 {
		s.limit = rate.Limit(10.0 / 60.0)
	}
	if s.burst == 0 {
		s.burst = 10
	}

	return s
}

func (s *Service) Register(r gin.IRouter) {
	r.POST("/submit_question", s.rateLimited, s.submitQuestion)
	r.GET("/static/audio/:filename", s.serveAudio)

	if len(s.devCommand) > 0 {
		r.GET("/api/get-responses", s.devResponses)
	}
}

type submitQuestionRequest struct {
	QuestionText string `json:"question_text"`
}

type submitQuestionResponse struct {
	QuestionID   string                  `json:"question_id"`
	QuestionText string                  `json:"question_text"`
	Responses    map[domain.Model]string `json:"responses"`
	AudioFiles   map[domain.Model]string `json:"audio_files"`
}

func (s *Service) submitQuestion(c *gin.Context) {
	var req submitQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question text required"})
		return
	}

	text := strings.TrimSpace(req.QuestionText)
	switch {
	case text == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question text required"})
		return
	case utf8.RuneCountInString(text) < minQuestionLen:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question text too short (min 10 characters)"})
		return
	case utf8.RuneCountInString(text) > maxQuestionLen:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question text too long (max 5000 characters)"})
		return
	}

	ctx := c.Request.Context()

	questionID, err := s.platform.CreateQuestion(ctx, text)
	if err != nil {
		slog.ErrorContext(ctx, "host: create question failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
		return
	}

	responses, err := s.genai.Responses(ctx, questionID, text)
	if err != nil {
		slog.ErrorContext(ctx, "host: model responses failed", "question_id", questionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get responses from AI models"})
		return
	}

	audio := s.speech.NarrateAll(ctx, questionID, responses)

	telemetry.QuestionsSubmitted.Inc()

	if s.eb != nil {
		answers := make(map[domain.Model]domain.Answer, len(responses))
		for m, answer := range responses {
			answers[m] = domain.Answer{
				Model:    m,
				Text:     answer,
				AudioURL: audio[m],
			}
		}
		s.eb.Publish(ctx, domain.EventQuestionSubmitted{
			Question: domain.Question{ID: questionID, Text: text, Status: domain.QuestionStatusActive},
			Answers:  answers,
		})
	}

	c.JSON(http.StatusOK, submitQuestionResponse{
		QuestionID:   questionID,
		QuestionText: text,
		Responses:    responses,
		AudioFiles:   audio,
	})
}

func (s *Service) serveAudio(c *gin.Context) {
	name := c.Param("filename")
	if !audioNamePattern.MatchString(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio file not found"})
		return
	}

	path := filepath.Join(s.audioDir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio file not found"})
		return
	}

	c.File(path)
}

// devResponses shells out for canned responses so the UI can be exercised
// without burning API credits.
func (s *Service) devResponses(c *gin.Context) {
	out, err := exec.CommandContext(c.Request.Context(), s.devCommand[0], s.devCommand[1:]...).Output()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "host: dev responses command failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get responses from AI models"})
		return
	}

	var parsed map[string]any
	if err := json.Unmarshal(out, &parsed); err != nil {
		slog.ErrorContext(c.Request.Context(), "host: dev responses output is not JSON", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get responses from AI models"})
		return
	}

	c.JSON(http.StatusOK, parsed)
}

func (s *Service) rateLimited(c *gin.Context) {
	if !s.limiter(c.ClientIP()).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many submissions, slow down"})
		return
	}
	c.Next()
}

func (s *Service) limiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[ip] = l
	}
	return l
}
