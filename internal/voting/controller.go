package voting

import (
	"context"
	"sync"
	"time"

	"github.com/Novapool/ParallelTracks/internal/domain"
	"github.com/Novapool/ParallelTracks/internal/errors"
	"github.com/Novapool/ParallelTracks/internal/event"
	"github.com/Novapool/ParallelTracks/internal/platform"
	"github.com/Novapool/ParallelTracks/internal/telemetry"
)

// Fixed user-facing messages per failure case.
const (
	MsgAlreadyVoted     = "You have already voted on this question."
	MsgQuestionClosed   = "This question is no longer active."
	MsgQuestionNotFound = "Question not found."
	MsgVoteFailed       = "Failed to submit vote."
	MsgVoteRecorded     = "Vote submitted successfully!"
)

const (
	successBannerTTL = 3 * time.Second
	errorBannerTTL   = 5 * time.Second
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

type Platform interface {
	CurrentState(ctx context.Context) (*domain.CurrentState, error)
	SubmitVote(ctx context.Context, sub platform.VoteSubmission) (*platform.VoteResponse, error)
}

type Session interface {
	ID() string
	HasVoted(questionID string) bool
	MarkVoted(questionID string) error
}

type Config struct {
	Platform Platform
	Session  Session

	// EventBus, when set, feeds observed votes into the live counts.
	EventBus *event.Bus

	// OnChange is invoked after every state change, for re-rendering.
	OnChange func()

	// AfterFunc schedules the banner auto-clear; defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) *time.Timer
}

// Controller holds the voting view's state: the fetched snapshot, the live
// vote counts merged optimistically from push events, and the timed status
// banner. The merge applies events in delivery order with no deduplication,
// so counts can drift from the authoritative aggregate if deliveries are
// missed or duplicated; only a fresh Load resynchronizes.
type Controller struct {
	platform  Platform
	session   Session
	onChange  func()
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu          sync.Mutex
	loading     bool
	loadErr     string
	question    *domain.Question
	counts      []domain.VoteCount
	leaderboard []domain.LeaderboardEntry

	status      Status
	banner      string
	bannerTimer *time.Timer
	hasVoted    bool
}

func NewController(c Config) *Controller {
	ctl := &Controller{
		platform:  c.Platform,
		session:   c.Session,
		onChange:  c.OnChange,
		afterFunc: c.AfterFunc,
		status:    StatusIdle,
	}
	if ctl.onChange == nil {
		ctl.onChange = func() {}
	}
	if ctl.afterFunc == nil {
		ctl.afterFunc = time.AfterFunc
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameVoteObserved, func(ctx context.Context, e event.Event) error {
			ctl.ApplyVote(e.(domain.EventVoteObserved).Vote)
			return nil
		})
	}

	return ctl
}

// Load fetches the current state. There is no automatic retry; a failure
// leaves the error on the view until the caller loads again.
func (c *Controller) Load(ctx context.Context) {
	c.mu.Lock()
	c.loading = true
	c.loadErr = ""
	c.mu.Unlock()
	c.onChange()

	state, err := c.platform.CurrentState(ctx)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.loadErr = errors.Convert(err).Message
		c.mu.Unlock()
		c.onChange()
		return
	}

	c.question = state.ActiveQuestion
	c.counts = append([]domain.VoteCount(nil), state.VoteCounts...)
	c.leaderboard = append([]domain.LeaderboardEntry(nil), state.Leaderboard...)
	c.hasVoted = c.question != nil && c.session.HasVoted(c.question.ID)
	c.mu.Unlock()
	c.onChange()
}

// ApplyVote merges one observed vote into the live counts: the matching
// model's count is incremented, or a new entry is appended at count 1.
func (c *Controller) ApplyVote(e domain.VoteEvent) {
	c.mu.Lock()

	if c.question == nil || (e.QuestionID != "" && e.QuestionID != c.question.ID) {
		c.mu.Unlock()
		return
	}

	telemetry.VotesObserved.Inc()

	merged := false
	for i := range c.counts {
		if c.counts[i].Model == e.Model {
			c.counts[i].Count++
			merged = true
			break
		}
	}
	if !merged {
		c.counts = append(c.counts, domain.VoteCount{Model: e.Model, Count: 1})
	}

	c.mu.Unlock()
	c.onChange()
}

// CanVote reports whether voting controls for the question should be enabled:
// false once this session has voted on it or while a submission is in flight.
func (c *Controller) CanVote(questionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusSubmitting {
		return false
	}
	if c.question != nil && c.question.ID == questionID && c.hasVoted {
		return false
	}
	return !c.session.HasVoted(questionID)
}

// Submit casts a vote for the model on the active question.
func (c *Controller) Submit(ctx context.Context, m domain.Model) {
	c.mu.Lock()
	if c.question == nil || c.status == StatusSubmitting || c.hasVoted {
		c.mu.Unlock()
		return
	}

	questionID := c.question.ID
	if c.session.HasVoted(questionID) {
		c.hasVoted = true
		c.mu.Unlock()
		c.onChange()
		return
	}

	c.status = StatusSubmitting
	c.clearBannerTimer()
	c.banner = ""
	c.mu.Unlock()
	c.onChange()

	_, err := c.platform.SubmitVote(ctx, platform.VoteSubmission{
		QuestionID: questionID,
		Model:      m,
		SessionID:  c.session.ID(),
	})

	c.mu.Lock()
	if err != nil {
		c.status = StatusError
		c.banner = submitErrorMessage(err)
		c.scheduleBannerClear(errorBannerTTL)
		c.mu.Unlock()
		c.onChange()
		return
	}

	c.hasVoted = true
	c.status = StatusSuccess
	c.banner = MsgVoteRecorded
	c.scheduleBannerClear(successBannerTTL)
	c.mu.Unlock()

	// Local record only changes after a confirmed vote.
	_ = c.session.MarkVoted(questionID)
	c.onChange()
}

func submitErrorMessage(err error) string {
	switch errors.CodeOf(err) {
	case errors.CodeAlreadyExists:
		return MsgAlreadyVoted
	case errors.CodeFailedPrecondition:
		return MsgQuestionClosed
	case errors.CodeNotFound:
		return MsgQuestionNotFound
	default:
		return MsgVoteFailed
	}
}

// scheduleBannerClear must be called with the lock held.
func (c *Controller) scheduleBannerClear(ttl time.Duration) {
	c.clearBannerTimer()
	c.bannerTimer = c.afterFunc(ttl, func() {
		c.mu.Lock()
		c.status = StatusIdle
		c.banner = ""
		c.mu.Unlock()
		c.onChange()
	})
}

// clearBannerTimer must be called with the lock held.
func (c *Controller) clearBannerTimer() {
	if c.bannerTimer != nil {
		c.bannerTimer.Stop()
		c.bannerTimer = nil
	}
}

// View is a render snapshot of the controller state.
type View struct {
	Loading     bool
	LoadError   string
	Question    *domain.Question
	Counts      []domain.VoteCount
	Leaderboard []domain.LeaderboardEntry
	Status      Status
	Banner      string
	HasVoted    bool
}

// Snapshot copies the current state for rendering.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Loading:     c.loading,
		LoadError:   c.loadErr,
		Counts:      append([]domain.VoteCount(nil), c.counts...),
		Leaderboard: append([]domain.LeaderboardEntry(nil), c.leaderboard...),
		Status:      c.status,
		Banner:      c.banner,
		HasVoted:    c.hasVoted,
	}
	if c.question != nil {
		q := *c.question
		v.Question = &q
	}
	return v
}
