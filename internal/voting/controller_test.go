package voting_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Novapool/ParallelTracks/internal/domain"
	"github.com/Novapool/ParallelTracks/internal/errors"
	"github.com/Novapool/ParallelTracks/internal/platform"
	"github.com/Novapool/ParallelTracks/internal/session"
	"github.com/Novapool/ParallelTracks/internal/voting"
)

type fakePlatform struct {
	mu        sync.Mutex
	state     *domain.CurrentState
	stateErr  error
	voteErr   error
	submitted []platform.VoteSubmission
}

func (f *fakePlatform) CurrentState(ctx context.Context) (*domain.CurrentState, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	return f.state, nil
}

func (f *fakePlatform) SubmitVote(ctx context.Context, sub platform.VoteSubmission) (*platform.VoteResponse, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, sub)
	f.mu.Unlock()

	if f.voteErr != nil {
		return nil, f.voteErr
	}
	return &platform.VoteResponse{Success: true, Message: "Vote recorded"}, nil
}

// fakeTimers captures scheduled banner clears so tests can fire them manually.
type fakeTimers struct {
	mu        sync.Mutex
	durations []time.Duration
	fns       []func()
}

func (f *fakeTimers) afterFunc(d time.Duration, fn func()) *time.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.durations = append(f.durations, d)
	f.fns = append(f.fns, fn)
	return time.AfterFunc(time.Hour, func() {})
}

func (f *fakeTimers) fireLast() {
	f.mu.Lock()
	fn := f.fns[len(f.fns)-1]
	f.mu.Unlock()
	fn()
}

type controllerOpts struct {
	platform *fakePlatform
	voted    []string
}

func makeController(t *testing.T, opts controllerOpts) (*voting.Controller, *fakeTimers) {
	t.Helper()

	ss, err := session.NewStore(session.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	for _, q := range opts.voted {
		require.NoError(t, ss.MarkVoted(q))
	}

	p := opts.platform
	if p == nil {
		p = &fakePlatform{}
	}
	if p.state == nil && p.stateErr == nil {
		p.state = &domain.CurrentState{
			ActiveQuestion: &domain.Question{ID: "q1", Text: "Pull the lever?", Status: "active"},
		}
	}

	ft := &fakeTimers{}
	c := voting.NewController(voting.Config{
		Platform:  p,
		Session:   ss,
		AfterFunc: ft.afterFunc,
	})
	c.Load(context.Background())

	return c, ft
}

func TestController_ApplyVote(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{state: &domain.CurrentState{
		ActiveQuestion: &domain.Question{ID: "q1", Text: "Pull the lever?", Status: "active"},
		VoteCounts:     []domain.VoteCount{{Model: domain.ModelAnthropic, Count: 3}},
	}}
	c, _ := makeController(t, controllerOpts{platform: p})

	// A model without an entry is appended at count 1.
	c.ApplyVote(domain.VoteEvent{QuestionID: "q1", Model: domain.ModelGPT})
	require.ElementsMatch(t, []domain.VoteCount{
		{Model: domain.ModelAnthropic, Count: 3},
		{Model: domain.ModelGPT, Count: 1},
	}, c.Snapshot().Counts)

	// An existing entry is incremented in place.
	c.ApplyVote(domain.VoteEvent{QuestionID: "q1", Model: domain.ModelAnthropic})
	require.ElementsMatch(t, []domain.VoteCount{
		{Model: domain.ModelAnthropic, Count: 4},
		{Model: domain.ModelGPT, Count: 1},
	}, c.Snapshot().Counts)

	// Votes for another question are ignored.
	c.ApplyVote(domain.VoteEvent{QuestionID: "q2", Model: domain.ModelGrok})
	require.Len(t, c.Snapshot().Counts, 2)
}

func TestController_CanVote(t *testing.T) {
	t.Parallel()

	c, _ := makeController(t, controllerOpts{voted: []string{"q1"}})

	require.False(t, c.CanVote("q1"), "controls for an already-voted question render disabled")
	require.True(t, c.CanVote("q2"), "controls for an unvoted question render enabled")
}

func TestController_Submit(t *testing.T) {
	tests := map[string]struct {
		voteErr    error
		wantBanner string
		wantStatus voting.Status
		wantTTL    time.Duration
		wantVoted  bool
	}{
		"success shows the success banner for 3 seconds and marks the session": {
			wantBanner: voting.MsgVoteRecorded,
			wantStatus: voting.StatusSuccess,
			wantTTL:    3 * time.Second,
			wantVoted:  true,
		},

		"conflict surfaces the fixed already-voted message": {
			voteErr:    errors.New(errors.CodeAlreadyExists),
			wantBanner: "You have already voted on this question.",
			wantStatus: voting.StatusError,
			wantTTL:    5 * time.Second,
		},

		"inactive question surfaces the fixed closed message": {
			voteErr:    errors.New(errors.CodeFailedPrecondition),
			wantBanner: voting.MsgQuestionClosed,
			wantStatus: voting.StatusError,
			wantTTL:    5 * time.Second,
		},

		"missing question surfaces the fixed not-found message": {
			voteErr:    errors.New(errors.CodeNotFound),
			wantBanner: voting.MsgQuestionNotFound,
			wantStatus: voting.StatusError,
			wantTTL:    5 * time.Second,
		},

		"any other failure surfaces the generic message": {
			voteErr:    errors.Internal(context.DeadlineExceeded),
			wantBanner: voting.MsgVoteFailed,
			wantStatus: voting.StatusError,
			wantTTL:    5 * time.Second,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := &fakePlatform{voteErr: tt.voteErr}
			c, ft := makeController(t, controllerOpts{platform: p})

			c.Submit(context.Background(), domain.ModelGemini)

			v := c.Snapshot()
			require.Equal(t, tt.wantStatus, v.Status)
			require.Equal(t, tt.wantBanner, v.Banner)
			require.Equal(t, tt.wantVoted, v.HasVoted)
			require.Equal(t, []time.Duration{tt.wantTTL}, ft.durations)

			// The banner auto-clears when the timer fires.
			ft.fireLast()
			v = c.Snapshot()
			require.Equal(t, voting.StatusIdle, v.Status)
			require.Empty(t, v.Banner)
		})
	}
}

func TestController_SubmitOnlyOnce(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{}
	c, _ := makeController(t, controllerOpts{platform: p})

	c.Submit(context.Background(), domain.ModelGrok)
	c.Submit(context.Background(), domain.ModelGPT)

	require.Len(t, p.submitted, 1, "a voted session must not submit again")
	require.Equal(t, domain.ModelGrok, p.submitted[0].Model)
	require.False(t, c.CanVote("q1"))
}

func TestController_LoadError(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{stateErr: errors.New(errors.CodeInternal, errors.WithMessage("platform unavailable"))}
	c, _ := makeController(t, controllerOpts{platform: p})

	v := c.Snapshot()
	require.False(t, v.Loading)
	require.Equal(t, "platform unavailable", v.LoadError)
	require.Nil(t, v.Question)
}
