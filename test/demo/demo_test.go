//go:build integration_test

package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Novapool/ParallelTracks/internal/domain"
	"github.com/Novapool/ParallelTracks/internal/platform"
	"github.com/Novapool/ParallelTracks/internal/realtime"
	"github.com/Novapool/ParallelTracks/internal/session"
	"github.com/Novapool/ParallelTracks/internal/voting"
)

// TestVotingRound drives a full round: one active question, three voters
// casting ballots concurrently, live counts converging on every voter's
// screen through the push channel.
func TestVotingRound(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fp := newFakePlatform(t)

	votes := map[domain.Model]int{
		domain.ModelAnthropic: 2,
		domain.ModelGrok:      1,
	}

	// Every voter loads the state and subscribes before anyone votes.
	type voter struct {
		ctrl  *voting.Controller
		model domain.Model
	}

	var voters []voter
	for m, n := range votes {
		for i := 0; i < n; i++ {
			st, err := session.NewStore(session.Config{Dir: t.TempDir()})
			require.NoError(t, err)

			ctrl := voting.NewController(voting.Config{
				Platform: platform.NewClient(platform.Config{BaseURL: fp.httpURL}),
				Session:  st,
			})
			ctrl.Load(ctx)
			require.True(t, ctrl.CanVote(fp.questionID))

			sub, err := realtime.NewSubscriber(realtime.Config{URL: fp.wsURL}).Subscribe(ctx, fp.questionID)
			require.NoError(t, err)
			t.Cleanup(func() { sub.Close() })
			go func() {
				for e := range sub.Events() {
					ctrl.ApplyVote(e)
				}
			}()

			voters = append(voters, voter{ctrl: ctrl, model: m})
		}
	}

	// All ballots go in concurrently.
	var eg errgroup.Group
	for _, v := range voters {
		v := v
		eg.Go(func() error {
			v.ctrl.Submit(ctx, v.model)
			if snap := v.ctrl.Snapshot(); snap.Status != voting.StatusSuccess {
				return fmt.Errorf("vote for %s not accepted: %q", v.model, snap.Banner)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	// Every voter's counts converge on the authoritative tally.
	require.Eventually(t, func() bool {
		for _, v := range voters {
			got := map[domain.Model]int{}
			for _, c := range v.ctrl.Snapshot().Counts {
				got[c.Model] = c.Count
			}
			if got[domain.ModelAnthropic] != 2 || got[domain.ModelGrok] != 1 {
				return false
			}
		}
		return true
	}, 10*time.Second, 50*time.Millisecond)

	// A fresh session gets one ballot, then its controls disable.
	st, err := session.NewStore(session.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	ctrl := voting.NewController(voting.Config{
		Platform: platform.NewClient(platform.Config{BaseURL: fp.httpURL}),
		Session:  st,
	})
	ctrl.Load(ctx)

	ctrl.Submit(ctx, domain.ModelGemini)
	require.Equal(t, voting.StatusSuccess, ctrl.Snapshot().Status)
	require.False(t, ctrl.CanVote(fp.questionID))
}

// fakePlatform is an in-process stand-in for the hosted voting platform:
// state and ballots over HTTP, row inserts pushed over a websocket.
type fakePlatform struct {
	t          *testing.T
	questionID string

	httpURL string
	wsURL   string

	mu    sync.Mutex
	votes map[string]domain.Model // session id -> model
	conns []*websocket.Conn
}

func newFakePlatform(t *testing.T) *fakePlatform {
	fp := &fakePlatform{
		t:          t,
		questionID: uuid.NewString(),
		votes:      map[string]domain.Model{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/get_current_state", fp.currentState)
	mux.HandleFunc("/submit_vote", fp.submitVote)
	mux.HandleFunc("/realtime", fp.subscribe)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fp.httpURL = srv.URL
	fp.wsURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime"
	return fp
}

func (fp *fakePlatform) currentState(w http.ResponseWriter, _ *http.Request) {
	fp.mu.Lock()
	counts := map[domain.Model]int{}
	for _, m := range fp.votes {
		counts[m]++
	}
	fp.mu.Unlock()

	state := domain.CurrentState{
		ActiveQuestion: &domain.Question{
			ID:     fp.questionID,
			Text:   "Pull the lever or do nothing?",
			Status: domain.QuestionStatusActive,
		},
	}
	for m, n := range counts {
		state.VoteCounts = append(state.VoteCounts, domain.VoteCount{Model: m, Count: n})
	}

	_ = json.NewEncoder(w).Encode(state)
}

func (fp *fakePlatform) submitVote(w http.ResponseWriter, r *http.Request) {
	var sub struct {
		QuestionID string       `json:"question_id"`
		Model      domain.Model `json:"ai_model"`
		SessionID  string       `json:"voter_session_id"`
	}
	require.NoError(fp.t, json.NewDecoder(r.Body).Decode(&sub))

	fp.mu.Lock()
	if _, dup := fp.votes[sub.SessionID]; dup {
		fp.mu.Unlock()
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "already voted"})
		return
	}
	fp.votes[sub.SessionID] = sub.Model

	// Writes are serialized under the lock; gorilla conns allow one writer.
	push, _ := json.Marshal(map[string]any{
		"type": "vote_insert",
		"data": domain.VoteEvent{QuestionID: sub.QuestionID, Model: sub.Model},
	})
	for _, c := range fp.conns {
		_ = c.WriteMessage(websocket.TextMessage, push)
	}
	fp.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (fp *fakePlatform) subscribe(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	require.NoError(fp.t, err)

	fp.mu.Lock()
	fp.conns = append(fp.conns, conn)
	fp.mu.Unlock()

	// Keep the socket alive; answer pings until the client goes away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
