package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Novapool/ParallelTracks/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Config struct {
	// URL is the platform's push-channel websocket endpoint.
	URL string
	// APIKey is sent as a bearer token during the handshake.
	APIKey string

	Dialer *websocket.Dialer
}

// Subscriber wraps the platform's push channel. Each Subscribe opens one
// socket filtered by question id and delivers the inserted vote rows in
// arrival order. There is no deduplication by event id and no reconciliation
// against the authoritative aggregate; a missed or duplicated delivery drifts
// the local counts until the next full fetch.
type Subscriber struct {
	url    string
	key    string
	dialer *websocket.Dialer
}

func NewSubscriber(c Config) *Subscriber {
	d := c.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}

	return &Subscriber{
		url:    c.URL,
		key:    c.APIKey,
		dialer: d,
	}
}

// Subscribe opens a push channel for row inserts on the given question.
// The returned subscription's Events channel closes when the socket drops,
// the context is canceled, or Close is called.
func (s *Subscriber) Subscribe(ctx context.Context, questionID string) (*Subscription, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("realtime: parse url: %w", err)
	}
	q := u.Query()
	q.Set("question_id", questionID)
	u.RawQuery = q.Encode()

	h := http.Header{}
	if s.key != "" {
		h.Set("Authorization", "Bearer "+s.key)
	}

	conn, _, err := s.dialer.DialContext(ctx, u.String(), h)
	if err != nil {
		return nil, fmt.Errorf("realtime: dial %s: %w", u.String(), err)
	}

	sub := &Subscription{
		questionID: questionID,
		conn:       conn,
		events:     make(chan domain.VoteEvent, 16),
		done:       make(chan struct{}),
	}

	go sub.readLoop(ctx)
	go sub.pingLoop()

	return sub, nil
}

// Subscription is one live push channel. Closing it tears down the socket,
// mirroring component unmount in the voting view.
type Subscription struct {
	questionID string
	conn       *websocket.Conn
	events     chan domain.VoteEvent

	closeOnce sync.Once
	done      chan struct{}
}

// Events delivers inserted votes for the subscribed question, in order.
func (s *Subscription) Events() <-chan domain.VoteEvent {
	return s.events
}

// Close tears down the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// message is the wire envelope pushed by the platform on row insert.
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Subscription) readLoop(ctx context.Context) {
	defer func() {
		s.Close()
		close(s.events)
	}()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.WarnContext(ctx, "realtime: channel closed unexpectedly", "error", err)
			}
			return
		}

		var m message
		if err := json.Unmarshal(raw, &m); err != nil {
			slog.WarnContext(ctx, "realtime: drop unparseable message", "error", err)
			continue
		}
		if m.Type != "vote_insert" {
			continue
		}

		var e domain.VoteEvent
		if err := json.Unmarshal(m.Data, &e); err != nil {
			slog.WarnContext(ctx, "realtime: drop unparseable vote", "error", err)
			continue
		}

		// The server already filters by question id; guard anyway so a stale
		// channel never leaks votes from a superseded question.
		if e.QuestionID != "" && e.QuestionID != s.questionID {
			continue
		}

		select {
		case s.events <- e:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) pingLoop() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
