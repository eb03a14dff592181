package playback

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Novapool/ParallelTracks/internal/domain"
	"github.com/Novapool/ParallelTracks/internal/telemetry"
)

const (
	// DefaultPreRoll is the delay between arming and the first clip.
	DefaultPreRoll = 1500 * time.Millisecond
	// DefaultGap is the pause between consecutive clips.
	DefaultGap = 500 * time.Millisecond
)

type Config struct {
	// Players holds one audio element per model. Models absent from the map
	// have no narration and are skipped.
	Players map[domain.Model]Player

	Unlock    Unlocker
	Prompt    Prompter
	Subtitles SubtitleSink

	PreRoll time.Duration
	Gap     time.Duration

	// AfterFunc schedules the pre-roll and inter-clip delays; defaults to
	// time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) *time.Timer

	// OnComplete fires once when an auto-sequence reaches the end of the
	// model order.
	OnComplete func()
}

// Sequencer plays the five narrations back to back in registry order, each
// with a full-text subtitle, gated on all clips having loaded and on the
// autoplay unlock. All state is owned by one instance created per question
// cycle surface; every transition runs as a reaction to an external event
// (load completion, clip end, unlock activation, manual play, timer firing).
type Sequencer struct {
	players    map[domain.Model]Player
	order      []domain.Model
	unlock     Unlocker
	prompt     Prompter
	subtitles  SubtitleSink
	preRoll    time.Duration
	gap        time.Duration
	afterFunc  func(d time.Duration, f func()) *time.Timer
	onComplete func()

	mu         sync.Mutex
	cycle      int
	questionID string
	answers    map[domain.Model]domain.Answer
	loaded     map[domain.Model]bool
	armed      bool
	unlocked   bool
	pending    bool
	auto       bool
	idx        int
	timer      *time.Timer
}

func NewSequencer(c Config) *Sequencer {
	s := &Sequencer{
		players:    c.Players,
		order:      domain.Models(),
		unlock:     c.Unlock,
		prompt:     c.Prompt,
		subtitles:  c.Subtitles,
		preRoll:    c.PreRoll,
		gap:        c.Gap,
		afterFunc:  c.AfterFunc,
		onComplete: c.OnComplete,
	}
	if s.preRoll == 0 {
		s.preRoll = DefaultPreRoll
	}
	if s.gap == 0 {
		s.gap = DefaultGap
	}
	if s.afterFunc == nil {
		s.afterFunc = time.AfterFunc
	}

	return s
}

// Begin starts a fresh question cycle: all per-model load flags reset, the
// armed/unlocked/pending flags reset, the unlock prompt hides, sources are
// assigned and loads begin. State from the previous cycle is discarded.
func (s *Sequencer) Begin(questionID string, answers map[domain.Model]domain.Answer) {
	s.mu.Lock()

	s.cycle++
	s.stopTimerLocked()
	s.questionID = questionID
	s.answers = answers
	s.loaded = make(map[domain.Model]bool, len(s.order))
	s.armed = false
	s.pending = false
	s.auto = false
	s.idx = 0
	s.unlocked = s.unlock.Unlocked()
	s.prompt.HideUnlockPrompt()

	var loads []Player
	for _, m := range s.order {
		s.subtitles.HideSubtitle(m)

		p := s.players[m]
		a := answers[m]
		if p == nil || a.AudioURL == "" {
			// No narration: trivially loaded for gating, skipped in playback.
			s.loaded[m] = true
			if p != nil {
				p.SetSource("")
			}
			continue
		}

		p.SetSource(a.AudioURL)
		loads = append(loads, p)
	}

	s.gateLocked()
	s.mu.Unlock()

	for _, p := range loads {
		p.Load()
	}
}

// ClipLoaded records a load completion for the model and re-evaluates the
// load-gate. A clip that never reports completion leaves the gate
// unsatisfied for the rest of the cycle; there is no timeout.
func (s *Sequencer) ClipLoaded(m domain.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded == nil || s.loaded[m] {
		return
	}
	s.loaded[m] = true
	s.gateLocked()
}

// gateLocked runs after every load completion: all five models must have
// reported loaded before the sequence arms. Idempotent once armed.
func (s *Sequencer) gateLocked() {
	for _, m := range s.order {
		if !s.loaded[m] {
			return
		}
	}

	if s.armed {
		return
	}

	if !s.unlocked {
		if !s.pending {
			s.pending = true
			s.prompt.ShowUnlockPrompt()
		}
		return
	}

	s.armLocked()
}

func (s *Sequencer) armLocked() {
	s.armed = true

	cycle := s.cycle
	s.timer = s.afterFunc(s.preRoll, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.cycle != cycle || !s.armed {
			return
		}
		s.playLocked(0)
	})
}

// ActivateUnlock handles the user gesture on the unlock control: run the
// unlock probe, record per-player outcomes for diagnostics, hide the prompt
// and, if an auto-play was pending, arm the sequence.
func (s *Sequencer) ActivateUnlock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := s.unlock.Unlock(s.players)
	for m, err := range outcomes {
		if err != nil {
			slog.Warn("playback: unlock probe failed", "model", m, "error", err)
		}
	}

	s.unlocked = true
	s.prompt.HideUnlockPrompt()

	if s.pending {
		s.pending = false
		s.armLocked()
	}
}

// ClipEnded reports the natural end of the model's clip: the subtitle hides
// and, when the auto-sequence is still armed on that model, the next clip is
// scheduled after the inter-clip gap.
func (s *Sequencer) ClipEnded(m domain.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subtitles.HideSubtitle(m)

	if !s.auto || !s.armed || s.idx >= len(s.order) || s.order[s.idx] != m {
		return
	}
	s.auto = false

	next := s.idx + 1
	cycle := s.cycle
	s.timer = s.afterFunc(s.gap, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.cycle != cycle || !s.armed {
			return
		}
		s.playLocked(next)
	})
}

// playLocked advances the auto-sequence starting at index i, skipping models
// without a usable source.
func (s *Sequencer) playLocked(i int) {
	for {
		if i >= len(s.order) {
			s.completeLocked()
			return
		}

		m := s.order[i]
		s.idx = i

		p := s.players[m]
		if p == nil || p.Source() == "" {
			i++
			continue
		}

		s.auto = true
		err := s.startClipLocked(m)
		if err == nil {
			return
		}

		s.subtitles.HideSubtitle(m)
		s.auto = false

		if errors.Is(err, ErrPlayBlocked) {
			// Autoplay policy kicked in after all: revert to locked, re-show
			// the prompt and halt without advancing.
			s.armed = false
			s.unlocked = false
			s.unlock.Relock()
			s.pending = true
			s.prompt.ShowUnlockPrompt()
			return
		}

		slog.Warn("playback: clip failed to start, skipping", "model", m, "error", err)
		telemetry.ClipsSkipped.WithLabelValues(string(m)).Inc()
		i++
	}
}

// startClipLocked enforces the one-audible-clip invariant, shows the
// subtitle and starts playback.
func (s *Sequencer) startClipLocked(m domain.Model) error {
	for _, o := range s.order {
		if o == m {
			continue
		}
		if p := s.players[o]; p != nil {
			p.Pause()
			p.Rewind()
		}
		s.subtitles.HideSubtitle(o)
	}

	s.subtitles.ShowSubtitle(m, s.answers[m].Text)
	if err := s.players[m].Play(); err != nil {
		return err
	}

	telemetry.ClipsPlayed.WithLabelValues(string(m)).Inc()
	return nil
}

func (s *Sequencer) completeLocked() {
	s.armed = false
	s.auto = false
	s.stopTimerLocked()

	if s.onComplete != nil {
		go s.onComplete()
	}
}

// PlayManual plays a single model's clip in response to its play control.
// Manual play disarms the auto-sequence for the rest of the cycle; the clip
// plays alone with its subtitle and does not chain.
func (s *Sequencer) PlayManual(m domain.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armed = false
	s.auto = false
	s.pending = false
	s.stopTimerLocked()

	p := s.players[m]
	if p == nil || p.Source() == "" {
		return
	}

	if err := s.startClipLocked(m); err != nil {
		s.subtitles.HideSubtitle(m)
		slog.Warn("playback: manual play failed", "model", m, "error", err)
	}
}

// Armed reports whether an auto-sequence is armed or running.
func (s *Sequencer) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// AwaitingUnlock reports whether a gated auto-play is waiting on the unlock
// control.
func (s *Sequencer) AwaitingUnlock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Sequencer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
