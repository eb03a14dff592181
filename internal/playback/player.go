package playback

import (
	"errors"
	"sync"

	"github.com/Novapool/ParallelTracks/internal/domain"
)

// ErrPlayBlocked classifies a play-start failure as an autoplay-policy
// denial. The sequencer reacts by falling back to the unlock-prompt flow
// instead of surfacing an error.
var ErrPlayBlocked = errors.New("playback: play blocked by autoplay policy")

// Player is one model's audio element. Implementations must not call back
// into the Sequencer from within these methods; load completion and natural
// end-of-clip are reported asynchronously via Sequencer.ClipLoaded and
// Sequencer.ClipEnded.
type Player interface {
	// SetSource assigns the narration URL and invalidates any prior load.
	SetSource(url string)
	// Source returns the assigned narration URL, empty when none.
	Source() string
	// Load begins an asynchronous load of the assigned source.
	Load()
	// Play starts playback from the current position. A policy denial is
	// reported as an error matching ErrPlayBlocked.
	Play() error
	Pause()
	// Rewind resets the position to the start of the clip.
	Rewind()
}

// Unlocker is the platform-specific autoplay-unlock capability. A browser-like
// target probes every player with a silent play/pause/rewind round; a kiosk
// target is trivially always unlocked.
type Unlocker interface {
	Unlocked() bool
	// Unlock attempts the unlock using a user gesture and returns the
	// per-player outcome for diagnostic purposes only; a failed probe for one
	// player does not block the others.
	Unlock(players map[domain.Model]Player) map[domain.Model]error
	// Relock reverts the session to locked after a policy denial.
	Relock()
}

// Prompter shows and hides the unlock prompt.
type Prompter interface {
	ShowUnlockPrompt()
	HideUnlockPrompt()
}

// SubtitleSink shows and hides the per-model subtitle overlay.
type SubtitleSink interface {
	ShowSubtitle(m domain.Model, text string)
	HideSubtitle(m domain.Model)
}

// AlwaysUnlocked is the kiosk Unlocker: no browser, no autoplay policy.
type AlwaysUnlocked struct{}

func (AlwaysUnlocked) Unlocked() bool { return true }

func (AlwaysUnlocked) Unlock(map[domain.Model]Player) map[domain.Model]error { return nil }

func (AlwaysUnlocked) Relock() {}

// ProbeUnlocker satisfies a browser-style autoplay policy by running a silent
// play/pause/rewind probe over every player inside the user gesture.
type ProbeUnlocker struct {
	mu       sync.Mutex
	unlocked bool
}

func (u *ProbeUnlocker) Unlocked() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unlocked
}

func (u *ProbeUnlocker) Unlock(players map[domain.Model]Player) map[domain.Model]error {
	out := make(map[domain.Model]error, len(players))
	for m, p := range players {
		err := p.Play()
		if err == nil {
			p.Pause()
			p.Rewind()
		}
		out[m] = err
	}

	// The session counts as unlocked even if individual probes failed.
	u.mu.Lock()
	u.unlocked = true
	u.mu.Unlock()

	return out
}

func (u *ProbeUnlocker) Relock() {
	u.mu.Lock()
	u.unlocked = false
	u.mu.Unlock()
}
