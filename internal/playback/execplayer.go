package playback

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"

	"github.com/Novapool/ParallelTracks/internal/domain"
)

const defaultPlayerBinary = "mpg123"

type ExecPlayerConfig struct {
	Model domain.Model

	// Binary is the external audio player command; it must accept a file
	// path and exit when the clip ends. Defaults to mpg123.
	Binary string
	Args   []string

	HTTPClient *http.Client

	// OnLoaded and OnEnded report load completion and natural end-of-clip,
	// typically wired to Sequencer.ClipLoaded and Sequencer.ClipEnded.
	OnLoaded func(m domain.Model)
	OnEnded  func(m domain.Model)
}

// ExecPlayer is the kiosk Player: it downloads the narration clip to a local
// file and plays it by spawning an external player process. Pause kills the
// process; Rewind is implicit since every spawn starts at the beginning.
type ExecPlayer struct {
	model    domain.Model
	bin      string
	args     []string
	hc       *http.Client
	onLoaded func(domain.Model)
	onEnded  func(domain.Model)

	mu      sync.Mutex
	gen     int
	src     string
	file    string
	cmd     *exec.Cmd
	stopped bool
}

func NewExecPlayer(c ExecPlayerConfig) *ExecPlayer {
	p := &ExecPlayer{
		model:    c.Model,
		bin:      c.Binary,
		args:     c.Args,
		hc:       c.HTTPClient,
		onLoaded: c.OnLoaded,
		onEnded:  c.OnEnded,
	}
	if p.bin == "" {
		p.bin = defaultPlayerBinary
	}
	if p.hc == nil {
		p.hc = http.DefaultClient
	}
	if p.onLoaded == nil {
		p.onLoaded = func(domain.Model) {}
	}
	if p.onEnded == nil {
		p.onEnded = func(domain.Model) {}
	}

	return p
}

func (p *ExecPlayer) SetSource(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.src = url
	p.file = ""
	p.killLocked()
}

func (p *ExecPlayer) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src
}

// Load downloads the clip in the background and reports completion through
// OnLoaded. A download that fails or hangs never reports, leaving the
// load-gate unsatisfied for this model.
func (p *ExecPlayer) Load() {
	p.mu.Lock()
	gen, src := p.gen, p.src
	p.mu.Unlock()

	if src == "" {
		return
	}

	go func() {
		file, err := p.download(src)
		if err != nil {
			slog.Warn("playback: clip download failed", "model", p.model, "url", src, "error", err)
			return
		}

		p.mu.Lock()
		if p.gen != gen {
			// Source changed mid-download.
			p.mu.Unlock()
			os.Remove(file)
			return
		}
		p.file = file
		p.mu.Unlock()

		p.onLoaded(p.model)
	}()
}

func (p *ExecPlayer) download(src string) (string, error) {
	resp, err := p.hc.Get(src)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", fmt.Sprintf("paralleltracks_%s_*.mp3", p.model))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}

func (p *ExecPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == "" {
		return fmt.Errorf("playback: %s has no loaded clip", p.model)
	}

	p.killLocked()

	cmd := exec.Command(p.bin, append(p.args, p.file)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("playback: start %s: %w", p.bin, err)
	}
	p.cmd = cmd
	p.stopped = false

	go p.wait(cmd)
	return nil
}

func (p *ExecPlayer) wait(cmd *exec.Cmd) {
	err := cmd.Wait()

	p.mu.Lock()
	if p.cmd != cmd {
		p.mu.Unlock()
		return
	}
	stopped := p.stopped
	p.cmd = nil
	p.mu.Unlock()

	if stopped {
		return
	}
	if err != nil {
		slog.Warn("playback: player exited abnormally", "model", p.model, "error", err)
		return
	}

	p.onEnded(p.model)
}

func (p *ExecPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
}

// Rewind is a no-op: each spawned player starts from position zero.
func (p *ExecPlayer) Rewind() {}

// killLocked must be called with the lock held.
func (p *ExecPlayer) killLocked() {
	if p.cmd != nil && p.cmd.Process != nil {
		p.stopped = true
		_ = p.cmd.Process.Kill()
	}
}
