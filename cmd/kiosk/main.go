package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Novapool/ParallelTracks/internal/domain"
	"github.com/Novapool/ParallelTracks/internal/event"
	"github.com/Novapool/ParallelTracks/internal/playback"
)

func main() {
	var (
		hostURL = flag.String("host", "http://localhost:8080", "host server base URL")
		first   = flag.String("first", "", "fate of the five on the main track")
		second  = flag.String("second", "", "fate of the one on the side track")
		binary  = flag.String("player", "mpg123", "audio player binary")
		gesture = flag.Bool("gesture", false, "require an enter keypress before narration starts")
	)
	flag.Parse()

	if err := run(*hostURL, *first, *second, *binary, *gesture); err != nil {
		log.Fatal(err)
	}
}

func run(hostURL, first, second, binary string, gesture bool) error {
	text, err := domain.AssembleQuestion(first, second)
	if err != nil {
		return fmt.Errorf("assemble question: %w", err)
	}
	fmt.Println(text)
	fmt.Println()

	sub, err := submitQuestion(hostURL, text)
	if err != nil {
		return err
	}

	answers := make(map[domain.Model]domain.Answer, len(sub.Responses))
	for m, answer := range sub.Responses {
		answers[m] = domain.Answer{
			Model:    m,
			Text:     answer,
			AudioURL: absoluteURL(hostURL, sub.AudioFiles[m]),
		}
	}

	eb := event.NewBus()
	defer eb.Stop()

	done := make(chan struct{})
	eb.Subscribe(domain.EventNamePlaybackFinished, func(_ context.Context, e event.Event) error {
		slog.Info("kiosk: narration finished", "question_id", e.(domain.EventPlaybackFinished).QuestionID)
		close(done)
		return nil
	})

	var seq *playback.Sequencer

	players := make(map[domain.Model]playback.Player, len(domain.Models()))
	for _, m := range domain.Models() {
		players[m] = playback.NewExecPlayer(playback.ExecPlayerConfig{
			Model:    m,
			Binary:   binary,
			OnLoaded: func(m domain.Model) { seq.ClipLoaded(m) },
			OnEnded:  func(m domain.Model) { seq.ClipEnded(m) },
		})
	}

	var unlock playback.Unlocker = playback.AlwaysUnlocked{}
	if gesture {
		unlock = &playback.ProbeUnlocker{}
	}

	seq = playback.NewSequencer(playback.Config{
		Players:    players,
		Unlock:     unlock,
		Prompt:     termPrompter{},
		Subtitles:  &termSubtitles{},
		OnComplete: func() {
			eb.Publish(context.Background(), domain.EventPlaybackFinished{QuestionID: sub.QuestionID})
		},
	})

	seq.Begin(sub.QuestionID, answers)

	if gesture {
		go func() {
			bufio.NewScanner(os.Stdin).Scan()
			seq.ActivateUnlock()
		}()
	}

	<-done
	return nil
}

type submitResponse struct {
	QuestionID string                  `json:"question_id"`
	Responses  map[domain.Model]string `json:"responses"`
	AudioFiles map[domain.Model]string `json:"audio_files"`
}

func submitQuestion(hostURL, text string) (*submitResponse, error) {
	body, err := json.Marshal(map[string]string{"question_text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal question: %w", err)
	}

	hc := &http.Client{Timeout: 5 * time.Minute}
	resp, err := hc.Post(hostURL+"/submit_question", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("submit question: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submit question: status %d: %s", resp.StatusCode, raw)
	}

	var sub submitResponse
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &sub, nil
}

func absoluteURL(hostURL, path string) string {
	if path == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimSuffix(hostURL, "/") + path
}

type termPrompter struct{}

func (termPrompter) ShowUnlockPrompt() { fmt.Println("[press enter to start narration]") }
func (termPrompter) HideUnlockPrompt() {}

// termSubtitles prints each model's full answer as it starts narrating.
type termSubtitles struct{}

func (termSubtitles) ShowSubtitle(m domain.Model, text string) {
	fmt.Printf("\n%s:\n%s\n", domain.LabelOf(m), text)
}

func (termSubtitles) HideSubtitle(domain.Model) {}
