package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Novapool/ParallelTracks/internal/domain"
	"github.com/Novapool/ParallelTracks/internal/event"
	"github.com/Novapool/ParallelTracks/internal/platform"
	"github.com/Novapool/ParallelTracks/internal/realtime"
	"github.com/Novapool/ParallelTracks/internal/session"
	"github.com/Novapool/ParallelTracks/internal/voting"
)

func main() {
	var (
		platformURL = flag.String("platform", "http://localhost:9000", "voting platform base URL")
		wsURL       = flag.String("ws", "ws://localhost:9000/realtime", "voting platform realtime URL")
		apiKey      = flag.String("api-key", os.Getenv("PLATFORM_API_KEY"), "voting platform API key")
		sessionDir  = flag.String("session-dir", defaultSessionDir(), "directory holding the voter session files")
	)
	flag.Parse()

	if err := run(*platformURL, *wsURL, *apiKey, *sessionDir); err != nil {
		log.Fatal(err)
	}
}

func run(platformURL, wsURL, apiKey, sessionDir string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	st, err := session.NewStore(session.Config{Dir: sessionDir})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	pc := platform.NewClient(platform.Config{
		BaseURL: platformURL,
		APIKey:  apiKey,
	})

	eb := event.NewBus()
	defer eb.Stop()

	var ctrl *voting.Controller
	ctrl = voting.NewController(voting.Config{
		Platform: pc,
		Session:  st,
		EventBus: eb,
		OnChange: func() { render(ctrl.Snapshot()) },
	})

	ctrl.Load(ctx)

	v := ctrl.Snapshot()
	if v.Question != nil {
		sub, err := realtime.NewSubscriber(realtime.Config{URL: wsURL, APIKey: apiKey}).Subscribe(ctx, v.Question.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "live vote counts are unavailable: %v\n", err)
		} else {
			defer sub.Close()
			go func() {
				for e := range sub.Events() {
					eb.Publish(ctx, domain.EventVoteObserved{Vote: e})
				}
			}()
		}
	}

	return loop(ctx, ctrl)
}

// loop reads model votes from stdin until EOF or interrupt.
func loop(ctx context.Context, ctrl *voting.Controller) error {
	fmt.Printf("vote by typing a model id %v, or 'state' to reprint\n", domain.Models())

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			switch {
			case line == "":
			case line == "state":
				render(ctrl.Snapshot())
			case domain.ValidModel(domain.Model(line)):
				ctrl.Submit(ctx, domain.Model(line))
			default:
				fmt.Printf("unknown model %q\n", line)
			}
		}
	}
}

func render(v voting.View) {
	switch {
	case v.Loading:
		fmt.Println("loading...")
		return
	case v.LoadError != "":
		fmt.Printf("load failed: %s\n", v.LoadError)
		return
	case v.Question == nil:
		fmt.Println("no active question")
		return
	}

	fmt.Printf("\n%s\n", v.Question.Text)
	for _, c := range v.Counts {
		fmt.Printf("  %-10s %d\n", domain.LabelOf(c.Model), c.Count)
	}
	if v.HasVoted {
		fmt.Println("  (you have voted on this question)")
	}
	if v.Banner != "" {
		fmt.Printf("  %s\n", v.Banner)
	}

	if len(v.Leaderboard) > 0 {
		fmt.Println("\nall-time leaderboard:")
		for _, e := range v.Leaderboard {
			fmt.Printf("  %-10s wins=%d votes=%d questions=%d\n",
				domain.LabelOf(e.Model), e.TotalWins, e.TotalVotes, e.QuestionsAnswered)
		}
	}
}

func defaultSessionDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".paralleltracks"
	}
	return filepath.Join(dir, "paralleltracks")
}
