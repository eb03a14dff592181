package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuestionsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "paralleltracks",
		Name:      "questions_submitted_total",
		Help:      "Number of dilemmas submitted by the host.",
	})

	VotesObserved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "paralleltracks",
		Name:      "votes_observed_total",
		Help:      "Number of live vote events received from the platform.",
	})

	ClipsPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paralleltracks",
		Name:      "clips_played_total",
		Help:      "Number of narration clips played, by model.",
	}, []string{"model"})

	ClipsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paralleltracks",
		Name:      "clips_skipped_total",
		Help:      "Number of narration clips skipped after a playback failure, by model.",
	}, []string{"model"})
)
