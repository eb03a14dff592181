package domain

const (
	EventNameQuestionSubmitted = "question.submitted"
	EventNameVoteObserved      = "vote.observed"
	EventNamePlaybackFinished  = "playback.finished"
)

type EventQuestionSubmitted struct {
	Question Question
	Answers  map[Model]Answer
}

func (EventQuestionSubmitted) Name() string { return EventNameQuestionSubmitted }

type EventVoteObserved struct {
	Vote VoteEvent
}

func (EventVoteObserved) Name() string { return EventNameVoteObserved }

type EventPlaybackFinished struct {
	QuestionID string
}

func (EventPlaybackFinished) Name() string { return EventNamePlaybackFinished }
