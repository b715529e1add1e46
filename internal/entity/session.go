package entity

import "time"

// AlarmPhase is the lifecycle stage of one alarm-firing session. The only
// valid order is awaiting_audio, playing, dismissed; dismissed is terminal.
type AlarmPhase string

const (
	PhaseAwaitingAudio AlarmPhase = "awaiting_audio"
	PhasePlaying       AlarmPhase = "playing"
	PhaseDismissed     AlarmPhase = "dismissed"
)

type DismissalMethod string

const (
	DismissManual     DismissalMethod = "manual"
	DismissSnooze     DismissalMethod = "snooze"
	DismissVoice      DismissalMethod = "voice"
	DismissFailure    DismissalMethod = "failure"
	DismissTimeout    DismissalMethod = "timeout"
	DismissSuperseded DismissalMethod = "superseded"
)

type ResolutionStrategy string

const (
	StrategyDirect             ResolutionStrategy = "direct"
	StrategyContentStoreLookup ResolutionStrategy = "content_store_lookup"
	StrategyFilesystemScan     ResolutionStrategy = "filesystem_scan"
)

// ResolutionResult is found(Path, Strategy) when Found, otherwise notFound.
type ResolutionResult struct {
	Found    bool
	Path     string
	Strategy ResolutionStrategy
}

type DismissalState struct {
	VoiceAttempts    int
	MaxVoiceAttempts int
	LastUtterance    string
	Listening        bool
	ManualRequired   bool
	Terminal         bool
}

// SessionSnapshot is a point-in-time copy of a firing session.
type SessionSnapshot struct {
	ID               string
	AlarmID          string
	Phase            AlarmPhase
	Resolution       *ResolutionResult
	PlaybackAttempts int
	AudioPlayed      bool
	Dismissal        DismissalState
	Method           DismissalMethod
	Explanation      string
	SnoozedUntil     *time.Time
	StartedAt        time.Time
	DismissedAt      *time.Time
}
