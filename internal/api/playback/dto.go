package playback

import (
	"RiseAndShine/internal/entity"
	"time"
)

type ResolutionResponse struct {
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

type DismissalResponse struct {
	VoiceAttempts    int    `json:"voice_attempts"`
	MaxVoiceAttempts int    `json:"max_voice_attempts"`
	LastUtterance    string `json:"last_utterance,omitempty"`
	Listening        bool   `json:"listening"`
	ManualRequired   bool   `json:"manual_required"`
	Terminal         bool   `json:"terminal"`
}

type SessionResponse struct {
	ID               string              `json:"id"`
	AlarmID          string              `json:"alarm_id"`
	Phase            string              `json:"phase"`
	Resolution       *ResolutionResponse `json:"resolution,omitempty"`
	PlaybackAttempts int                 `json:"playback_attempts"`
	AudioPlayed      bool                `json:"audio_played"`
	Dismissal        DismissalResponse   `json:"dismissal"`
	Method           string              `json:"method,omitempty"`
	Explanation      string              `json:"explanation,omitempty"`
	SnoozedUntil     string              `json:"snoozed_until,omitempty"`
	StartedAt        string              `json:"started_at"`
	DismissedAt      string              `json:"dismissed_at,omitempty"`
}

type VoiceResponse struct {
	Status     string          `json:"status"`
	Transcript string          `json:"transcript,omitempty"`
	Guidance   string          `json:"guidance,omitempty"`
	Session    SessionResponse `json:"session"`
}

type EventMessage struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Session SessionResponse `json:"session"`
}

type PhrasesResponse struct {
	Phrases []string `json:"phrases"`
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func NewSessionResponse(s entity.SessionSnapshot) SessionResponse {
	res := SessionResponse{
		ID:               s.ID,
		AlarmID:          s.AlarmID,
		Phase:            string(s.Phase),
		PlaybackAttempts: s.PlaybackAttempts,
		AudioPlayed:      s.AudioPlayed,
		Dismissal: DismissalResponse{
			VoiceAttempts:    s.Dismissal.VoiceAttempts,
			MaxVoiceAttempts: s.Dismissal.MaxVoiceAttempts,
			LastUtterance:    s.Dismissal.LastUtterance,
			Listening:        s.Dismissal.Listening,
			ManualRequired:   s.Dismissal.ManualRequired,
			Terminal:         s.Dismissal.Terminal,
		},
		Method:       string(s.Method),
		Explanation:  s.Explanation,
		SnoozedUntil: formatOptional(s.SnoozedUntil),
		StartedAt:    s.StartedAt.Format(time.RFC3339),
		DismissedAt:  formatOptional(s.DismissedAt),
	}
	if s.Resolution != nil {
		res.Resolution = &ResolutionResponse{
			Found:    s.Resolution.Found,
			Path:     s.Resolution.Path,
			Strategy: string(s.Resolution.Strategy),
		}
	}
	return res
}
