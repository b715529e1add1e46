package entity

import "time"

type Alarm struct {
	ID               string
	Label            string
	FireAt           time.Time
	Mission          string
	Tone             string
	Persona          string
	VoiceID          string
	Enabled          bool
	Snooze           SnoozePolicy
	GeneratedContent *GeneratedContent
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type SnoozePolicy struct {
	MaxCount int
	Duration time.Duration
	Count    int
}

func (p SnoozePolicy) Remaining() int {
	if r := p.MaxCount - p.Count; r > 0 {
		return r
	}
	return 0
}

// GeneratedContent is the wake-up script and audio produced for an alarm.
// AudioAssetRef is set only after the audio bytes are durably written.
type GeneratedContent struct {
	Text          string
	AudioAssetRef string
	VoiceID       string
	IntentID      string
	Duration      *time.Duration
	CreatedAt     time.Time
}

func (c *GeneratedContent) HasAudio() bool {
	return c != nil && c.AudioAssetRef != ""
}
