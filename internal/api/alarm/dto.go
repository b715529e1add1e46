package alarm

import (
	"time"

	"RiseAndShine/internal/entity"
)

type CreateAlarmRequest struct {
	Label          string `json:"label" validate:"max=120"`
	FireAt         string `json:"fire_at" validate:"required"`
	Mission        string `json:"mission" validate:"max=500"`
	Tone           string `json:"tone" validate:"omitempty,oneof=gentle cheerful energetic calm strict funny"`
	Persona        string `json:"persona" validate:"max=80"`
	VoiceID        string `json:"voice_id" validate:"max=64"`
	Enabled        *bool  `json:"enabled"`
	SnoozeMaxCount *int   `json:"snooze_max_count" validate:"omitempty,min=0,max=10"`
	SnoozeMinutes  *int   `json:"snooze_minutes" validate:"omitempty,min=1,max=60"`
}

type UpdateAlarmRequest struct {
	ID             string  `json:"-" validate:"required"`
	Label          *string `json:"label" validate:"omitempty,max=120"`
	FireAt         *string `json:"fire_at"`
	Mission        *string `json:"mission" validate:"omitempty,max=500"`
	Tone           *string `json:"tone" validate:"omitempty,oneof=gentle cheerful energetic calm strict funny"`
	Persona        *string `json:"persona" validate:"omitempty,max=80"`
	VoiceID        *string `json:"voice_id" validate:"omitempty,max=64"`
	Enabled        *bool   `json:"enabled"`
	SnoozeMaxCount *int    `json:"snooze_max_count" validate:"omitempty,min=0,max=10"`
	SnoozeMinutes  *int    `json:"snooze_minutes" validate:"omitempty,min=1,max=60"`
}

type GeneratedContentResponse struct {
	Text          string `json:"text"`
	AudioAssetRef string `json:"audio_asset_ref,omitempty"`
	VoiceID       string `json:"voice_id,omitempty"`
	IntentID      string `json:"intent_id,omitempty"`
	DurationMs    *int64 `json:"duration_ms,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type AlarmResponse struct {
	ID               string                    `json:"id"`
	Label            string                    `json:"label"`
	FireAt           string                    `json:"fire_at"`
	Mission          string                    `json:"mission"`
	Tone             string                    `json:"tone"`
	Persona          string                    `json:"persona"`
	VoiceID          string                    `json:"voice_id"`
	Enabled          bool                      `json:"enabled"`
	SnoozeMaxCount   int                       `json:"snooze_max_count"`
	SnoozeMinutes    int                       `json:"snooze_minutes"`
	SnoozeCount      int                       `json:"snooze_count"`
	GeneratedContent *GeneratedContentResponse `json:"generated_content,omitempty"`
	CreatedAt        string                    `json:"created_at"`
	UpdatedAt        string                    `json:"updated_at"`
}

func NewGeneratedContentResponse(c *entity.GeneratedContent) *GeneratedContentResponse {
	if c == nil {
		return nil
	}
	res := &GeneratedContentResponse{
		Text:          c.Text,
		AudioAssetRef: c.AudioAssetRef,
		VoiceID:       c.VoiceID,
		IntentID:      c.IntentID,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
	if c.Duration != nil {
		ms := c.Duration.Milliseconds()
		res.DurationMs = &ms
	}
	return res
}

func NewAlarmResponse(a entity.Alarm) AlarmResponse {
	return AlarmResponse{
		ID:               a.ID,
		Label:            a.Label,
		FireAt:           a.FireAt.Format(time.RFC3339),
		Mission:          a.Mission,
		Tone:             a.Tone,
		Persona:          a.Persona,
		VoiceID:          a.VoiceID,
		Enabled:          a.Enabled,
		SnoozeMaxCount:   a.Snooze.MaxCount,
		SnoozeMinutes:    int(a.Snooze.Duration / time.Minute),
		SnoozeCount:      a.Snooze.Count,
		GeneratedContent: NewGeneratedContentResponse(a.GeneratedContent),
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        a.UpdatedAt.Format(time.RFC3339),
	}
}
