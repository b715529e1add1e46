package generation

import "RiseAndShine/internal/api/alarm"

// GenerateContentResponse reports a generation run. AudioOK=false with
// ScriptOK=true is a recoverable outcome: the caller decides whether to
// fall back to a stock alarm sound.
type GenerateContentResponse struct {
	ScriptOK      bool                            `json:"script_ok"`
	AudioOK       bool                            `json:"audio_ok"`
	Attempts      int                             `json:"attempts"`
	ErrorCategory string                          `json:"error_category,omitempty"`
	Error         string                          `json:"error,omitempty"`
	Content       *alarm.GeneratedContentResponse `json:"content,omitempty"`
}
