package generation

import "RiseAndShine/pkg/response"

var (
	ErrScriptGeneration     = response.NewError(502, "script generation failed")
	ErrNoScript             = response.NewError(409, "alarm has no generated script")
	ErrProviderNotAvailable = response.NewError(503, "content provider not configured")
	ErrSaveContent          = response.NewError(500, "failed to save generated content")
)
