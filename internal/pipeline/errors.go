package pipeline

import "errors"

// Stage-level failures. Each one marks the recording failed and is wrapped
// with the underlying cause, so callers can classify the stage with errors.Is.
var (
	ErrUpload        = errors.New("audio upload failed")
	ErrConversion    = errors.New("format conversion failed")
	ErrTranscription = errors.New("transcription failed")
)
