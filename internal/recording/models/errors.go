package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid arguments")

	// ErrNotDistributable: distribution is only allowed once a recording has
	// reached analyzed. Re-distribution of an already distributed recording is
	// allowed and appends a further log entry.
	ErrNotDistributable = errors.New("recording is not distributable")

	// ErrEmptyTranscript guards processing -> analyzed: a transcript with gap
	// markers is acceptable, a fully empty one is not.
	ErrEmptyTranscript = errors.New("transcription is empty")
)
