package task

import (
	"errors"
	"fmt"
)

var (
	ErrNoInput  = errors.New("either a file or a url must be provided")
	ErrBadInput = errors.New("invalid input")
	ErrDownload = errors.New("could not download audio from the given url")
	ErrNotFound = errors.New("task not found")
	ErrNotReady = fmt.Errorf("%w: transcription result not available yet", ErrNotFound)
)
