package main

import (
	"errors"

	"x-post-capture/internal/document"
)

// Process exit codes. Scripts wrapping xcapture branch on these.
const (
	exitOK              = 0
	exitError           = 1
	exitPostNotFound    = 2
	exitAccessDenied    = 3
	exitAuthUnavailable = 4
	exitLoadTimeout     = 5
	exitNavigation      = 6
	exitInvalidURL      = 7
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, document.ErrPostNotFound):
		return exitPostNotFound
	case errors.Is(err, document.ErrAccessDenied):
		return exitAccessDenied
	case errors.Is(err, document.ErrAuthUnavailable):
		return exitAuthUnavailable
	case errors.Is(err, document.ErrLoadTimeout):
		return exitLoadTimeout
	case errors.Is(err, document.ErrNavigation):
		return exitNavigation
	case errors.Is(err, document.ErrInvalidURL):
		return exitInvalidURL
	default:
		return exitError
	}
}
