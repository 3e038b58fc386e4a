package document

import "errors"

// Terminal capture failures. Everything else is recorded in the artifact.
var (
	ErrAuthUnavailable = errors.New("no usable identity for content that requires login")
	ErrPostNotFound    = errors.New("post not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrLoadTimeout     = errors.New("timed out loading post")
	ErrNavigation      = errors.New("navigation failed")
	ErrInvalidURL      = errors.New("not a post url")
)

// ErrorKind returns a short stable name for a capture error, suitable for
// logs and the history ledger.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthUnavailable):
		return "auth_unavailable"
	case errors.Is(err, ErrPostNotFound):
		return "post_not_found"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrLoadTimeout):
		return "load_timeout"
	case errors.Is(err, ErrNavigation):
		return "navigation_error"
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	default:
		return "error"
	}
}
