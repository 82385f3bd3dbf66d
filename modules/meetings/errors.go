package meetings

import "errors"

var (
	// ErrMeetingNotFound is returned when no meeting exists for a room id.
	ErrMeetingNotFound = errors.New("meeting not found")
	// ErrMeetingEnded is returned when a meeting is no longer active.
	ErrMeetingEnded = errors.New("meeting has ended")
	// ErrMeetingFull is returned when a meeting is at capacity.
	ErrMeetingFull = errors.New("meeting is full")
	// ErrMeetingExists is returned when creating a meeting whose room id is taken.
	ErrMeetingExists = errors.New("meeting already exists")
	// ErrNotHost is returned when a host-only operation comes from someone else.
	ErrNotHost = errors.New("only the host may do this")
	// ErrNotStarted is returned when joining a scheduled meeting early.
	ErrNotStarted = errors.New("meeting has not started yet")
	// ErrInvalidRequest is returned for malformed requests.
	ErrInvalidRequest = errors.New("invalid meeting request")
)

// Error codes carried in service responses. Errors do not survive the
// request-reply hop, so domain failures travel as codes.
const (
	codeNotFound   = "not_found"
	codeEnded      = "ended"
	codeFull       = "full"
	codeExists     = "exists"
	codeNotHost    = "not_host"
	codeNotStarted = "not_started"
	codeInvalid    = "invalid"
)

var codeErrors = map[string]error{
	codeNotFound:   ErrMeetingNotFound,
	codeEnded:      ErrMeetingEnded,
	codeFull:       ErrMeetingFull,
	codeExists:     ErrMeetingExists,
	codeNotHost:    ErrNotHost,
	codeNotStarted: ErrNotStarted,
	codeInvalid:    ErrInvalidRequest,
}

// errorCode returns the code of a domain error, or "" for anything else.
func errorCode(err error) string {
	for code, target := range codeErrors {
		if errors.Is(err, target) {
			return code
		}
	}
	return ""
}

// errorFromCode maps a response code back to its sentinel.
func errorFromCode(code string) error {
	if code == "" {
		return nil
	}
	if err, ok := codeErrors[code]; ok {
		return err
	}
	return errors.New(code)
}
