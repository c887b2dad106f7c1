package usecase

import "fmt"

type ErrorCode string

const (
	ErrorRequestParse  ErrorCode = "REQUEST_PARSE_ERROR"
	ErrorValidation    ErrorCode = "VALIDATION_ERROR"
	ErrorFetch         ErrorCode = "FETCH_ERROR"
	ErrorTranscode     ErrorCode = "TRANSCODE_ERROR"
	ErrorExtract       ErrorCode = "EXTRACT_ERROR"
	ErrorTranscription ErrorCode = "TRANSCRIPTION_ERROR"
	ErrorCompletion    ErrorCode = "COMPLETION_ERROR"
	ErrorTimeout       ErrorCode = "TIMEOUT_ERROR"
	ErrorRelay         ErrorCode = "RELAY_ERROR"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

// Error is returned by the use case for every failure that reaches the
// caller. Message is safe to show to end users; Reason is for logs.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error

	chat string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}
