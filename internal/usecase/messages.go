package usecase

import (
	"context"
	"errors"
)

const (
	// DirectSystemPrompt seeds sessions answered in the HTTP response.
	DirectSystemPrompt = "You are a helpful assistant. Provide concise answers (max 300 words). " +
		"Maintain context from previous messages, including document content."
	// RelaySystemPrompt seeds sessions answered inside the chat widget.
	RelaySystemPrompt = "You are a helpful assistant. Provide short, concise answers (max 150 characters)."

	DefaultSessionKey = "default-session"
)

// Messages returned to HTTP callers.
const (
	msgInvalidBody      = "Invalid request body."
	msgMissingFields    = "Invalid request payload. Missing required fields."
	msgNoContent        = "No text or attachment in request."
	msgMissingURL       = "Attachment URL is required."
	msgUnsupportedType  = "Unsupported file type: only audio, PDF, and DOCX files are supported."
	msgFFmpegMissing    = "FFmpeg is not installed on the server."
	msgFetchFailed      = "Failed to fetch attachment."
	msgTranscodeFailed  = "Failed to convert voice message."
	msgTranscribeFailed = "Failed to transcribe voice message."
	msgPDFFailed        = "Failed to extract text from PDF."
	msgDOCXFailed       = "Failed to extract text from DOCX."
	msgCompleteFailed   = "Failed to generate a reply."
	msgRelayFailed      = "Failed to deliver the reply to the conversation."
	msgTimedOut         = "Processing timed out. Please try again."
	msgInternal         = "Internal server error."
)

// Messages relayed into the conversation when a webhook delivery cannot be
// answered normally.
const (
	chatFFmpegMissing    = "Sorry, I can't process voice messages right now. FFmpeg is not installed on the server."
	chatTranscribeFailed = "Sorry, I couldn't transcribe the voice message. Please try again or send a text message."
	chatPDFFailed        = "Sorry, I couldn't extract text from the PDF. Please try again or send a text message."
	chatDOCXFailed       = "Sorry, I couldn't extract text from the DOCX. Please try again or send a text message."
	chatUnsupported      = "Sorry, I can only process audio, PDF, and DOCX files."
	chatFetchFailed      = "Sorry, I couldn't download the attachment. Please try again or send a text message."
	chatCompleteFailed   = "Sorry, I encountered an error while processing your request."
)

// stage describes one step of the attachment pipeline and how its failure is
// reported in each reply mode.
type stage struct {
	code    ErrorCode
	reason  string
	message string
	chat    string
}

var (
	stageFetch       = stage{ErrorFetch, "fetch_failed", msgFetchFailed, chatFetchFailed}
	stageFFmpeg      = stage{ErrorTranscode, "ffmpeg_missing", msgFFmpegMissing, chatFFmpegMissing}
	stageTranscode   = stage{ErrorTranscode, "transcode_failed", msgTranscodeFailed, chatTranscribeFailed}
	stageTranscribe  = stage{ErrorTranscription, "transcription_failed", msgTranscribeFailed, chatTranscribeFailed}
	stagePDF         = stage{ErrorExtract, "pdf_extract_failed", msgPDFFailed, chatPDFFailed}
	stageDOCX        = stage{ErrorExtract, "docx_extract_failed", msgDOCXFailed, chatDOCXFailed}
	stageUnsupported = stage{ErrorValidation, "unsupported_type", msgUnsupportedType, chatUnsupported}
	stageComplete    = stage{ErrorCompletion, "completion_failed", msgCompleteFailed, chatCompleteFailed}
)

// fail wraps err for this stage. Deadline expiry is reported as a timeout
// whatever the stage.
func (s stage) fail(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		e := newError(ErrorTimeout, s.reason+"_timeout", msgTimedOut, err)
		e.chat = s.chat
		return e
	}
	e := newError(s.code, s.reason, s.message, err)
	e.chat = s.chat
	return e
}

// chatMessage is the text relayed into the conversation in place of a reply.
func chatMessage(e *Error) string {
	if e.chat != "" {
		return e.chat
	}
	return chatCompleteFailed
}
