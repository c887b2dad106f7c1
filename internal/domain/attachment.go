package domain

// Attachment is a binary payload accompanying a chat turn. It lives for the
// duration of one request only.
type Attachment struct {
	MimeType string
	Filename string
	URL      string
	Data     []byte
}

const (
	MimeWebM = "audio/webm"
	MimeFLAC = "audio/flac"
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)
