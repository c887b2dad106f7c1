package attachment

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"talk-bridge/internal/domain"
)

// Kind is the text pipeline an attachment is routed to.
type Kind string

const (
	KindVoice       Kind = "voice"
	KindPDF         Kind = "pdf"
	KindDOCX        Kind = "docx"
	KindUnsupported Kind = "unsupported"
)

// voiceMarker appears in the URL of voice messages recorded in the chat widget.
const voiceMarker = "talkjs_audio_message"

var extensionTypes = map[string]string{
	".webm": domain.MimeWebM,
	".flac": domain.MimeFLAC,
	".pdf":  domain.MimePDF,
	".docx": domain.MimeDOCX,
}

// KindOf maps a MIME type to its pipeline.
func KindOf(mimeType string) Kind {
	switch normalize(mimeType) {
	case domain.MimeWebM, domain.MimeFLAC:
		return KindVoice
	case domain.MimePDF:
		return KindPDF
	case domain.MimeDOCX:
		return KindDOCX
	default:
		return KindUnsupported
	}
}

// ResolveMimeType returns the effective MIME type of att. The declared type
// wins unless it is empty or generic; then the voice marker, the filename or
// URL extension, and finally the content are consulted.
func ResolveMimeType(att domain.Attachment) string {
	if declared := normalize(att.MimeType); declared != "" && declared != "application/octet-stream" {
		return declared
	}

	urlPath := ""
	if att.URL != "" {
		if u, err := url.Parse(att.URL); err == nil {
			urlPath = u.Path
		} else {
			urlPath, _, _ = strings.Cut(att.URL, "?")
		}
	}

	if strings.Contains(att.URL, voiceMarker) {
		if strings.EqualFold(path.Ext(urlPath), ".webm") {
			return domain.MimeWebM
		}
		return domain.MimeFLAC
	}

	for _, name := range []string{att.Filename, urlPath} {
		if t, ok := extensionTypes[strings.ToLower(path.Ext(name))]; ok {
			return t
		}
	}

	if bytes.HasPrefix(att.Data, []byte("%PDF-")) {
		return domain.MimePDF
	}
	return "application/octet-stream"
}

// Filename returns att.Filename or the last URL path segment, falling back to
// "attachment".
func Filename(att domain.Attachment) string {
	if name := strings.TrimSpace(att.Filename); name != "" {
		return path.Base(name)
	}
	if att.URL != "" {
		if u, err := url.Parse(att.URL); err == nil {
			if base := path.Base(u.Path); base != "." && base != "/" {
				return base
			}
		}
	}
	return "attachment"
}

func normalize(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}
