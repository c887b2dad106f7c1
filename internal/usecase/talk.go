package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"talk-bridge/internal/attachment"
	"talk-bridge/internal/dedup"
	"talk-bridge/internal/domain"
	"talk-bridge/internal/transcode"
)

type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) ([]byte, error)
}

type Transcoder interface {
	ToFLAC(ctx context.Context, webm []byte) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

type Extractor interface {
	PDF(ctx context.Context, data []byte) (string, error)
	DOCX(ctx context.Context, data []byte) (string, error)
}

type Completer interface {
	Complete(ctx context.Context, history []domain.ChatMessage) (string, error)
}

type Relayer interface {
	Send(ctx context.Context, conversationID, text string) error
	BotID() string
}

type Ledger interface {
	MarkProcessed(ctx context.Context, key string) (bool, error)
}

type History interface {
	Append(key, role, content string)
	Snapshot(key string) []domain.ChatMessage
}

// Deps are the collaborators of TalkService. Fetcher is needed for attachments
// given by URL; Relayer and Ledger only for webhook deliveries.
type Deps struct {
	Fetcher     Fetcher
	Transcoder  Transcoder
	Transcriber Transcriber
	Extractor   Extractor
	Completer   Completer
	History     History
	Relayer     Relayer
	Ledger      Ledger
}

type Option func(*TalkService)

// WithSpoolDir keeps a copy of each fetched attachment under dir while it is
// processed.
func WithSpoolDir(dir string) Option {
	return func(s *TalkService) {
		s.spoolDir = strings.TrimSpace(dir)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *TalkService) {
		if l != nil {
			s.logger = l
		}
	}
}

type TalkService struct {
	fetcher     Fetcher
	transcoder  Transcoder
	transcriber Transcriber
	extractor   Extractor
	completer   Completer
	history     History
	relayer     Relayer
	ledger      Ledger

	spoolDir string
	logger   *slog.Logger
}

// TalkInput is a request answered in the HTTP response.
type TalkInput struct {
	SessionKey string
	Text       string
	Prompt     string
	Attachment *domain.Attachment
}

type TalkOutput struct {
	Reply string
}

// WebhookInput is one message delivered by the chat provider.
type WebhookInput struct {
	ConversationID string
	MessageID      string
	SenderID       string
	Text           string
	Attachment     *domain.Attachment
}

func NewTalkService(d Deps, opts ...Option) (*TalkService, error) {
	if d.Transcoder == nil {
		return nil, errors.New("usecase: transcoder must not be nil")
	}
	if d.Transcriber == nil {
		return nil, errors.New("usecase: transcriber must not be nil")
	}
	if d.Extractor == nil {
		return nil, errors.New("usecase: extractor must not be nil")
	}
	if d.Completer == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if d.History == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	s := &TalkService{
		fetcher:     d.Fetcher,
		transcoder:  d.Transcoder,
		transcriber: d.Transcriber,
		extractor:   d.Extractor,
		completer:   d.Completer,
		history:     d.History,
		relayer:     d.Relayer,
		ledger:      d.Ledger,
		logger:      slog.Default().With("component", "usecase"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Talk answers one user turn and returns the reply. Pipeline failures leave
// the session history untouched.
func (s *TalkService) Talk(ctx context.Context, in TalkInput) (TalkOutput, error) {
	key := strings.TrimSpace(in.SessionKey)
	if key == "" {
		key = DefaultSessionKey
	}

	var content string
	switch {
	case in.Attachment != nil:
		text, uerr := s.attachmentText(ctx, *in.Attachment)
		if uerr != nil {
			s.logFailure(ctx, uerr, "session", key)
			return TalkOutput{}, uerr
		}
		content = joinPrompt(in.Prompt, text)
	case strings.TrimSpace(in.Text) != "":
		content = strings.TrimSpace(in.Text)
	default:
		return TalkOutput{}, newError(ErrorValidation, "empty_request", msgNoContent, nil)
	}

	s.history.Append(key, domain.RoleUser, content)
	reply, err := s.completer.Complete(ctx, s.history.Snapshot(key))
	if err != nil {
		uerr := stageComplete.fail(err)
		s.logFailure(ctx, uerr, "session", key)
		return TalkOutput{}, uerr
	}
	s.history.Append(key, domain.RoleAssistant, reply)
	return TalkOutput{Reply: reply}, nil
}

// Webhook handles one provider delivery. Replies, and apologies for failed
// attachments or completions, are relayed into the conversation. Only invalid
// payloads, relay failures and ledger failures are returned as errors.
func (s *TalkService) Webhook(ctx context.Context, in WebhookInput) error {
	if s.relayer == nil {
		return newError(ErrorInternal, "relay_not_configured", msgInternal, nil)
	}
	convID := strings.TrimSpace(in.ConversationID)
	msgID := strings.TrimSpace(in.MessageID)
	senderID := strings.TrimSpace(in.SenderID)
	if convID == "" || msgID == "" || senderID == "" {
		return newError(ErrorValidation, "missing_fields", msgMissingFields, nil)
	}
	logger := s.logger.With("conversation_id", convID, "message_id", msgID)

	if s.ledger != nil {
		first, err := s.ledger.MarkProcessed(ctx, dedup.Key(convID, msgID))
		if err != nil {
			return newError(ErrorInternal, "ledger_error", msgInternal, err)
		}
		if !first {
			logger.InfoContext(ctx, "skipping duplicate delivery")
			return nil
		}
	}

	text := strings.TrimSpace(in.Text)
	if senderID == s.relayer.BotID() {
		if text != "" {
			s.history.Append(convID, domain.RoleAssistant, text)
		}
		return nil
	}

	var content string
	switch {
	case in.Attachment != nil:
		att := *in.Attachment
		if strings.TrimSpace(att.URL) == "" && len(att.Data) == 0 {
			return newError(ErrorValidation, "missing_attachment_url", msgMissingURL, nil)
		}
		extracted, uerr := s.attachmentText(ctx, att)
		if uerr != nil {
			s.logFailure(ctx, uerr, "conversation_id", convID)
			return s.relay(ctx, convID, chatMessage(uerr))
		}
		content = joinPrompt(text, extracted)
	case text != "":
		content = text
	default:
		return newError(ErrorValidation, "empty_message", msgNoContent, nil)
	}

	s.history.Append(convID, domain.RoleUser, content)
	reply, err := s.completer.Complete(ctx, s.history.Snapshot(convID))
	if err != nil {
		uerr := stageComplete.fail(err)
		s.logFailure(ctx, uerr, "conversation_id", convID)
		return s.relay(ctx, convID, chatMessage(uerr))
	}
	return s.relay(ctx, convID, reply)
}

func (s *TalkService) relay(ctx context.Context, convID, text string) error {
	if err := s.relayer.Send(ctx, convID, text); err != nil {
		return newError(ErrorRelay, "relay_failed", msgRelayFailed, err)
	}
	return nil
}

// attachmentText turns an attachment into text for the conversation. Any
// spooled copy is removed before it returns.
func (s *TalkService) attachmentText(ctx context.Context, att domain.Attachment) (string, *Error) {
	mimeType := attachment.ResolveMimeType(att)
	kind := attachment.KindOf(mimeType)
	if kind == attachment.KindUnsupported {
		return "", stageUnsupported.fail(fmt.Errorf("usecase: unsupported mime type %q", mimeType))
	}

	data := att.Data
	if len(data) == 0 {
		if s.fetcher == nil {
			return "", newError(ErrorInternal, "fetcher_not_configured", msgInternal, nil)
		}
		dest := s.spoolPath(att)
		if dest != "" {
			defer s.removeSpool(ctx, dest)
		}
		fetched, err := s.fetcher.Fetch(ctx, att.URL, dest)
		if err != nil {
			return "", stageFetch.fail(err)
		}
		data = fetched
	}

	switch kind {
	case attachment.KindVoice:
		return s.voiceText(ctx, data, mimeType)
	case attachment.KindPDF:
		text, err := s.extractor.PDF(ctx, data)
		if err != nil {
			return "", stagePDF.fail(err)
		}
		return text, nil
	default:
		text, err := s.extractor.DOCX(ctx, data)
		if err != nil {
			return "", stageDOCX.fail(err)
		}
		return text, nil
	}
}

// voiceText transcribes audio, converting WebM recordings to FLAC first.
func (s *TalkService) voiceText(ctx context.Context, data []byte, mimeType string) (string, *Error) {
	audioType := domain.MimeFLAC
	if strings.HasPrefix(strings.ToLower(mimeType), domain.MimeWebM) {
		flac, err := s.transcoder.ToFLAC(ctx, data)
		switch {
		case errors.Is(err, transcode.ErrBinaryNotFound):
			return "", stageFFmpeg.fail(err)
		case err != nil:
			return "", stageTranscode.fail(err)
		}
		data = flac
	}
	text, err := s.transcriber.Transcribe(ctx, data, audioType)
	if err != nil {
		return "", stageTranscribe.fail(err)
	}
	return text, nil
}

func (s *TalkService) spoolPath(att domain.Attachment) string {
	if s.spoolDir == "" {
		return ""
	}
	return filepath.Join(s.spoolDir, uuid.NewString()+"-"+attachment.Filename(att))
}

func (s *TalkService) removeSpool(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WarnContext(ctx, "failed to remove spooled attachment", "path", path, "err", err)
	}
}

func (s *TalkService) logFailure(ctx context.Context, e *Error, args ...any) {
	args = append(args, "code", e.Code, "reason", e.Reason, "err", e.Err)
	s.logger.ErrorContext(ctx, "talk request failed", args...)
}

// joinPrompt places an optional instruction ahead of attachment text.
func joinPrompt(prompt, text string) string {
	if p := strings.TrimSpace(prompt); p != "" {
		return p + "\n\n" + text
	}
	return text
}
