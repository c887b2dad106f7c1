package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"talk-bridge/internal/attachment"
	"talk-bridge/internal/domain"
	"talk-bridge/internal/usecase"
)

// Mode selects how replies reach the user.
type Mode string

const (
	// ModeDirect returns the reply in the HTTP response.
	ModeDirect Mode = "direct"
	// ModeRelay acknowledges provider webhooks and posts replies into the chat.
	ModeRelay Mode = "relay"
)

const (
	correlationHeader = "X-Correlation-Id"
	sessionHeader     = "X-Session-Id"

	multipartMemory = 32 << 20
	attachmentField = "attachment"
	promptField     = "prompt"
)

type TalkUseCase interface {
	Talk(ctx context.Context, in usecase.TalkInput) (usecase.TalkOutput, error)
	Webhook(ctx context.Context, in usecase.WebhookInput) error
}

type Handler struct {
	uc     TalkUseCase
	mode   Mode
	logger *slog.Logger
}

type textRequest struct {
	Text string `json:"text"`
}

type webhookRequest struct {
	Data struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
		Message struct {
			ID         string `json:"id"`
			Text       string `json:"text"`
			Attachment *struct {
				URL  string `json:"url"`
				Size int64  `json:"size"`
			} `json:"attachment"`
		} `json:"message"`
		Sender struct {
			ID string `json:"id"`
		} `json:"sender"`
	} `json:"data"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewHandler(uc TalkUseCase, mode Mode) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	switch mode {
	case ModeDirect, ModeRelay:
	case "":
		mode = ModeDirect
	default:
		return nil, fmt.Errorf("handler: unknown reply mode %q", mode)
	}
	return &Handler{uc: uc, mode: mode, logger: slog.Default().With("component", "handler")}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID, "mode", string(h.mode))

	body, err := requestBody(req)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request body", "err", err)
		return errorJSON(correlationID, http.StatusBadRequest, string(usecase.ErrorRequestParse), "Invalid request body."), nil
	}

	if h.mode == ModeRelay {
		return h.handleWebhook(ctx, logger, correlationID, body), nil
	}
	return h.handleDirect(ctx, logger, correlationID, header(req.Headers, "Content-Type"), header(req.Headers, sessionHeader), body), nil
}

func (h *Handler) handleDirect(ctx context.Context, logger *slog.Logger, correlationID, contentType, sessionKey string, body []byte) events.APIGatewayProxyResponse {
	in, err := parseDirect(contentType, body)
	if err != nil {
		logger.WarnContext(ctx, "failed to parse request", "err", err)
		return errorJSON(correlationID, http.StatusBadRequest, string(usecase.ErrorRequestParse), "Invalid request body.")
	}
	in.SessionKey = sessionKey

	out, err := h.uc.Talk(ctx, in)
	if err != nil {
		return h.mapError(ctx, logger, correlationID, err)
	}
	return okJSON(correlationID, replyResponse{Reply: out.Reply})
}

func (h *Handler) handleWebhook(ctx context.Context, logger *slog.Logger, correlationID string, body []byte) events.APIGatewayProxyResponse {
	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.WarnContext(ctx, "failed to parse webhook", "err", err)
		return errorJSON(correlationID, http.StatusBadRequest, string(usecase.ErrorRequestParse), "Invalid request body. Expected JSON.")
	}

	in := usecase.WebhookInput{
		ConversationID: req.Data.Conversation.ID,
		MessageID:      req.Data.Message.ID,
		SenderID:       req.Data.Sender.ID,
		Text:           req.Data.Message.Text,
	}
	if a := req.Data.Message.Attachment; a != nil {
		in.Attachment = &domain.Attachment{URL: a.URL}
	}

	if err := h.uc.Webhook(ctx, in); err != nil {
		return h.mapError(ctx, logger, correlationID, err)
	}
	return okJSON(correlationID, struct{}{})
}

// parseDirect reads either a multipart upload or a JSON text message.
func parseDirect(contentType string, body []byte) (usecase.TalkInput, error) {
	mediaType, params, _ := mime.ParseMediaType(contentType)
	if mediaType != "multipart/form-data" {
		var req textRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return usecase.TalkInput{}, fmt.Errorf("handler: decode json body: %w", err)
		}
		return usecase.TalkInput{Text: req.Text}, nil
	}

	boundary := params["boundary"]
	if boundary == "" {
		return usecase.TalkInput{}, errors.New("handler: multipart body without boundary")
	}
	form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(multipartMemory)
	if err != nil {
		return usecase.TalkInput{}, fmt.Errorf("handler: read multipart form: %w", err)
	}
	defer func() { _ = form.RemoveAll() }()

	in := usecase.TalkInput{}
	if v := form.Value[promptField]; len(v) > 0 {
		in.Prompt = v[0]
	}
	if v := form.Value["text"]; len(v) > 0 {
		in.Text = v[0]
	}
	if files := form.File[attachmentField]; len(files) > 0 {
		att, err := readUpload(files[0])
		if err != nil {
			return usecase.TalkInput{}, err
		}
		in.Attachment = &att
	}
	return in, nil
}

func readUpload(fh *multipart.FileHeader) (domain.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("handler: open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := attachment.ReadAllWithLimit(f, attachment.MaxBytes)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("handler: read upload: %w", err)
	}
	return domain.Attachment{
		MimeType: fh.Header.Get("Content-Type"),
		Filename: fh.Filename,
		Data:     data,
	}, nil
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return io.ReadAll(base64.NewDecoder(base64.StdEncoding, strings.NewReader(req.Body)))
}

func (h *Handler) mapError(ctx context.Context, logger *slog.Logger, correlationID string, err error) events.APIGatewayProxyResponse {
	var uerr *usecase.Error
	if !errors.As(err, &uerr) {
		logger.ErrorContext(ctx, "unexpected error", "err", err)
		return errorJSON(correlationID, http.StatusInternalServerError, string(usecase.ErrorInternal), "Internal server error.")
	}

	status := statusFor(uerr.Code)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "code", uerr.Code, "reason", uerr.Reason, "err", uerr.Err)
	} else {
		logger.InfoContext(ctx, "request rejected", "code", uerr.Code, "reason", uerr.Reason)
	}

	message := uerr.Message
	if message == "" {
		message = http.StatusText(status)
	}
	return errorJSON(correlationID, status, string(uerr.Code), message)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorRequestParse, usecase.ErrorValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func header(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func okJSON(correlationID string, body any) events.APIGatewayProxyResponse {
	return jsonResponse(correlationID, http.StatusOK, body)
}

func errorJSON(correlationID string, status int, code, message string) events.APIGatewayProxyResponse {
	return jsonResponse(correlationID, status, errorResponse{Error: message, Code: code})
}

func jsonResponse(correlationID string, status int, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"Internal server error.","code":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}
