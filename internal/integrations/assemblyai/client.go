// Package assemblyai submits audio to the AssemblyAI transcription API and
// waits for the transcript.
package assemblyai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL      = "https://api.assemblyai.com"
	defaultPollInterval = 500 * time.Millisecond
	defaultTimeout      = 8 * time.Second

	statusCompleted = "completed"
	statusError     = "error"
)

var (
	// ErrTranscription indicates the service rejected or failed the job.
	ErrTranscription = errors.New("assemblyai: transcription failed")
	// ErrTimeout indicates no final transcript arrived before the deadline.
	ErrTimeout = errors.New("assemblyai: transcription timed out")
)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("assemblyai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcript struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Client is a submit-and-poll AssemblyAI client.
type Client struct {
	http         *resty.Client
	pollInterval time.Duration
	timeout      time.Duration
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if u := strings.TrimRight(strings.TrimSpace(baseURL), "/"); u != "" {
			c.http.SetBaseURL(u)
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("assemblyai: api key must not be empty")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetHeader("Authorization", apiKey).
			SetHeader("Content-Type", "application/json"),
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Transcribe submits audio inline as a base64 data URI and polls until the
// job completes, fails, or the client timeout elapses. In-flight requests are
// aborted when the deadline passes.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrTranscription)
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "audio/flac"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	job, err := c.submit(ctx, "data:"+mimeType+";base64,"+base64.StdEncoding.EncodeToString(audio))
	if err != nil {
		return "", c.classify(ctx, err)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		switch job.Status {
		case statusCompleted:
			text := strings.TrimSpace(job.Text)
			if text == "" {
				return "", fmt.Errorf("%w: empty transcript for %s", ErrTranscription, job.ID)
			}
			return text, nil
		case statusError:
			return "", fmt.Errorf("%w: %s", ErrTranscription, job.Error)
		}

		select {
		case <-ctx.Done():
			return "", c.classify(ctx, ctx.Err())
		case <-ticker.C:
		}

		job, err = c.get(ctx, job.ID)
		if err != nil {
			return "", c.classify(ctx, err)
		}
	}
}

func (c *Client) submit(ctx context.Context, audioURL string) (transcript, error) {
	var out transcript
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(transcriptRequest{AudioURL: audioURL}).
		SetResult(&out).
		Post("/v2/transcript")
	if err != nil {
		return transcript{}, fmt.Errorf("assemblyai: submit request failed: %w", err)
	}
	if !res.IsSuccess() {
		return transcript{}, &HTTPStatusError{StatusCode: res.StatusCode(), URL: res.Request.URL, Body: res.String()}
	}
	if out.ID == "" {
		return transcript{}, errors.New("assemblyai: submit response missing transcript id")
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, id string) (transcript, error) {
	var out transcript
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Get("/v2/transcript/{id}")
	if err != nil {
		return transcript{}, fmt.Errorf("assemblyai: poll request failed: %w", err)
	}
	if !res.IsSuccess() {
		return transcript{}, &HTTPStatusError{StatusCode: res.StatusCode(), URL: res.Request.URL, Body: res.String()}
	}
	return out, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, ctxErr)
	}
	return fmt.Errorf("%w: %w", ErrTranscription, err)
}
