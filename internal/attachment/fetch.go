// Package attachment downloads chat attachments and decides which text
// pipeline they belong to.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// MaxBytes is the largest attachment accepted from a URL or an upload.
	MaxBytes int64 = 25 * 1024 * 1024

	defaultFetchTimeout = 30 * time.Second
)

var (
	// ErrFetch indicates the attachment could not be downloaded.
	ErrFetch = errors.New("attachment fetch failed")
	// ErrTooLarge indicates the payload exceeds MaxBytes.
	ErrTooLarge = errors.New("attachment too large")
)

// Fetcher downloads attachments over HTTP.
type Fetcher struct {
	client   *resty.Client
	maxBytes int64
}

type Option func(*Fetcher)

func WithHTTPClient(c *resty.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   resty.New().SetTimeout(defaultFetchTimeout),
		maxBytes: MaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url and returns its body. When dest is not empty the body is
// also written there, creating parent directories as needed. The caller owns
// dest and must remove it.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: url is required", ErrFetch)
	}

	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	body := res.RawBody()
	defer func() { _ = body.Close() }()

	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrFetch, res.StatusCode(), url)
	}

	data, err := ReadAllWithLimit(body, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	if dest != "" {
		if err := Spool(dest, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Spool writes data to path, creating parent directories as needed.
func Spool(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("attachment: create spool dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("attachment: write spool file: %w", err)
	}
	return nil
}

// ReadAllWithLimit reads from reader and rejects payloads larger than maxBytes.
func ReadAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	if reader == nil {
		return nil, errors.New("attachment: reader is required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("attachment: max bytes must be greater than 0")
	}
	data, err := io.ReadAll(&io.LimitedReader{R: reader, N: maxBytes + 1})
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
