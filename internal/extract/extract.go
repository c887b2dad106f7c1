// Package extract turns PDF and DOCX documents into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single extraction.
const DefaultTimeout = 10 * time.Second

var (
	// ErrExtract indicates the document held no extractable text.
	ErrExtract = errors.New("extract: no text extracted")
	// ErrCorrupted indicates the document could not be parsed at all.
	ErrCorrupted = errors.New("extract: document is corrupted or unsupported")
	// ErrTimeout indicates extraction did not finish before its deadline.
	ErrTimeout = errors.New("extract: timed out")
)

// Extractor runs document parsers under a deadline.
type Extractor struct {
	timeout time.Duration
}

func New(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{timeout: timeout}
}

// PDF extracts the text of every page in page order.
func (e *Extractor) PDF(ctx context.Context, data []byte) (string, error) {
	return e.run(ctx, "pdf", func(ctx context.Context) (string, error) {
		return pdfText(ctx, data)
	})
}

// DOCX extracts the raw text of the document body.
func (e *Extractor) DOCX(ctx context.Context, data []byte) (string, error) {
	return e.run(ctx, "docx", func(ctx context.Context) (string, error) {
		return docxText(ctx, data)
	})
}

// run races fn against the deadline. fn receives the bounded context and is
// expected to stop at its next checkpoint once it is done; the result channel
// is buffered so an abandoned fn never blocks.
func (e *Extractor) run(ctx context.Context, kind string, fn func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := fn(ctx)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return "", timeoutError(kind, e.timeout, ctx.Err())
		}
		return r.text, r.err
	case <-ctx.Done():
		return "", timeoutError(kind, e.timeout, ctx.Err())
	}
}

func timeoutError(kind string, after time.Duration, cause error) error {
	return fmt.Errorf("%w: %s extraction exceeded %s: %w", ErrTimeout, kind, after, cause)
}
