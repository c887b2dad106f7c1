// Package transcode converts chat voice recordings into the mono 16 kHz FLAC
// stream expected by the speech-to-text service.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Strategy selects how audio is handed to ffmpeg.
type Strategy string

const (
	// StrategyTempFile writes the input to a temp file and reads the output
	// file back.
	StrategyTempFile Strategy = "tempfile"
	// StrategyPipe streams the input over stdin and collects stdout.
	StrategyPipe Strategy = "pipe"
)

const (
	defaultBinary    = "ffmpeg"
	defaultTimeout   = 30 * time.Second
	defaultWaitDelay = 2 * time.Second
	stderrTailBytes  = 512
)

var (
	// ErrBinaryNotFound indicates the ffmpeg executable is not available.
	ErrBinaryNotFound = errors.New("transcode: ffmpeg binary not found")
	// ErrTranscode indicates ffmpeg ran but did not produce audio.
	ErrTranscode = errors.New("transcode: conversion failed")
	// ErrTimeout indicates the conversion did not finish before its deadline.
	ErrTimeout = errors.New("transcode: timed out")
)

// Transcoder runs ffmpeg as an external process.
type Transcoder struct {
	binary   string
	strategy Strategy
	tempDir  string
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Transcoder)

func WithBinary(path string) Option {
	return func(t *Transcoder) {
		if p := strings.TrimSpace(path); p != "" {
			t.binary = p
		}
	}
}

func WithTempDir(dir string) Option {
	return func(t *Transcoder) {
		t.tempDir = dir
	}
}

func WithTimeout(d time.Duration) Option {
	return func(t *Transcoder) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Transcoder) {
		if l != nil {
			t.logger = l
		}
	}
}

func New(strategy Strategy, opts ...Option) (*Transcoder, error) {
	switch strategy {
	case "":
		strategy = StrategyPipe
	case StrategyPipe, StrategyTempFile:
	default:
		return nil, fmt.Errorf("transcode: unknown strategy %q", strategy)
	}
	t := &Transcoder{
		binary:   defaultBinary,
		strategy: strategy,
		timeout:  defaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ToFLAC converts a WebM/Opus buffer to mono 16 kHz FLAC. The ffmpeg process
// is killed when ctx is done or the transcoder timeout elapses.
func (t *Transcoder) ToFLAC(ctx context.Context, webm []byte) ([]byte, error) {
	if len(webm) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrTranscode)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	var (
		out []byte
		err error
	)
	if t.strategy == StrategyTempFile {
		out, err = t.viaTempFiles(ctx, webm)
	} else {
		out, err = t.viaPipe(ctx, webm)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no data in converted FLAC output", ErrTranscode)
	}
	t.logger.Debug("audio transcoded",
		"strategy", string(t.strategy),
		"in_bytes", len(webm),
		"out_bytes", len(out),
		"took", time.Since(start),
	)
	return out, nil
}

func (t *Transcoder) viaPipe(ctx context.Context, webm []byte) ([]byte, error) {
	var stdout bytes.Buffer
	if err := t.run(ctx, bytes.NewReader(webm), &stdout, "pipe:0", "pipe:1"); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (t *Transcoder) viaTempFiles(ctx context.Context, webm []byte) ([]byte, error) {
	dir, err := os.MkdirTemp(t.tempDir, "transcode-*")
	if err != nil {
		return nil, fmt.Errorf("transcode: create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			t.logger.Warn("failed to remove transcode temp dir", "dir", dir, "err", rmErr)
		}
	}()

	in := filepath.Join(dir, "input.webm")
	out := filepath.Join(dir, "output.flac")
	if err := os.WriteFile(in, webm, 0o600); err != nil {
		return nil, fmt.Errorf("transcode: write input: %w", err)
	}
	if err := t.run(ctx, nil, nil, in, out); err != nil {
		return nil, err
	}
	flac, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %w", ErrTranscode, err)
	}
	return flac, nil
}

func (t *Transcoder) run(ctx context.Context, stdin *bytes.Reader, stdout *bytes.Buffer, in, out string) error {
	cmd := exec.CommandContext(ctx, t.binary, Args(in, out)...)
	cmd.WaitDelay = defaultWaitDelay
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if stdout != nil {
		cmd.Stdout = stdout
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrBinaryNotFound, t.binary, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, t.timeout, ctxErr)
	}
	return fmt.Errorf("%w: %w: %s", ErrTranscode, err, tail(stderr.String()))
}

// Args returns the ffmpeg arguments converting in to out. Either side may be
// a file path or pipe:N.
func Args(in, out string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "webm", "-i", in,
		"-vn", "-acodec", "flac", "-ac", "1", "-ar", "16000",
		"-compression_level", "8",
		"-f", "flac", out,
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailBytes {
		s = s[len(s)-stderrTailBytes:]
	}
	return s
}
