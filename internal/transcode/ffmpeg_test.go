package transcode

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fakes require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

const copyFileScript = `in=""; out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift 2 ;;
    *) out="$1"; shift ;;
  esac
done
cp "$in" "$out"`

func TestNew_Strategies(t *testing.T) {
	tr, err := New("")
	require.NoError(t, err)
	require.Equal(t, StrategyPipe, tr.strategy)

	_, err = New("carrier-pigeon")
	require.Error(t, err)
}

func TestArgs(t *testing.T) {
	args := Args("pipe:0", "pipe:1")
	require.Contains(t, args, "flac")
	require.Equal(t, "pipe:1", args[len(args)-1])
	require.Subset(t, args, []string{"-ac", "1", "-ar", "16000", "-compression_level", "8"})
}

func TestToFLAC_Pipe(t *testing.T) {
	bin := fakeFFmpeg(t, "exec cat")
	tr, err := New(StrategyPipe, WithBinary(bin))
	require.NoError(t, err)

	out, err := tr.ToFLAC(context.Background(), []byte("webm-bytes"))
	require.NoError(t, err)
	require.Equal(t, "webm-bytes", string(out))
}

func TestToFLAC_TempFile_RemovesTempFiles(t *testing.T) {
	bin := fakeFFmpeg(t, copyFileScript)
	tmp := t.TempDir()
	tr, err := New(StrategyTempFile, WithBinary(bin), WithTempDir(tmp))
	require.NoError(t, err)

	out, err := tr.ToFLAC(context.Background(), []byte("webm-bytes"))
	require.NoError(t, err)
	require.Equal(t, "webm-bytes", string(out))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestToFLAC_ProcessFailure(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "Invalid data found when processing input" >&2; exit 1`)
	tmp := t.TempDir()
	tr, err := New(StrategyTempFile, WithBinary(bin), WithTempDir(tmp))
	require.NoError(t, err)

	_, err = tr.ToFLAC(context.Background(), []byte("junk"))
	require.ErrorIs(t, err, ErrTranscode)
	require.Contains(t, err.Error(), "Invalid data found")

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestToFLAC_EmptyOutput(t *testing.T) {
	bin := fakeFFmpeg(t, "exit 0")
	tr, err := New(StrategyPipe, WithBinary(bin))
	require.NoError(t, err)

	_, err = tr.ToFLAC(context.Background(), []byte("webm"))
	require.ErrorIs(t, err, ErrTranscode)
}

func TestToFLAC_EmptyInput(t *testing.T) {
	tr, err := New(StrategyPipe)
	require.NoError(t, err)
	_, err = tr.ToFLAC(context.Background(), nil)
	require.ErrorIs(t, err, ErrTranscode)
}

func TestToFLAC_BinaryNotFound(t *testing.T) {
	for _, bin := range []string{
		filepath.Join(t.TempDir(), "missing-ffmpeg"),
		"ffmpeg-binary-that-does-not-exist",
	} {
		tr, err := New(StrategyPipe, WithBinary(bin))
		require.NoError(t, err)

		_, err = tr.ToFLAC(context.Background(), []byte("webm"))
		require.ErrorIs(t, err, ErrBinaryNotFound, "binary=%s", bin)
	}
}

func TestToFLAC_TimeoutKillsProcessAndCleansUp(t *testing.T) {
	bin := fakeFFmpeg(t, "exec sleep 10")
	tmp := t.TempDir()
	tr, err := New(StrategyTempFile, WithBinary(bin), WithTempDir(tmp), WithTimeout(100*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = tr.ToFLAC(context.Background(), []byte("webm"))
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}
