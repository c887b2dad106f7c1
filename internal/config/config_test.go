package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"REPLY_MODE", "HISTORY_CAP", "TRANSCODE_STRATEGY", "TRANSCODE_TIMEOUT", "EXTRACT_TIMEOUT", "TRANSCRIBE_TIMEOUT", "TRANSCRIBE_POLL_INTERVAL", "FFMPEG_PATH", "TALKJS_BOT_ID", "DEDUP_TTL"} {
		unsetEnv(t, k)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "direct", cfg.ReplyMode)
	require.Equal(t, 10, cfg.HistoryCap)
	require.Equal(t, "pipe", cfg.TranscodeStrategy)
	require.Equal(t, "ffmpeg", cfg.FFmpegPath)
	require.Equal(t, 30*time.Second, cfg.TranscodeTimeout)
	require.Equal(t, 10*time.Second, cfg.ExtractTimeout)
	require.Equal(t, 8*time.Second, cfg.TranscribeTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.TranscribePollInterval)
	require.Zero(t, cfg.DedupTTL)
	require.Equal(t, "chatbotExampleBot", cfg.TalkJSBotID)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REPLY_MODE", " Relay ")
	t.Setenv("TALKJS_APP_ID", "app-1")
	t.Setenv("HISTORY_CAP", "20")
	t.Setenv("TRANSCODE_STRATEGY", "tempfile")
	t.Setenv("EXTRACT_TIMEOUT", "5s")
	t.Setenv("SPOOL_DIR", "/tmp/spool")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "relay", cfg.ReplyMode)
	require.Equal(t, 20, cfg.HistoryCap)
	require.Equal(t, "tempfile", cfg.TranscodeStrategy)
	require.Equal(t, 5*time.Second, cfg.ExtractTimeout)
	require.Equal(t, "/tmp/spool", cfg.SpoolDir)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"mode":         {"REPLY_MODE": "carrier"},
		"strategy":     {"TRANSCODE_STRATEGY": "magic"},
		"cap":          {"HISTORY_CAP": "1"},
		"cap not int":  {"HISTORY_CAP": "ten"},
		"duration":     {"EXTRACT_TIMEOUT": "soon"},
		"relay no app": {"REPLY_MODE": "relay", "TALKJS_APP_ID": ""},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	unsetEnv(t, "LLM_MODEL")
	t.Setenv("GEMINI_API_KEY", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LLM_MODEL=gemini-2.0-flash\nGEMINI_API_KEY=from-file\n"), 0o600))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	t.Cleanup(func() { _ = os.Unsetenv("LLM_MODEL") })

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "gemini-2.0-flash", cfg.LLMModel)
	require.Equal(t, "from-env", cfg.GeminiAPIKey)
}
