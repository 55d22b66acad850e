package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_JSONFileOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "vfs.log")

	require.NoError(t, Configure(Config{Level: "info", Format: "json", Output: out}))
	t.Cleanup(func() {
		_ = Configure(Config{Level: "INFO", Format: "text", Output: "stdout"})
	})

	Debug("hidden %d", 1)
	Info("visible %s", "entry")
	Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"visible entry"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestConfigure_Rejects(t *testing.T) {
	assert.Error(t, Configure(Config{Level: "LOUD"}))
	assert.Error(t, Configure(Config{Format: "xml"}))
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("INFO") })

	SetLevel("debug")
	assert.True(t, Enabled(LevelDebug))

	SetLevel("error")
	assert.False(t, Enabled(LevelWarn))
	assert.True(t, Enabled(LevelError))

	// unknown names leave the level untouched
	SetLevel("verbose")
	assert.False(t, Enabled(LevelWarn))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
