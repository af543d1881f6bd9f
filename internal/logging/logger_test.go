package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestInitLogger_WritesStageFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := InitLogger(cfgpkg.LoggingConfig{
		Level:  "info",
		Format: "json",
		File:   cfgpkg.LumberjackConfig{Dir: dir, MaxSizeMB: 1},
	}, cfgpkg.StageSpectrum)
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "bee-spectrum.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"logger":"spectrum"`)
}

func TestGenerateInstanceID(t *testing.T) {
	t.Setenv("BEE_INSTANCE_ID", "")
	id := GenerateInstanceID("display")
	assert.True(t, strings.HasPrefix(id, "display-"))

	t.Setenv("BEE_INSTANCE_ID", "fixed")
	assert.Equal(t, "fixed", GenerateInstanceID("display"))
}
