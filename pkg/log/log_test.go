package log

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithFilePathDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	require.NotPanics(t, func() {
		logger := Setup(Options{FilePath: filepath.Join(dir, "node.log")})
		logger.WithField("test", true).Info("setup ok")
	})
}

func TestWithNodeAttachesPrefixField(t *testing.T) {
	entry := WithNode("abc123")
	require.Equal(t, "abc123", entry.Data["prefix"])
}
