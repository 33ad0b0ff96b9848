// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package log configures the shared logrus logger used across the
// node: a prefixed, color-aware console formatter plus rotation to a
// file, following the plain `log "github.com/sirupsen/logrus"` idiom
// used throughout the codebase.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	// FilePath, if non-empty, also rotates logs to disk.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup installs a prefixed, color-capable formatter on logrus's
// standard logger and, if opts.FilePath is set, tees output through a
// lumberjack rotating writer.
func Setup(opts Options) *logrus.Logger {
	logger := logrus.StandardLogger()
	logger.SetFormatter(&prefixed.TextFormatter{
		ForceColors:     isatty.IsTerminal(os.Stdout.Fd()),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	var out io.Writer = colorable.NewColorableStdout()
	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
		}
		out = io.MultiWriter(out, rotator)
	}
	logger.SetOutput(out)
	return logger
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// WithNode returns an entry pre-populated with the node's identity, the
// idiom used to prefix log lines with a component/prefix field across
// elsewhere in this module.
func WithNode(nodeID string) *logrus.Entry {
	return logrus.WithField("prefix", nodeID)
}
