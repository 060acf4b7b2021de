// Package logging configures the workspace file logger. Everything logs
// to .space/logs/space.log; nothing goes to the terminal, which belongs
// to command output.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacehq/space/internal/core"
)

// LogFileName under the workspace logs directory.
const LogFileName = "space.log"

// New returns a JSON file logger for the workspace. When the log
// directory cannot be created the logger degrades to a nop rather than
// failing the command.
func New(ws core.Workspace) *zap.Logger {
	if err := os.MkdirAll(ws.LogsDir(), 0o755); err != nil {
		return zap.NewNop()
	}
	path := filepath.Join(ws.LogsDir(), LogFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zap.NewNop()
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if os.Getenv("SPACE_DEBUG") != "" {
		level = zapcore.DebugLevel
	}

	sink := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(file),
		level,
	)
	return zap.New(sink)
}
