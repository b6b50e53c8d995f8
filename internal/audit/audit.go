package audit

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// level is shared by every logger built here so debug output can be flipped
// at runtime.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Set enables or disables debug output.
func Set(enabled bool) {
	if enabled {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// Enabled reports whether debug output is on.
func Enabled() bool {
	return level.Enabled(zapcore.DebugLevel)
}

// NewLogger builds the console logger used by the command line tool.
// Output goes to w, or stderr when w is nil, so stdout stays free for results.
func NewLogger(w io.Writer) *zap.SugaredLogger {
	if w == nil {
		w = os.Stderr
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}
