package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the shared application logger. InitLogger replaces it from
// main; the nop default keeps library code and tests safe before then.
var Log = zap.NewNop()

// FileConfig enables log rotation when Path is non-empty.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// InitLogger configures the global logger. Logs always go to stdout;
// when file rotation is configured they are duplicated to the file.
func InitLogger(level string, file FileConfig) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), lvl),
	}

	if file.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxAge:     file.MaxAgeDays,
			MaxBackups: file.MaxBackups,
			Compress:   file.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), lvl))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	zap.ReplaceGlobals(Log)
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
