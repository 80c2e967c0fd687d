// Package logger builds the process logger: a console sink on stdout and a
// rotating file under the log directory.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Dir   string // empty disables the file sink
	Level string
	// Color forces coloured console levels; nil means "when stdout is a terminal".
	Color *bool
	Now   func() time.Time
}

// New returns the logger and a sync func to call before exit.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	color := term.IsTerminal(int(os.Stdout.Fd()))
	if opts.Color != nil {
		color = *opts.Color
	}
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	if color {
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level),
	}

	var rotator *lumberjack.Logger
	if opts.Dir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("log dir: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename: filepath.Join(opts.Dir, FileName(now())),
			MaxSize:  75, // megabytes
			MaxAge:   3,  // days
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), level))
	}

	log := zap.New(zapcore.NewTee(cores...))
	sync := func() {
		_ = log.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return log, sync, nil
}

// FileName is the log file name for a process started at t.
func FileName(t time.Time) string {
	return "main_" + t.Format("2006-01-02_15-04-05") + ".log"
}
