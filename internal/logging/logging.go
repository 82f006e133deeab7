// Package logging builds the process-wide structured logger. The teacher
// repo logs with bare log/fmt; this repo follows the rest of the pack
// (go-coffee's pkg/logger, the p2p-lend oracle aggregator) in using zap for
// structured, leveled logging instead.
package logging

import (
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger.
type Options struct {
	// InsideFile mirrors log output to a rotating file in addition to
	// stderr, keyed on the LOG_INSIDE_FILE config flag.
	InsideFile bool
	FilePath   string
}

// New builds a zap.Logger. With InsideFile unset, it logs JSON to stderr
// only; with it set, a lumberjack-backed rotating file core is added.
func New(opts Options) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		zap.InfoLevel,
	)

	if !opts.InsideFile {
		return zap.New(consoleCore, zap.AddCaller()), nil
	}

	path := opts.FilePath
	if path == "" {
		path = "indexer.log"
	}
	fileSync := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileSync, zap.InfoLevel)

	return zap.New(zapcore.NewTee(consoleCore, fileCore), zap.AddCaller()), nil
}
