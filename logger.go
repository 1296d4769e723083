package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger   = zap.NewNop().Sugar()
	logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// setupLogging sends log output to stdout and to a rolling file under
// baseDir/logs.
func setupLogging(debug bool, file string) {
	if file == "" {
		file = "client.log"
	}
	if !filepath.IsAbs(file) {
		logDir := filepath.Join(baseDir, "logs")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Printf("could not create log directory: %v\n", err)
		}
		file = filepath.Join(logDir, file)
	}
	lj := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	ws := zapcore.NewMultiWriteSyncer(zapcore.AddSync(lj), zapcore.AddSync(os.Stdout))
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, logLevel)
	logger = zap.New(core, zap.AddCaller()).Sugar()

	setDebugLogging(debug)
}

func setDebugLogging(enabled bool) {
	if enabled {
		logLevel.SetLevel(zapcore.DebugLevel)
	} else {
		logLevel.SetLevel(zapcore.InfoLevel)
	}
}

func logError(format string, v ...interface{}) {
	logger.Errorf(format, v...)
}

func logWarn(format string, v ...interface{}) {
	logger.Warnf(format, v...)
}

func logDebug(format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

func syncLogging() {
	_ = logger.Sync()
}
