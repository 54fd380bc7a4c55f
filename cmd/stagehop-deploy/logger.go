package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func logger(logLevel string) *zap.Logger {
	level := zapcore.InfoLevel
	if logLevel != "" {
		if err := level.Set(logLevel); err != nil {
			fmt.Printf("invalid log level %q: %s\n", logLevel, err)
			os.Exit(1)
		}
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := config.Build()
	if err != nil {
		fmt.Printf("unable to build logger: %s\n", err)
		os.Exit(1)
	}

	return log
}
