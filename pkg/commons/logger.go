// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package commons

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application-wide logging contract. It is a thin wrapper
// over a sugared zap logger so that packages depend on this interface
// rather than on zap directly.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Sync() error
}

type applicationLogger struct {
	*zap.SugaredLogger
}

// NewApplicationLogger builds a console logger for development and tests.
func NewApplicationLogger() (Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &applicationLogger{l.Sugar()}, nil
}

// NewFileLogger builds a production logger that writes JSON lines both to
// stdout and to a size-rotated file (5MB, 5 backups).
func NewFileLogger(path string, level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 5,
		Compress:   true,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(rotator), lvl),
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), lvl),
	)
	return &applicationLogger{zap.New(core, zap.AddCallerSkip(1)).Sugar()}, nil
}
