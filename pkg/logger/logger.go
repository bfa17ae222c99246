package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Interface interface {
	Debug(message interface{}, args ...interface{})
	Info(message string, args ...interface{})
	Warn(message string, args ...interface{})
	Error(message interface{}, args ...interface{})
	Fatal(message interface{}, args ...interface{})
}

type Logger struct {
	logger *zap.SugaredLogger
}

var _ Interface = (*Logger)(nil)

func New(level string) *Logger {
	var l zapcore.Level

	switch strings.ToLower(level) {
	case "error":
		l = zapcore.ErrorLevel
	case "warn":
		l = zapcore.WarnLevel
	case "info":
		l = zapcore.InfoLevel
	case "debug":
		l = zapcore.DebugLevel
	default:
		l = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(l)
	cfg.DisableStacktrace = true

	zapLogger, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		panic(fmt.Sprintf("logger - New - cfg.Build: %v", err))
	}

	return &Logger{logger: zapLogger.Sugar()}
}

func (l *Logger) Debug(message interface{}, args ...interface{}) {
	l.msg(l.logger.Debugf, message, args...)
}

func (l *Logger) Info(message string, args ...interface{}) {
	l.msg(l.logger.Infof, message, args...)
}

func (l *Logger) Warn(message string, args ...interface{}) {
	l.msg(l.logger.Warnf, message, args...)
}

func (l *Logger) Error(message interface{}, args ...interface{}) {
	l.msg(l.logger.Errorf, message, args...)
}

func (l *Logger) Fatal(message interface{}, args ...interface{}) {
	l.msg(l.logger.Fatalf, message, args...)
}

func (l *Logger) msg(logf func(template string, args ...interface{}), message interface{}, args ...interface{}) {
	switch m := message.(type) {
	case error:
		if len(args) == 0 {
			logf("%s", m.Error())
		} else {
			logf("%s: %s", fmt.Sprint(args[0]), m.Error())
		}
	case string:
		logf(m, args...)
	default:
		logf("message %v has unknown type %T", message, message)
	}
}

func (l *Logger) Sync() {
	_ = l.logger.Sync()
}
