package logs

import (
	"context"

	"go.uber.org/zap"
)

type zapLogger struct {
	log *zap.SugaredLogger
}

//NewZapLogger adapt a zap sugared logger to the Logger interface
func NewZapLogger(log *zap.SugaredLogger) Logger {
	return &zapLogger{log: log}
}

func (l *zapLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.log.Debugf(msg, args...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.log.Infof(msg, args...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.log.Warnf(msg, args...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.log.Errorf(msg, args...)
}
