package logrus

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/slok/runq/internal/log"
)

type logger struct {
	*logrus.Entry
}

// NewLogrus returns a new log.Logger for a logrus implementation.
func NewLogrus(l *logrus.Entry) log.Logger {
	return logger{Entry: l}
}

// NewWriter returns a log.Logger that writes plain text records (no colors) into w.
// Debug records are included when debug is true.
func NewWriter(w io.Writer, debug bool) log.Logger {
	l := logrus.New()
	l.Out = w
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}

	return NewLogrus(logrus.NewEntry(l))
}

func (l logger) WithValues(kv log.Kv) log.Logger {
	newLogger := l.Entry.WithFields(kv)
	return NewLogrus(newLogger)
}

func (l logger) WithCtxValues(ctx context.Context) log.Logger {
	return l.WithValues(log.ValuesFromCtx(ctx))
}

func (l logger) SetValuesOnCtx(parent context.Context, values log.Kv) context.Context {
	return log.CtxWithValues(parent, values)
}
