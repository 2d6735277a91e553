package log

import "context"

// Multi returns a logger that sends every record to all the received loggers,
// in order. Nil loggers are ignored.
func Multi(loggers ...Logger) Logger {
	ls := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			ls = append(ls, l)
		}
	}

	switch len(ls) {
	case 0:
		return Noop
	case 1:
		return ls[0]
	}

	return multi(ls)
}

type multi []Logger

func (m multi) Infof(format string, args ...any) {
	for _, l := range m {
		l.Infof(format, args...)
	}
}

func (m multi) Warningf(format string, args ...any) {
	for _, l := range m {
		l.Warningf(format, args...)
	}
}

func (m multi) Errorf(format string, args ...any) {
	for _, l := range m {
		l.Errorf(format, args...)
	}
}

func (m multi) Debugf(format string, args ...any) {
	for _, l := range m {
		l.Debugf(format, args...)
	}
}

func (m multi) WithValues(values Kv) Logger {
	ls := make(multi, 0, len(m))
	for _, l := range m {
		ls = append(ls, l.WithValues(values))
	}
	return ls
}

func (m multi) WithCtxValues(ctx context.Context) Logger {
	ls := make(multi, 0, len(m))
	for _, l := range m {
		ls = append(ls, l.WithCtxValues(ctx))
	}
	return ls
}

func (m multi) SetValuesOnCtx(parent context.Context, values Kv) context.Context {
	return CtxWithValues(parent, values)
}
