package output

import (
	"bytes"
	"io"
	"sync"
)

// LineWriter groups arbitrary chunks into complete lines before writing them to
// the underlying writer, one Write per line. Close flushes any incomplete line.
//
// Process pipes don't respect line boundaries and a Channel handles every write
// as a line, so this sits between both.
type LineWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
}

// NewLineWriter returns a new LineWriter on top of w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

func (l *LineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			break
		}

		line := l.buf.Next(i + 1)
		if _, err := l.w.Write(line); err != nil {
			return len(p), err
		}
	}

	return len(p), nil
}

// Close flushes the pending incomplete line, it doesn't close the underlying writer.
func (l *LineWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buf.Len() == 0 {
		return nil
	}

	_, err := l.w.Write(l.buf.Bytes())
	l.buf.Reset()
	return err
}
