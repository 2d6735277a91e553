package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// EndOfStreamMarker is the line text transports write after the last line of a
// channel. Readers of a Channel never receive it as a line, they get io.EOF.
const EndOfStreamMarker = "EOF"

var (
	// ErrClosed is returned when writing or closing an already closed channel.
	ErrClosed = errors.New("output channel closed")
	// ErrNoLine is returned by non blocking reads when there is nothing buffered.
	ErrNoLine = errors.New("no line available")
)

// Channel is an unbounded FIFO of text lines between a producer and any number
// of consumers. Lines written before a consumer arrives are retained until read.
//
// The end of the stream is signaled with Close, after the last buffered line has
// been read all reads return io.EOF. The end is not a line of text so a producer
// writing "EOF" can't end the stream by accident.
type Channel struct {
	mu     sync.Mutex
	lines  []string
	closed bool
	// notify is closed and replaced on every state change to wake up waiting readers.
	notify chan struct{}
}

// NewChannel returns a new empty channel.
func NewChannel() *Channel {
	return &Channel{notify: make(chan struct{})}
}

// WriteString appends text as a line. Trailing line breaks are removed and text
// that is empty after that is ignored. It never blocks.
func (c *Channel) WriteString(text string) (int, error) {
	line := strings.TrimRight(text, "\r\n")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}

	if line == "" {
		return len(text), nil
	}

	c.lines = append(c.lines, line)
	c.broadcast()

	return len(text), nil
}

// Write satisfies io.Writer, every call is handled as one WriteString call.
func (c *Channel) Write(p []byte) (int, error) {
	return c.WriteString(string(p))
}

// Close ends the stream. Calling it more than once returns ErrClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.broadcast()

	return nil
}

// ReadNext removes and returns the oldest buffered line.
//
// When block is true it waits until a line is available, the stream ends or the
// context is done. When block is false and nothing is buffered it returns ErrNoLine.
// Once the stream has ended and all lines have been read it returns io.EOF.
func (c *Channel) ReadNext(ctx context.Context, block bool) (string, error) {
	for {
		c.mu.Lock()
		if len(c.lines) > 0 {
			line := c.lines[0]
			c.lines[0] = ""
			c.lines = c.lines[1:]
			c.mu.Unlock()
			return line, nil
		}

		if c.closed {
			c.mu.Unlock()
			return "", io.EOF
		}

		if !block {
			c.mu.Unlock()
			return "", ErrNoLine
		}

		wait := c.notify
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Drain reads lines until the end of the stream calling fn for each one.
func (c *Channel) Drain(ctx context.Context, fn func(line string) error) error {
	for {
		line, err := c.ReadNext(ctx, true)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := fn(line); err != nil {
			return err
		}
	}
}

// Copy writes every line of the channel into w followed by EndOfStreamMarker.
func (c *Channel) Copy(ctx context.Context, w io.Writer) error {
	err := c.Drain(ctx, func(line string) error {
		_, err := fmt.Fprintln(w, line)
		return err
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, EndOfStreamMarker)
	return err
}

// Len returns the number of buffered lines.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Closed returns true when the stream has ended, even if there are lines left to read.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) broadcast() {
	close(c.notify)
	c.notify = make(chan struct{})
}
