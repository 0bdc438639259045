package runnable

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/slok/runnables/internal/log"
)

// Lines is the receiving end of the output lines of a process. Each line keeps its
// trailing newline, except for a final segment that ended without one.
//
// All the subscribers of a PendingOutput share the same Lines, so concurrent readers
// split the stream between them instead of receiving a copy each.
type Lines struct {
	mu       sync.Mutex
	items    []string
	closed   bool
	released bool
	notify   chan struct{}
}

func newLines() *Lines {
	return &Lines{notify: make(chan struct{}, 1)}
}

// Next blocks until a line is available and returns it. ok is false once both output
// streams ended (or the receiver was released) and every line has been consumed.
func (l *Lines) Next(ctx context.Context) (line string, ok bool, err error) {
	for {
		l.mu.Lock()
		if len(l.items) > 0 {
			line := l.items[0]
			l.items[0] = ""
			l.items = l.items[1:]
			pending := len(l.items) > 0
			l.mu.Unlock()

			// Wake up other readers if there is still work for them.
			if pending {
				l.signal()
			}
			return line, true, nil
		}
		finished := l.closed || l.released
		l.mu.Unlock()

		if finished {
			l.signal()
			return "", false, nil
		}

		select {
		case <-l.notify:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
}

// TryNext returns the next line without blocking.
func (l *Lines) TryNext() (line string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		return "", false
	}
	line = l.items[0]
	l.items[0] = ""
	l.items = l.items[1:]
	return line, true
}

// Release tells the producers nobody is listening anymore. Lines produced after this
// are dropped from the live stream, the full output capture is not affected.
func (l *Lines) Release() {
	l.mu.Lock()
	l.released = true
	l.items = nil
	l.mu.Unlock()
	l.signal()
}

// push is best effort, it returns false when the line was dropped.
func (l *Lines) push(line string) bool {
	l.mu.Lock()
	if l.released || l.closed {
		l.mu.Unlock()
		return false
	}
	l.items = append(l.items, line)
	l.mu.Unlock()

	l.signal()
	return true
}

func (l *Lines) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

func (l *Lines) signal() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

type capture struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *capture) append(s string) {
	c.mu.Lock()
	c.buf.WriteString(s)
	c.mu.Unlock()
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// PendingOutput captures the stdout and stderr of a process. Both streams are drained
// concurrently into a single live line stream and a single accumulated text.
//
// Line order is kept within each stream, the interleaving between stdout and stderr is
// whatever order the lines were read in.
type PendingOutput struct {
	lines   *Lines
	capture *capture
	done    chan struct{}
}

// NewPendingOutput starts draining the stdout and stderr streams of a process. A nil
// stream is ignored. Streams implementing io.Closer are closed once drained.
func NewPendingOutput(stdout, stderr io.Reader, logger log.Logger) *PendingOutput {
	if logger == nil {
		logger = log.Noop
	}

	o := &PendingOutput{
		lines:   newLines(),
		capture: &capture{},
		done:    make(chan struct{}),
	}

	var wg sync.WaitGroup
	streams := []struct {
		name string
		r    io.Reader
	}{
		{name: "stdout", r: stdout},
		{name: "stderr", r: stderr},
	}
	for _, s := range streams {
		if s.r == nil {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			// A broken stream only affects its own capture.
			if err := drain(s.r, o.lines, o.capture); err != nil {
				logger.Errorf("%s capture: %s", s.name, err)
			}
			if c, ok := s.r.(io.Closer); ok {
				_ = c.Close()
			}
		}()
	}

	go func() {
		wg.Wait()
		o.lines.close()
		close(o.done)
	}()

	return o
}

// Subscribe returns the live line stream of the process.
func (o *PendingOutput) Subscribe() *Lines { return o.lines }

// Done is closed when both output streams have been drained.
func (o *PendingOutput) Done() <-chan struct{} { return o.done }

// Snapshot returns the output captured so far.
func (o *PendingOutput) Snapshot() string { return o.capture.String() }

// FullOutput waits until both output streams have been drained and returns the full
// captured output. It can be called any number of times.
func (o *PendingOutput) FullOutput(ctx context.Context) (string, error) {
	select {
	case <-o.done:
		return o.capture.String(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// drain reads r line by line until the end of the stream. A trailing segment without
// newline is flushed as a last line.
func drain(r io.Reader, lines *Lines, c *capture) error {
	br := bufio.NewReader(r)
	for {
		data, err := br.ReadBytes('\n')
		if len(data) > 0 {
			line := decodeLossy(data)
			c.append(line)
			lines.push(line)

			// Bursts of output shouldn't starve the rest of goroutines.
			runtime.Gosched()
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not read output: %w", err)
		}
	}
}

func decodeLossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	// Each maximal ill-formed subpart becomes one U+FFFD, the decoder never fails at EOF.
	decoded, _ := xunicode.UTF8.NewDecoder().Bytes(data)
	return string(decoded)
}
