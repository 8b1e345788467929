// Package frame implements the result channel framing: a response is any
// text followed by the literal Sentinel on its own line. There is no
// escaping, a payload containing the sentinel text ends its frame early.
package frame

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sys/unix"
)

const Sentinel = "---END_OF_MONITOR_OUTPUT---"

// ErrUnterminated means the stream ended before the sentinel was seen. The
// writer side is gone.
var ErrUnterminated = errors.New("result channel closed before end of output")

// Writer accumulates the first write error, so a handler can stream a
// whole response and check once at End.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}

func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func (w *Writer) Println(args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// End terminates the current frame and reports any error seen since the
// previous End.
func (w *Writer) End() error {
	_, _ = io.WriteString(w, Sentinel+"\n")
	if s, ok := w.w.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	err := w.err
	w.err = nil
	return err
}

// Reader splits a result channel into frames.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next blocks until a whole frame is read and returns its payload without
// the sentinel. When the stream ends first it returns the partial payload
// and ErrUnterminated. Interrupted reads are retried.
func (r *Reader) Next() (string, error) {
	var sb strings.Builder
	for {
		line, err := r.r.ReadString('\n')
		if idx := strings.Index(line, Sentinel); idx >= 0 {
			sb.WriteString(line[:idx])
			return sb.String(), nil
		}
		sb.WriteString(line)
		switch {
		case err == nil:
			continue
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
			return sb.String(), ErrUnterminated
		default:
			return sb.String(), fmt.Errorf("reading result channel: %w", err)
		}
	}
}

// Drain returns the payloads of all frames left in the stream until EOF.
// A trailing unterminated payload is included when non-empty.
func (r *Reader) Drain() []string {
	var out []string
	for {
		payload, err := r.Next()
		if err != nil {
			if payload != "" {
				out = append(out, payload)
			}
			return out
		}
		out = append(out, payload)
	}
}
