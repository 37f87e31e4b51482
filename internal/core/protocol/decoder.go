package protocol

import (
	"bytes"
	"fmt"
)

// DefaultMaxLineBytes bounds how much of an unterminated line is buffered.
const DefaultMaxLineBytes = 1 << 20

// LineDecoder accumulates process output and splits it into newline
// terminated lines. It is not safe for concurrent use; each plugin handle
// owns exactly one decoder.
type LineDecoder struct {
	buf      []byte
	maxBytes int

	// discarding is set after an overflow; input is dropped up to and
	// including the next newline so the rest of that line is never yielded.
	discarding bool
}

// NewLineDecoder creates a decoder. maxBytes <= 0 disables the length guard.
func NewLineDecoder(maxBytes int) *LineDecoder {
	return &LineDecoder{maxBytes: maxBytes}
}

// Feed appends chunk and returns every line completed by it, in arrival
// order and without the terminating newline. Bytes after the last newline
// stay buffered for the next call.
//
// When the buffered remainder grows past the limit it is discarded, along
// with the rest of that line, and an error wrapping ErrLineTooLong is
// returned together with the lines that were completed before it.
func (d *LineDecoder) Feed(chunk []byte) ([]string, error) {
	if d.discarding {
		idx := bytes.IndexByte(chunk, '\n')
		if idx == -1 {
			return nil, nil
		}
		chunk = chunk[idx+1:]
		d.discarding = false
	}

	d.buf = append(d.buf, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx == -1 {
			break
		}

		line := d.buf[:idx]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
		d.buf = d.buf[idx+1:]
	}

	if d.maxBytes > 0 && len(d.buf) > d.maxBytes {
		dropped := d.Reset()
		d.discarding = true
		return lines, fmt.Errorf("%w: dropped %d buffered bytes", ErrLineTooLong, dropped)
	}

	// Compact so a long-lived decoder does not pin consumed bytes.
	if len(d.buf) == 0 {
		d.buf = nil
	} else if cap(d.buf) > 4096 && len(d.buf) < cap(d.buf)/4 {
		d.buf = append([]byte(nil), d.buf...)
	}

	return lines, nil
}

// Pending returns the number of buffered bytes waiting for a newline.
func (d *LineDecoder) Pending() int {
	return len(d.buf)
}

// Reset discards the partial line and returns how many bytes were dropped.
func (d *LineDecoder) Reset() int {
	n := len(d.buf)
	d.buf = nil
	d.discarding = false
	return n
}
