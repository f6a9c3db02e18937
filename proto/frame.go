package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// ReadChunkSize is how many bytes a FrameReader asks for per read.
	ReadChunkSize = 8192

	// DefaultMaxMessageBytes bounds a single buffered message.
	DefaultMaxMessageBytes = 16 << 20
)

var (
	// ErrIncomplete is returned when the stream ends or fails while a message is
	// only partially buffered.
	ErrIncomplete = errors.New("incomplete JSON message")

	// ErrMessageTooLarge is returned when the buffered bytes exceed the limit
	// without forming a complete message.
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
)

// MalformedError reports bytes that can never become valid JSON. The offending
// bytes up to and including the next newline are discarded, including any
// part of that line still to arrive.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return "malformed message: " + e.Err.Error()
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// FrameReader splits a byte stream into JSON values. A message ends where the
// buffered bytes first form one complete JSON value; anything after it stays
// buffered for the next call, so back-to-back messages sharing a read are
// delivered separately. Writers terminate each message with a newline, which is
// whitespace to the decoder.
//
// Completeness is tracked by a bracket and string scanner that resumes where
// the previous read left off. The decoder only sees a candidate once its
// brackets balance, and at newlines to catch syntax errors in a line that
// never closes.
type FrameReader struct {
	r        io.Reader
	buf      []byte
	chunk    []byte
	maxBytes int

	// Scan state for the value at the front of buf.
	pos      int // next byte to scan, 0 until the value has started
	depth    int
	inString bool
	escaped  bool
	scalar   bool
	checked  int // prefix length last handed to the decoder

	// Set after a malformed value until the rest of its line is dropped.
	discarding bool
}

// NewFrameReader wraps r. maxBytes <= 0 disables the size limit.
func NewFrameReader(r io.Reader, maxBytes int) *FrameReader {
	return &FrameReader{
		r:        r,
		chunk:    make([]byte, ReadChunkSize),
		maxBytes: maxBytes,
	}
}

// Buffered returns the number of bytes read but not yet returned as a message.
func (f *FrameReader) Buffered() int {
	return len(f.buf)
}

// Next blocks until one complete JSON value is available and returns its raw
// bytes.
//
// When the underlying reader fails with nothing buffered, its error is returned
// unchanged (io.EOF for a clean close). When it fails with a partial message
// buffered the error wraps both ErrIncomplete and the read error.
func (f *FrameReader) Next() ([]byte, error) {
	for {
		msg, err := f.extract(false)
		if err != nil || msg != nil {
			return msg, err
		}
		if f.maxBytes > 0 && len(f.buf) > f.maxBytes {
			size := len(f.buf)
			f.drop(size)
			return nil, fmt.Errorf("%w: %d bytes buffered, limit %d", ErrMessageTooLarge, size, f.maxBytes)
		}

		n, rerr := f.r.Read(f.chunk)
		if n > 0 {
			f.buf = append(f.buf, f.chunk[:n]...)
		}
		if rerr == nil {
			continue
		}
		if msg, err := f.extract(true); err != nil || msg != nil {
			return msg, err
		}
		if len(f.buf) == 0 {
			return nil, rerr
		}
		return nil, fmt.Errorf("%w (%d bytes buffered): %w", ErrIncomplete, len(f.buf), rerr)
	}
}

// extract returns the first complete value in the buffer, or nil when more
// bytes are needed. A scalar at the very end of the stream is complete only
// when atEOF is set.
func (f *FrameReader) extract(atEOF bool) ([]byte, error) {
	if f.discarding {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			f.buf = f.buf[:0]
			return nil, nil
		}
		f.drop(i + 1)
		f.discarding = false
	}

	if f.pos == 0 {
		data := bytes.TrimLeft(f.buf, " \t\r\n")
		if len(data) == 0 {
			f.buf = f.buf[:0]
			return nil, nil
		}
		if len(data) < len(f.buf) {
			f.buf = append(f.buf[:0], data...)
		}
		switch f.buf[0] {
		case '{', '[':
			f.depth = 1
		case '"':
			f.inString = true
		case '}', ']', ',', ':':
			return f.complete(1)
		default:
			f.scalar = true
		}
		f.pos = 1
	}

	for ; f.pos < len(f.buf); f.pos++ {
		c := f.buf[f.pos]
		if c == '\n' && !f.scalar && f.pos >= 2*f.checked {
			if err := f.check(f.pos); err != nil {
				return nil, err
			}
		}
		switch {
		case f.inString:
			switch {
			case f.escaped:
				f.escaped = false
			case c == '\\':
				f.escaped = true
			case c == '"':
				f.inString = false
				if f.depth == 0 {
					return f.complete(f.pos + 1)
				}
			}
		case f.scalar:
			if isDelimiter(c) {
				return f.complete(f.pos)
			}
		case c == '"':
			f.inString = true
		case c == '{' || c == '[':
			f.depth++
		case c == '}' || c == ']':
			f.depth--
			if f.depth == 0 {
				return f.complete(f.pos + 1)
			}
		}
	}
	if f.scalar && atEOF {
		return f.complete(len(f.buf))
	}
	return nil, nil
}

// check runs the decoder over the first end bytes of an unfinished value. A
// syntax error drops the value through the newline at end.
func (f *FrameReader) check(end int) error {
	f.checked = end
	var raw json.RawMessage
	err := json.NewDecoder(bytes.NewReader(f.buf[:end])).Decode(&raw)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil
	}
	f.drop(end + 1)
	return &MalformedError{Err: err}
}

// complete takes the candidate value buf[:end]. An invalid candidate is dropped
// together with the rest of its line.
func (f *FrameReader) complete(end int) ([]byte, error) {
	var raw json.RawMessage
	err := json.Unmarshal(f.buf[:end], &raw)
	if err == nil {
		f.drop(end)
		return raw, nil
	}
	if i := bytes.IndexByte(f.buf[end:], '\n'); i >= 0 {
		f.drop(end + i + 1)
	} else {
		f.drop(len(f.buf))
		f.discarding = true
	}
	return nil, &MalformedError{Err: err}
}

// drop removes the first n buffered bytes and resets the scanner.
func (f *FrameReader) drop(n int) {
	f.buf = append(f.buf[:0], f.buf[n:]...)
	f.pos, f.depth, f.checked = 0, 0, 0
	f.inString, f.escaped, f.scalar = false, false, false
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '{', '}', '[', ']', ',', ':', '"':
		return true
	}
	return false
}
