package core

// streaming.go provides the io.Reader chain every source file passes through
// before delimiter detection:
//
//   - DecodeReader: converts latin1 / windows-1252 exports to UTF-8
//   - BOMSkippingReader: drops a UTF-8 BOM so the first header is clean
//   - UTF8Sanitizer: optionally replaces invalid UTF-8 bytes with '?'
//   - CountingReader: tracks bytes read for logging and progress
//
// Use WrapInput to apply them in the correct order.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// InputOptions selects the transforms WrapInput applies.
type InputOptions struct {
	Encoding     string // "", "utf-8", "latin1", "windows-1252"
	SanitizeUTF8 bool
}

// WrapInput decodes, strips the BOM, optionally sanitizes, and counts.
//
// The order matters:
//  1. Decoding to UTF-8 comes first so later stages only see UTF-8
//  2. The BOM is stripped before any content is inspected
//  3. Sanitization runs on the BOM-free stream
//  4. Counting wraps everything
func WrapInput(r io.Reader, opts InputOptions) (*CountingReader, error) {
	decoded, err := DecodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	var out io.Reader = NewBOMSkippingReader(decoded)
	if opts.SanitizeUTF8 {
		out = NewUTF8Sanitizer(out)
	}
	return NewCountingReader(out), nil
}

// DecodeReader wraps r with a decoder for the named encoding.
// UTF-8 (or an empty name) returns r unchanged.
func DecodeReader(r io.Reader, enc string) (io.Reader, error) {
	switch strings.ToLower(enc) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, enc)
	}
}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	pending []byte // bytes read during the BOM check that belong to the content
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. The first call checks for and drops the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		head := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(r.reader, head)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if n == len(utf8BOM) && bytes.Equal(head, utf8BOM) {
			n = 0
		}
		r.pending = head[:n]
		if err != nil && len(r.pending) == 0 {
			return 0, io.EOF
		}
	}

	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	return r.reader.Read(p)
}

// UTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes with '?'.
// Multi-byte sequences split across reads are held back until complete.
type UTF8Sanitizer struct {
	reader io.Reader
	chunk  []byte
	raw    []byte // undecoded tail of the previous chunk
	out    []byte // sanitized bytes not yet returned
	err    error
}

// NewUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader: r,
		chunk:  make([]byte, 32*1024),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *UTF8Sanitizer) fill() {
	n, err := s.reader.Read(s.chunk)
	s.raw = append(s.raw, s.chunk[:n]...)
	s.err = err
	atEOF := err != nil

	i := 0
	for i < len(s.raw) {
		if s.raw[i] < utf8.RuneSelf {
			s.out = append(s.out, s.raw[i])
			i++
			continue
		}

		rest := s.raw[i:]
		if !atEOF && !utf8.FullRune(rest) {
			break
		}

		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size == 1 {
			s.out = append(s.out, '?')
			i++
			continue
		}
		s.out = append(s.out, rest[:size]...)
		i += size
	}
	s.raw = append(s.raw[:0], s.raw[i:]...)
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
