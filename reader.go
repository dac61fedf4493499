// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package xz

import (
	"bytes"
	"fmt"
	"io"
)

// Reader is an incremental push-style .xz decoder: callers feed
// compressed bytes to Write in arbitrary chunks and the decompressed
// bytes are written to the wrapped io.Writer once Close sees a complete,
// valid stream. Unlike lzma.StreamDecoder (which decodes symbol-by-symbol
// as bytes arrive), Reader buffers the whole compressed stream and
// decodes it in one pass on Close: container framing (block/index/footer
// consistency) is a stream-wide property, so there is little to gain
// from the finer-grained incrementality the raw LZMA decoder needs to
// keep its dictionary window bounded.
type Reader struct {
	w    io.Writer
	opts *Options
	buf  bytes.Buffer
	err  error
}

// NewReader returns a Reader that decodes the stream written to it and
// writes the result to w.
func NewReader(w io.Writer, opts *Options) (*Reader, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Reader{w: w, opts: opts}, nil
}

// Write buffers compressed bytes. It never fails on its own; errors
// surface from Close once the full stream has been parsed.
func (s *Reader) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, fmt.Errorf("previous write error: %w", s.err)
	}
	return s.buf.Write(p)
}

// Close decodes the buffered stream and writes the result to the
// wrapped writer. It is safe to call exactly once.
func (s *Reader) Close() error {
	if s.err != nil {
		return fmt.Errorf("previous write error: %w", s.err)
	}
	if err := DecompressWithOptions(bytes.NewReader(s.buf.Bytes()), s.w, s.opts); err != nil {
		s.err = err
		return err
	}
	return nil
}
