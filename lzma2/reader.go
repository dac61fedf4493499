// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package lzma2

import (
	"bytes"
	"io"
)

// Reader is a push-style LZMA2 decoder: callers Write compressed bytes in
// whatever chunking they have on hand and call Finish once the stream is
// complete to flush the decoded output to w. Unlike the lzma package's
// StreamDecoder, it buffers the whole compressed input and defers actual
// decoding to Finish rather than decoding incrementally as bytes arrive,
// since LZMA2's chunk framing (each chunk's own size prefix, resets, and
// possible property changes) gives no single suspension point analogous
// to DecoderState.processNext to resume from mid-chunk.
type Reader struct {
	w        io.Writer
	dictSize uint32
	buf      bytes.Buffer
	done     bool

	// AllowIncomplete relaxes Finish: a stream that runs out of input
	// before its final 0x00 control byte flushes whatever was decoded
	// instead of failing. Set directly after NewReader, before the first
	// Write.
	AllowIncomplete bool
}

// NewReader returns a Reader that will decode to w, using dictSize to
// bound the sliding window as declared by the enclosing filter chain.
func NewReader(w io.Writer, dictSize uint32) *Reader {
	return &Reader{w: w, dictSize: dictSize}
}

// Write appends p to the buffered compressed stream.
func (r *Reader) Write(p []byte) (int, error) {
	return r.buf.Write(p)
}

// Finish decodes everything written so far and flushes it to the wrapped
// writer. It is an error to Write after calling Finish.
func (r *Reader) Finish() error {
	if r.done {
		return nil
	}
	r.done = true
	return decodeStream(&r.buf, r.w, r.dictSize, 0, r.AllowIncomplete)
}
