// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package lzma

import (
	"bufio"
	"io"
)

// DecompressOptions configures one-shot decoding of a classic .lzma
// stream (header + range-coded body + implicit or explicit end).
type DecompressOptions struct {
	// MemLimit caps the live dictionary size in bytes; 0 means the
	// header's own dict_size field is trusted unbounded.
	MemLimit uint64

	// UnpackedSizeMode selects how the decoder learns its target output
	// length. The default, ReadFromHeader, trusts the header's own
	// 8-byte field. ProvidedUnpackedSize supplies the value used by
	// ReadHeaderButUseProvided and UseProvided.
	UnpackedSizeMode     UnpackedSizeMode
	ProvidedUnpackedSize *uint64

	// AllowIncomplete relaxes the end-of-stream check: a stream that
	// runs out of input before reaching its armed unpacked size or an
	// end-of-stream marker flushes what was decoded instead of failing.
	AllowIncomplete bool
}

// DefaultDecompressOptions returns the zero-value DecompressOptions (no
// memory limit; unpacked size read from the header).
func DefaultDecompressOptions() DecompressOptions {
	return DecompressOptions{}
}

// Decompress reads a complete .lzma stream from r and writes the
// decompressed bytes to w.
func Decompress(r io.Reader, w io.Writer) error {
	return DecompressWithOptions(r, w, DefaultDecompressOptions())
}

// DecompressWithOptions reads a complete .lzma stream from r per opts
// and writes the decompressed bytes to w.
func DecompressWithOptions(r io.Reader, w io.Writer, opts DecompressOptions) error {
	params, err := ReadLZMAParams(r, opts.UnpackedSizeMode, opts.ProvidedUnpackedSize)
	if err != nil {
		return err
	}

	dictSize := params.DictSize
	if opts.MemLimit != 0 && uint64(dictSize) > opts.MemLimit {
		return errMemLimit(opts.MemLimit)
	}

	buf := NewCircularBuffer(w, dictSize)
	d := NewDecoderState(params.LC, params.LP, params.PB, buf)
	d.SetUnpackedSize(params.UnpackedSize)

	return d.decodeCore(r, opts.AllowIncomplete)
}

// DecodeBlock decodes exactly one .lzma stream from r, per opts, writing
// to w, and reports the number of input bytes it consumed — for callers
// that concatenate several independent LZMA streams back to back. It
// builds its own bufio.Reader directly over a byte-counting wrapper so
// the reported count subtracts whatever bufio still holds unread in its
// internal buffer (Decode's read-ahead is otherwise invisible from the
// caller's side of r).
func DecodeBlock(r io.Reader, w io.Writer, opts DecompressOptions) (consumed int64, err error) {
	cr := &countingReader{r: r}
	br := bufio.NewReader(cr)

	defer func() {
		consumed = cr.n - int64(br.Buffered())
	}()

	params, err := ReadLZMAParams(br, opts.UnpackedSizeMode, opts.ProvidedUnpackedSize)
	if err != nil {
		return 0, err
	}

	dictSize := params.DictSize
	if opts.MemLimit != 0 && uint64(dictSize) > opts.MemLimit {
		return 0, errMemLimit(opts.MemLimit)
	}

	buf := NewCircularBuffer(w, dictSize)
	d := NewDecoderState(params.LC, params.LP, params.PB, buf)
	d.SetUnpackedSize(params.UnpackedSize)

	if err := d.decodeCore(br, opts.AllowIncomplete); err != nil {
		return 0, err
	}
	return 0, nil
}

// countingReader counts bytes read through it without buffering.
// DecodeBlock places it beneath the bufio.Reader it hands to decodeCore,
// so the count minus that reader's Buffered() is the exact number of
// bytes consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
