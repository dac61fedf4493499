// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

// Package xzio holds the small byte-stream helpers shared by the lzma,
// lzma2 and xz packages: tag matching, zero-padding verification, EOF
// probing, and reader/writer wrappers that count bytes or feed a running
// checksum. None of it is specific to any one framing layer.
package xzio

import (
	"bufio"
	"bytes"
	"errors"
	"hash"
	"io"
)

// ErrNonZeroPadding is returned by ReadZeroPadding when a padding byte is
// not zero.
var ErrNonZeroPadding = errors.New("xzio: non-zero padding byte")

// ReadTag reads len(tag) bytes from r and reports whether they match tag
// exactly. A short read is surfaced as an error (typically io.ErrUnexpectedEOF).
func ReadTag(r io.Reader, tag []byte) (bool, error) {
	buf := make([]byte, len(tag))
	if _, err := io.ReadFull(r, buf); err != nil {
		return false, err
	}
	return bytes.Equal(buf, tag), nil
}

// ReadZeroPadding reads n bytes from r and fails with ErrNonZeroPadding if
// any of them is non-zero.
func ReadZeroPadding(r io.Reader, n int) error {
	if n == 0 {
		return nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}

	for _, b := range buf {
		if b != 0 {
			return ErrNonZeroPadding
		}
	}

	return nil
}

// WriteZeroPadding writes n zero bytes to w.
func WriteZeroPadding(w io.Writer, n int) error {
	if n == 0 {
		return nil
	}
	_, err := w.Write(make([]byte, n))
	return err
}

// PaddingLen returns the number of zero bytes needed to round n up to the
// next multiple of align (align must be a power of two).
func PaddingLen(n int64, align int64) int64 {
	rem := n % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

// IsEOF reports whether r is positioned at end-of-stream, by attempting to
// peek one byte. It never consumes input.
func IsEOF(r *bufio.Reader) (bool, error) {
	_, err := r.Peek(1)
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// HashReader wraps an io.Reader, feeding every byte actually read into a
// running hash.Hash. Used to digest header bytes while they are parsed,
// instead of buffering them separately.
type HashReader struct {
	R    io.Reader
	Hash hash.Hash
}

// NewHashReader returns a HashReader that digests bytes read through it.
func NewHashReader(r io.Reader, h hash.Hash) *HashReader {
	return &HashReader{R: r, Hash: h}
}

func (h *HashReader) Read(p []byte) (int, error) {
	n, err := h.R.Read(p)
	if n > 0 {
		h.Hash.Write(p[:n])
	}
	return n, err
}

// CountReader wraps an io.Reader, counting the bytes successfully read.
type CountReader struct {
	R io.Reader
	n int64
}

// NewCountReader returns a CountReader around r.
func NewCountReader(r io.Reader) *CountReader {
	return &CountReader{R: r}
}

func (c *CountReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.n += int64(n)
	return n, err
}

// ReadByte implements io.ByteReader when the wrapped reader supports it,
// so CountReader can sit beneath a range decoder without losing the fast
// single-byte path.
func (c *CountReader) ReadByte() (byte, error) {
	br, ok := c.R.(io.ByteReader)
	if !ok {
		var buf [1]byte
		_, err := io.ReadFull(c, buf[:])
		return buf[0], err
	}

	b, err := br.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// Count returns the number of bytes read so far.
func (c *CountReader) Count() int64 {
	return c.n
}
