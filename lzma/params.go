// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package lzma

import (
	"encoding/binary"
	"io"
)

// Fixed sizes of the classic .lzma header: one props byte, four
// little-endian dict-size bytes, eight little-endian unpacked-size bytes.
const (
	headerLen  = 1 + 4 + 8
	startBytes = 5 // leading byte + 4-byte code word consumed by the range coder

	// maxRequiredInput is the largest number of input bytes a single
	// symbol decode can ever need to confirm completion; used by the
	// streaming adapter as the threshold for its defensive dry run.
	maxRequiredInput = 20
)

// UnpackedSizeMode selects how a decoder learns the number of bytes it is
// expected to produce.
type UnpackedSizeMode int

const (
	// ReadFromHeader trusts the 8-byte little-endian field in the
	// classic .lzma header, including its "unknown" all-0xFF sentinel.
	ReadFromHeader UnpackedSizeMode = iota
	// ReadHeaderButUseProvided reads and discards the header's own
	// field, using a caller-supplied size instead (LZMA2 chunks encode
	// size separately from any embedded .lzma-style header).
	ReadHeaderButUseProvided
	// UseProvided skips the size field entirely; the caller already
	// knows the size out of band.
	UseProvided
)

// unpackedSizeUnknown is the 8-byte all-ones sentinel meaning "unknown,
// decode until the end-of-stream marker".
const unpackedSizeUnknown = ^uint64(0)

// LZMAParams are the decoded contents of a classic .lzma header: literal
// context/position bits, position bits, dictionary size, and (depending on
// mode) the unpacked size.
type LZMAParams struct {
	LC, LP, PB int
	DictSize   uint32
	// UnpackedSize is nil when the size is unknown (terminated by the
	// end-of-stream marker instead).
	UnpackedSize *uint64
}

// ReadLZMAParams parses a header from r according to mode. provided is
// used verbatim when mode != ReadFromHeader. UseProvided reads only the
// 5-byte props+dict_size prefix, leaving the 8-byte size field (which a
// UseProvided caller has no header for in the first place) unconsumed in
// r; the other two modes always read and advance past the full 13 bytes.
func ReadLZMAParams(r io.Reader, mode UnpackedSizeMode, provided *uint64) (LZMAParams, error) {
	n := headerLen
	if mode == UseProvided {
		n = 1 + 4
	}

	hdr := make([]byte, n)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return LZMAParams{}, &HeaderTooShortError{Err: err}
	}

	props := hdr[0]
	if props >= 9*5*5 {
		return LZMAParams{}, newError("LZMA header invalid properties: %d must be < 225", props)
	}
	pb := int(props) / 45
	lp := (int(props) / 9) % 5
	lc := int(props) % 9

	dictSize := binary.LittleEndian.Uint32(hdr[1:5])
	if dictSize < 4096 {
		dictSize = 4096
	}

	p := LZMAParams{LC: lc, LP: lp, PB: pb, DictSize: dictSize}

	switch mode {
	case ReadFromHeader:
		headerSize := binary.LittleEndian.Uint64(hdr[5:13])
		if headerSize != unpackedSizeUnknown {
			sz := headerSize
			p.UnpackedSize = &sz
		}
	case ReadHeaderButUseProvided:
		_ = binary.LittleEndian.Uint64(hdr[5:13]) // consumed, discarded
		p.UnpackedSize = provided
	case UseProvided:
		p.UnpackedSize = provided
	}

	return p, nil
}
