// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package xz

import (
	"bytes"
	"hash/crc32"
)

// EncoderOptions configures Compress/CompressWithOptions. The encoder
// always produces a single block with one LZMA2 filter (uncompressed
// chunks only) and a CRC32 integrity check.
type EncoderOptions struct {
	DictSize uint32
}

// DefaultEncoderOptions returns the options Compress uses: an 8 MiB
// declared dictionary size (any real `xz` tool can open the result,
// even though the uncompressed-chunks-only encoder never needs a
// dictionary of its own).
func DefaultEncoderOptions() *EncoderOptions {
	return &EncoderOptions{DictSize: 1 << 23}
}

// writeBlockHeader writes a Block Header declaring a single LZMA2 filter
// with the given dictionary size and no declared compressed/uncompressed
// sizes.
func writeBlockHeader(w *bytes.Buffer, dictSize uint32) error {
	var body bytes.Buffer
	body.WriteByte(0x00) // 1 filter, no compressed/uncompressed size fields

	if err := writeMultibyte(&body, filterIDLZMA2); err != nil {
		return err
	}
	if err := writeMultibyte(&body, 1); err != nil {
		return err
	}
	body.WriteByte(encodeLZMA2DictSizeByte(dictSize))

	for body.Len()%4 != 3 {
		body.WriteByte(0)
	}

	sizeByte := byte((1+body.Len()+4)/4 - 1)

	var out bytes.Buffer
	out.WriteByte(sizeByte)
	out.Write(body.Bytes())

	h := crc32.NewIEEE()
	h.Write(out.Bytes())
	var crcBuf [4]byte
	putLeUint32(crcBuf[:], h.Sum32())
	out.Write(crcBuf[:])

	_, err := w.Write(out.Bytes())
	return err
}
