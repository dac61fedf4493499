// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package xz

import (
	"bytes"
	"hash/crc32"
	"io"

	"github.com/lzmago/xz/xzio"
)

// indexRecord is one entry of the Index: the exact number of bytes the
// corresponding block occupied (header + compressed data + check, not
// counting the block's own padding) and its decompressed size.
type indexRecord struct {
	unpaddedSize     uint64
	uncompressedSize uint64
}

// readIndex parses the Index that follows the last block, given that its
// leading Index Indicator byte (0x00) has already been consumed by the
// caller (which needed to peek it to distinguish an index from another
// block header). It returns the parsed records and the total byte count
// of the index including that indicator byte, for Backward Size
// cross-checking.
func readIndex(r io.Reader) ([]indexRecord, int64, error) {
	h := crc32.NewIEEE()
	h.Write([]byte{0x00})
	hr := xzio.NewHashReader(r, h)
	cr := xzio.NewCountReader(hr)

	numRecords, err := readMultibyte(cr)
	if err != nil {
		return nil, 0, err
	}

	records := make([]indexRecord, 0, numRecords)
	for i := uint64(0); i < numRecords; i++ {
		unpadded, err := readMultibyte(cr)
		if err != nil {
			return nil, 0, err
		}
		uncompressed, err := readMultibyte(cr)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, indexRecord{unpaddedSize: unpadded, uncompressedSize: uncompressed})
	}

	padding := xzio.PaddingLen(cr.Count()+1, 4)
	if err := xzio.ReadZeroPadding(hr, int(padding)); err != nil {
		return nil, 0, err
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, 0, err
	}
	if h.Sum32() != leUint32(crcBuf[:]) {
		return nil, 0, newError("index CRC32 mismatch")
	}

	total := 1 + cr.Count() + padding + 4
	return records, total, nil
}

// writeIndex writes an Index describing records and returns the number
// of bytes written (including the leading indicator byte), for the
// caller to derive the footer's Backward Size.
func writeIndex(w io.Writer, records []indexRecord) (int64, error) {
	var buf bytes.Buffer
	buf.WriteByte(0x00)
	if err := writeMultibyte(&buf, uint64(len(records))); err != nil {
		return 0, err
	}
	for _, rec := range records {
		if err := writeMultibyte(&buf, rec.unpaddedSize); err != nil {
			return 0, err
		}
		if err := writeMultibyte(&buf, rec.uncompressedSize); err != nil {
			return 0, err
		}
	}

	padding := xzio.PaddingLen(int64(buf.Len()), 4)
	for i := int64(0); i < padding; i++ {
		buf.WriteByte(0)
	}

	h := crc32.NewIEEE()
	h.Write(buf.Bytes())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	var crcBuf [4]byte
	putLeUint32(crcBuf[:], h.Sum32())
	if _, err := w.Write(crcBuf[:]); err != nil {
		return 0, err
	}

	return int64(buf.Len()) + 4, nil
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
