// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package xz

import (
	"bytes"
	"hash"
	"hash/crc32"
	"hash/crc64"
	"io"

	"github.com/lzmago/xz/lzma2"
	"github.com/lzmago/xz/xzio"
)

// checkType identifies the integrity check stored after each block's
// compressed data, taken from the low 4 bits of the stream flags.
type checkType byte

const (
	checkNone   checkType = 0x00
	checkCRC32  checkType = 0x01
	checkCRC64  checkType = 0x04
	checkSHA256 checkType = 0x0A
)

func (c checkType) size() int {
	switch c {
	case checkNone:
		return 0
	case checkCRC32:
		return 4
	case checkCRC64:
		return 8
	case checkSHA256:
		return 32
	default:
		return -1
	}
}

// newHash returns the running hash for c, or nil for checkNone and for
// checkSHA256 (recognized but not verified: no SHA-256 implementation is
// wired into this module, matching its pure-LZMA-family dependency
// scope; the check bytes are still read and skipped so block framing
// stays in sync).
func newHash(c checkType) hash.Hash {
	switch c {
	case checkCRC32:
		return crc32.NewIEEE()
	case checkCRC64:
		return crc64.New(crc64.MakeTable(crc64.ECMA))
	default:
		return nil
	}
}

// filterEntry is one parsed link of a block's filter chain.
type filterEntry struct {
	id    uint64
	props []byte
}

// blockHeader is a fully parsed Block Header.
type blockHeader struct {
	headerSize       int // real size in bytes, a multiple of 4
	compressedSize   *uint64
	uncompressedSize *uint64
	filters          []filterEntry
}

// readBlockHeader parses a Block Header given its already-consumed size
// byte (callers must peek this byte themselves first to distinguish a
// block header from the Index Indicator, 0x00).
func readBlockHeader(r io.Reader, sizeByte byte) (*blockHeader, error) {
	h := crc32.NewIEEE()
	h.Write([]byte{sizeByte})
	hr := xzio.NewHashReader(r, h)

	headerSize := (int(sizeByte) + 1) * 4
	if headerSize < 8 {
		return nil, newError("block header size %d is smaller than the minimum of 8", headerSize)
	}

	rest := make([]byte, headerSize-1-4) // minus size byte, minus trailing CRC32
	if _, err := io.ReadFull(hr, rest); err != nil {
		return nil, err
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, err
	}
	wantCRC := leUint32(crcBuf[:])
	if h.Sum32() != wantCRC {
		return nil, newError("block header CRC32 mismatch")
	}

	br := bytes.NewReader(rest)

	flags, err := readByte(br)
	if err != nil {
		return nil, err
	}
	numFilters := int(flags&0x03) + 1
	hasCompressedSize := flags&0x40 != 0
	hasUncompressedSize := flags&0x80 != 0
	if flags&0x3C != 0 {
		return nil, newError("block flags have reserved bits set")
	}

	bh := &blockHeader{headerSize: headerSize}

	if hasCompressedSize {
		v, err := readMultibyte(br)
		if err != nil {
			return nil, err
		}
		bh.compressedSize = &v
	}
	if hasUncompressedSize {
		v, err := readMultibyte(br)
		if err != nil {
			return nil, err
		}
		bh.uncompressedSize = &v
	}

	for i := 0; i < numFilters; i++ {
		id, err := readMultibyte(br)
		if err != nil {
			return nil, err
		}
		propsLen, err := readMultibyte(br)
		if err != nil {
			return nil, err
		}
		props := make([]byte, propsLen)
		if _, err := io.ReadFull(br, props); err != nil {
			return nil, err
		}
		bh.filters = append(bh.filters, filterEntry{id: id, props: props})
	}

	if err := xzio.ReadZeroPadding(br, br.Len()); err != nil {
		return nil, err
	}

	return bh, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// lzma2DictSize decodes an LZMA2 filter's single properties byte into a
// dictionary size, per the format's compact encoding.
func lzma2DictSize(b byte) (uint32, error) {
	if b > 40 {
		return 0, newError("invalid LZMA2 dictionary size byte %d", b)
	}
	if b == 40 {
		return 0xFFFFFFFF, nil
	}
	return (2 | (uint32(b) & 1)) << (uint(b)/2 + 11), nil
}

// encodeLZMA2DictSizeByte returns the smallest properties byte whose
// decoded dictionary size is >= want.
func encodeLZMA2DictSizeByte(want uint32) byte {
	for b := byte(0); b < 40; b++ {
		sz, _ := lzma2DictSize(b)
		if sz >= want {
			return b
		}
	}
	return 40
}

// deltaDistance decodes a Delta filter's single properties byte into a
// byte distance (1-256).
func deltaDistance(b byte) int {
	return int(b) + 1
}

// decodeBlockBody reads one block's compressed data, padding and check
// from r (positioned right after the block header), decodes it through
// the filter chain, and verifies both the declared sizes and the
// integrity check. LZMA2 carries its own end-of-stream control byte, so
// the compressed data needs no outer length prefix to know where it ends;
// bh.compressedSize (if present) is used only to cross-check and to
// locate the padding that follows.
func decodeBlockBody(r io.Reader, bh *blockHeader, check checkType, memlimit uint64) (data []byte, compressedLen int64, err error) {
	if len(bh.filters) == 0 {
		return nil, 0, newError("block has no filters")
	}
	last := bh.filters[len(bh.filters)-1]
	if last.id != filterIDLZMA2 {
		return nil, 0, newError("last filter in chain must be LZMA2 (id 0x21), got 0x%x", last.id)
	}
	if len(last.props) != 1 {
		return nil, 0, newError("LZMA2 filter properties must be exactly 1 byte")
	}
	dictSize, err := lzma2DictSize(last.props[0])
	if err != nil {
		return nil, 0, err
	}

	cr := xzio.NewCountReader(r)
	var out bytes.Buffer
	if err := lzma2.DecodeStreamWithMemLimit(cr, &out, dictSize, memlimit); err != nil {
		return nil, 0, err
	}
	data = out.Bytes()
	compressedLen = cr.Count()

	if bh.compressedSize != nil && uint64(compressedLen) != *bh.compressedSize {
		return nil, 0, newError("block compressed size mismatch: header says %d, got %d", *bh.compressedSize, compressedLen)
	}

	if err := xzio.ReadZeroPadding(r, int(xzio.PaddingLen(compressedLen, 4))); err != nil {
		return nil, 0, err
	}

	for i := len(bh.filters) - 2; i >= 0; i-- {
		f := bh.filters[i]
		switch f.id {
		case filterIDDelta:
			if len(f.props) != 1 {
				return nil, 0, newError("delta filter properties must be exactly 1 byte")
			}
			deltaDecode(data, deltaDistance(f.props[0]))
		default:
			return nil, 0, newError("unsupported filter id 0x%x", f.id)
		}
	}

	if bh.uncompressedSize != nil && uint64(len(data)) != *bh.uncompressedSize {
		return nil, 0, newError("block uncompressed size mismatch: header says %d, got %d", *bh.uncompressedSize, len(data))
	}

	if err := verifyCheck(r, check, data); err != nil {
		return nil, 0, err
	}

	return data, compressedLen, nil
}

// verifyCheck reads the check-size trailer from r and, for the check
// types this module can compute (CRC32, CRC64), verifies it against
// data. checkSHA256 is read and discarded without verification.
func verifyCheck(r io.Reader, check checkType, data []byte) error {
	size := check.size()
	if size < 0 {
		return newError("unknown check type %d", check)
	}
	if size == 0 {
		return nil
	}

	got := make([]byte, size)
	if _, err := io.ReadFull(r, got); err != nil {
		return err
	}

	h := newHash(check)
	if h == nil {
		return nil // recognized but unverified (checkSHA256)
	}
	h.Write(data)
	want := h.Sum(nil)
	// hash.Hash.Sum is big-endian; .xz stores CRC32/CRC64 little-endian.
	for i, j := 0, len(want)-1; i < j; i, j = i+1, j-1 {
		want[i], want[j] = want[j], want[i]
	}

	if !bytes.Equal(got, want) {
		return newError("block check mismatch")
	}
	return nil
}
