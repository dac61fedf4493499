// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package xz

import (
	"bytes"
	"errors"
	"hash/crc32"
	"io"

	"github.com/lzmago/xz/lzma2"
	"github.com/lzmago/xz/xzio"
)

var streamMagicHeader = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
var streamMagicFooter = []byte{'Y', 'Z'}

// readStreamHeader reads and validates the 12-byte Stream Header,
// returning the integrity check method it declares.
func readStreamHeader(r io.Reader) (checkType, error) {
	ok, err := xzio.ReadTag(r, streamMagicHeader)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, newError("bad stream magic header")
	}

	var flags [2]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return 0, err
	}
	if flags[0] != 0 {
		return 0, newError("stream flags reserved byte must be zero")
	}
	if flags[1]&0xF0 != 0 {
		return 0, newError("stream flags have reserved bits set")
	}
	check := checkType(flags[1] & 0x0F)
	if check.size() < 0 {
		return 0, newError("unrecognized check type %d", check)
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return 0, err
	}
	if crc32.ChecksumIEEE(flags[:]) != leUint32(crcBuf[:]) {
		return 0, newError("stream header CRC32 mismatch")
	}

	return check, nil
}

// writeStreamHeader writes the 12-byte Stream Header for check.
func writeStreamHeader(w io.Writer, check checkType) error {
	if _, err := w.Write(streamMagicHeader); err != nil {
		return err
	}
	flags := [2]byte{0x00, byte(check)}
	if _, err := w.Write(flags[:]); err != nil {
		return err
	}
	var crcBuf [4]byte
	putLeUint32(crcBuf[:], crc32.ChecksumIEEE(flags[:]))
	_, err := w.Write(crcBuf[:])
	return err
}

// readStreamFooter reads and validates the 12-byte Stream Footer,
// returning the Index size in bytes it encodes (Backward Size) and the
// check type, which must match the one from the Stream Header.
func readStreamFooter(r io.Reader) (indexSize int64, check checkType, err error) {
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return 0, 0, err
	}

	var rest [6]byte
	if _, err := io.ReadFull(r, rest[:]); err != nil {
		return 0, 0, err
	}
	if crc32.ChecksumIEEE(rest[:]) != leUint32(crcBuf[:]) {
		wantCRC := crc32.ChecksumIEEE(rest[:])
		return 0, 0, newError("Invalid footer CRC32: expected 0x%08X but got 0x%08X", wantCRC, leUint32(crcBuf[:]))
	}

	backwardSize := leUint32(rest[:4])
	flags := rest[4:6]
	if flags[0] != 0 {
		return 0, 0, newError("stream flags reserved byte must be zero")
	}
	if flags[1]&0xF0 != 0 {
		return 0, 0, newError("stream flags have reserved bits set")
	}
	check = checkType(flags[1] & 0x0F)

	ok, err := xzio.ReadTag(r, streamMagicFooter)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, newError("bad stream magic footer")
	}

	indexSize = (int64(backwardSize) + 1) * 4
	return indexSize, check, nil
}

// writeStreamFooter writes the 12-byte Stream Footer for an index of
// indexSize bytes and the given check type.
func writeStreamFooter(w io.Writer, indexSize int64, check checkType) error {
	if indexSize%4 != 0 || indexSize <= 0 {
		return newError("index size %d is not a positive multiple of 4", indexSize)
	}
	backwardSize := uint32(indexSize/4 - 1)

	var rest [6]byte
	putLeUint32(rest[:4], backwardSize)
	rest[4] = 0x00
	rest[5] = byte(check)

	var crcBuf [4]byte
	putLeUint32(crcBuf[:], crc32.ChecksumIEEE(rest[:]))

	if _, err := w.Write(crcBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(rest[:]); err != nil {
		return err
	}
	_, err := w.Write(streamMagicFooter)
	return err
}

// Options configures Decompress/DecompressWithOptions and NewReader.
type Options struct {
	// MemLimit bounds the total bytes a single block may accumulate
	// while decoding, and a block whose LZMA2 dictionary size exceeds it
	// is rejected before decoding; zero means unlimited.
	MemLimit uint64

	// AllowIncomplete relaxes truncation handling at block boundaries: if
	// the stream ends while DecompressWithOptions is trying to read the
	// next block's size byte (rather than mid-block or mid-index), it
	// returns successfully with every already-decoded block flushed to
	// w, instead of erroring. A stream truncated in the middle of a
	// block's body is still reported as an error — only the
	// block/index boundary is treated as a tolerable stopping point.
	AllowIncomplete bool
}

// DefaultOptions returns the zero-value Options (no memory limit).
func DefaultOptions() *Options {
	return &Options{}
}

// Decompress decodes a single .xz stream from r, writing the
// decompressed bytes to w.
func Decompress(r io.Reader, w io.Writer) error {
	return DecompressWithOptions(r, w, DefaultOptions())
}

// DecompressWithOptions decodes a single .xz stream from r per opts,
// writing the decompressed bytes to w. It verifies block and index
// checksums, the block-to-index size/count consistency, and the
// footer's Backward Size, and requires r to be at EOF once the stream's
// footer has been read.
func DecompressWithOptions(r io.Reader, w io.Writer, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}

	check, err := readStreamHeader(r)
	if err != nil {
		return err
	}

	var records []indexRecord
	for {
		sizeByte, err := readByte(r)
		if err != nil {
			if opts.AllowIncomplete && len(records) > 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
				return nil
			}
			return err
		}
		if sizeByte == 0x00 {
			idxRecords, idxSize, err := readIndex(r)
			if err != nil {
				return err
			}
			if len(idxRecords) != len(records) {
				return newError("index has %d records but %d blocks were read", len(idxRecords), len(records))
			}
			for i, want := range idxRecords {
				got := records[i]
				if want.unpaddedSize != got.unpaddedSize || want.uncompressedSize != got.uncompressedSize {
					return newError("index record %d does not match decoded block %d", i, i)
				}
			}

			footerIndexSize, footerCheck, err := readStreamFooter(r)
			if err != nil {
				return err
			}
			if footerCheck != check {
				return newError("stream footer check type does not match stream header")
			}
			if footerIndexSize != idxSize {
				return newError("stream footer backward size does not match index size: %d != %d", footerIndexSize, idxSize)
			}

			var probe [1]byte
			if n, _ := r.Read(probe[:]); n > 0 {
				return newError("trailing data after stream footer")
			}
			return nil
		}

		bh, err := readBlockHeader(r, sizeByte)
		if err != nil {
			return err
		}
		data, compressedLen, err := decodeBlockBody(r, bh, check, opts.MemLimit)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}

		unpaddedSize := uint64(bh.headerSize) + uint64(compressedLen) + uint64(check.size())
		records = append(records, indexRecord{unpaddedSize: unpaddedSize, uncompressedSize: uint64(len(data))})
	}
}

// Compress writes data from r as a single-block .xz stream (one LZMA2
// filter, CRC32 integrity check) to w.
func Compress(r io.Reader, w io.Writer) error {
	return CompressWithOptions(r, w, DefaultEncoderOptions())
}

// CompressWithOptions writes data from r as a single-block .xz stream to
// w per opts.
func CompressWithOptions(r io.Reader, w io.Writer, opts *EncoderOptions) error {
	if opts == nil {
		opts = DefaultEncoderOptions()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	check := checkCRC32
	if err := writeStreamHeader(w, check); err != nil {
		return err
	}

	var blockBody bytes.Buffer
	if err := lzma2.EncodeUncompressed(bytes.NewReader(data), &blockBody); err != nil {
		return err
	}
	compressedLen := blockBody.Len()

	var bh bytes.Buffer
	if err := writeBlockHeader(&bh, opts.DictSize); err != nil {
		return err
	}
	headerSize := bh.Len()

	if _, err := w.Write(bh.Bytes()); err != nil {
		return err
	}
	if _, err := w.Write(blockBody.Bytes()); err != nil {
		return err
	}
	if err := xzio.WriteZeroPadding(w, int(xzio.PaddingLen(int64(compressedLen), 4))); err != nil {
		return err
	}

	sum := crc32.ChecksumIEEE(data)
	var crcBuf [4]byte
	putLeUint32(crcBuf[:], sum)
	if _, err := w.Write(crcBuf[:]); err != nil {
		return err
	}

	unpaddedSize := uint64(headerSize) + uint64(compressedLen) + uint64(check.size())
	records := []indexRecord{{unpaddedSize: unpaddedSize, uncompressedSize: uint64(len(data))}}

	indexSize, err := writeIndex(w, records)
	if err != nil {
		return err
	}

	return writeStreamFooter(w, indexSize, check)
}
