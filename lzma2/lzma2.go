// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

// Package lzma2 implements the LZMA2 chunk framing used inside .xz blocks:
// a sequence of independently-sized chunks, each either raw/uncompressed
// or LZMA-coded, optionally carrying its own dictionary reset, probability
// reset, and/or property change.
package lzma2

import (
	"errors"
	"fmt"
	"io"

	"github.com/lzmago/xz/lzma"
)

// Control byte layout.
const (
	ctrlEnd              = 0x00
	ctrlUncompressedReset = 0x01
	ctrlUncompressedKeep  = 0x02
	ctrlLZMAMask          = 0x80
)

// resetMode is the 2-bit reset indicator packed into bits 5-6 of an LZMA
// chunk's control byte.
type resetMode int

const (
	resetNone resetMode = iota
	resetState
	resetStateNewProp
	resetStateNewPropDict
)

// ErrTruncated is returned when the input ends before a status byte (or
// the rest of a chunk header) could be read; only a clean 0x00 control
// byte is a valid end of stream.
var ErrTruncated = errors.New("lzma2: truncated chunk header")

// DecodeStream reads a complete LZMA2 stream from r (as embedded in an .xz
// block, i.e. with no outer length prefix of its own) and writes the
// decoded bytes to w. dictSize bounds the sliding window, as declared by
// the enclosing filter chain.
func DecodeStream(r io.Reader, w io.Writer, dictSize uint32) error {
	return decodeStream(r, w, dictSize, 0, false)
}

// DecodeStreamWithMemLimit behaves like DecodeStream but additionally
// rejects streams whose declared dictionary would exceed memlimit bytes;
// a memlimit of 0 means unbounded.
func DecodeStreamWithMemLimit(r io.Reader, w io.Writer, dictSize uint32, memlimit uint64) error {
	if memlimit != 0 && uint64(dictSize) > memlimit {
		return fmt.Errorf("lzma2: dictionary size %d exceeds memory limit of %d", dictSize, memlimit)
	}
	return decodeStream(r, w, dictSize, memlimit, false)
}

// isIncompleteErr reports whether err represents input simply running out
// (as opposed to a format violation) — the class of error allowIncomplete
// is meant to tolerate.
func isIncompleteErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrTruncated)
}

func decodeStream(r io.Reader, w io.Writer, dictSize uint32, memlimit uint64, allowIncomplete bool) error {
	buf := lzma.NewAccumBufferWithDictSize(w, memlimit, dictSize)

	var d *lzma.DecoderState
	haveProps := false

	flushIncomplete := func(err error) error {
		if allowIncomplete && isIncompleteErr(err) {
			return buf.Finish()
		}
		return err
	}

	for {
		ctrl, err := readByte(r)
		if err != nil {
			if err == io.EOF {
				return flushIncomplete(ErrTruncated)
			}
			return flushIncomplete(err)
		}

		if ctrl == ctrlEnd {
			return buf.Finish()
		}

		if ctrl == ctrlUncompressedReset || ctrl == ctrlUncompressedKeep {
			if ctrl == ctrlUncompressedReset {
				if err := buf.Reset(); err != nil {
					return err
				}
			}
			if err := copyUncompressedChunk(buf, r); err != nil {
				return flushIncomplete(err)
			}
			continue
		}

		if ctrl&ctrlLZMAMask == 0 {
			return fmt.Errorf("lzma2: invalid control byte 0x%02x", ctrl)
		}

		mode := resetMode((ctrl >> 5) & 0x03)
		sizeHigh := uint32(ctrl & 0x1F)

		rest, err := readN(r, 4)
		if err != nil {
			return flushIncomplete(err)
		}
		unpackedSize := uint64((sizeHigh<<16)|uint32(rest[0])<<8|uint32(rest[1])) + 1
		packedSize := uint64(uint32(rest[2])<<8|uint32(rest[3])) + 1

		var lc, lp, pb int
		if mode == resetStateNewProp || mode == resetStateNewPropDict {
			propsByte, err := readByte(r)
			if err != nil {
				return flushIncomplete(err)
			}
			if propsByte >= 9*5*5 {
				return fmt.Errorf("lzma2: invalid properties byte %d", propsByte)
			}
			pb = int(propsByte) / 45
			lp = (int(propsByte) / 9) % 5
			lc = int(propsByte) % 9
			if lc+lp > 4 {
				return fmt.Errorf("lzma2: lc+lp = %d exceeds the format's maximum of 4", lc+lp)
			}
		}

		if mode == resetStateNewPropDict {
			if err := buf.Reset(); err != nil {
				return err
			}
		}

		switch {
		case d == nil:
			if mode != resetStateNewProp && mode != resetStateNewPropDict {
				return errors.New("lzma2: first chunk must carry properties")
			}
			d = lzma.NewDecoderState(lc, lp, pb, buf)
			haveProps = true
		case mode == resetStateNewProp || mode == resetStateNewPropDict:
			d.Reconfigure(lc, lp, pb)
			haveProps = true
		case mode == resetState:
			d.ResetState()
		}

		if !haveProps {
			return errors.New("lzma2: no properties established for LZMA chunk")
		}

		d.SetUnpackedSize(&unpackedSize)

		chunk := io.LimitReader(r, int64(packedSize))
		if err := d.DecodeAllowIncomplete(chunk, allowIncomplete); err != nil {
			return err
		}
	}
}

// copyUncompressedChunk feeds raw chunk bytes through buf one byte at a
// time (rather than writing them straight to the destination) so they
// remain part of the sliding-window history that later LZMA chunks in the
// same stream may back-reference.
func copyUncompressedChunk(buf lzma.LZBuffer, r io.Reader) error {
	sizeBytes, err := readN(r, 2)
	if err != nil {
		return err
	}
	size := int(uint32(sizeBytes[0])<<8|uint32(sizeBytes[1])) + 1

	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return err
	}
	for _, b := range raw {
		if err := buf.AppendLiteral(b); err != nil {
			return err
		}
	}
	return nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, io.EOF
		}
		return 0, err
	}
	return b[0], nil
}

func readN(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrTruncated
	}
	return buf, nil
}
