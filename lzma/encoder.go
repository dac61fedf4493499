// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package lzma

import (
	"encoding/binary"
	"io"
	"math/bits"
)

// EncoderOptions configures the minimal literal-only encoder. There is no
// match-finding: every input byte is emitted as a literal, and the stream
// is always closed with the end-of-stream marker so it can be decoded
// without knowing its length in advance.
type EncoderOptions struct {
	DictSize uint32
	LC, LP, PB int
	// UnpackedSize, if non-nil, is written into the header verbatim.
	// When nil, the header carries the "unknown size" sentinel and a
	// decoder must rely on the end-of-stream marker.
	UnpackedSize *uint64
}

// DefaultEncoderOptions returns the parameter set used by reference LZMA
// encoders when nothing more specific is requested: 3 literal-context
// bits, 0 literal-position bits, 2 position bits, 8 MiB dictionary.
func DefaultEncoderOptions() EncoderOptions {
	return EncoderOptions{DictSize: 1 << 23, LC: 3, LP: 0, PB: 2}
}

func (o EncoderOptions) propsByte() byte {
	return byte((o.PB*5+o.LP)*9 + o.LC)
}

// writeHeader emits the classic 13-byte .lzma header.
func writeHeader(w io.Writer, o EncoderOptions) error {
	var hdr [headerLen]byte
	hdr[0] = o.propsByte()
	binary.LittleEndian.PutUint32(hdr[1:5], o.DictSize)
	if o.UnpackedSize != nil {
		binary.LittleEndian.PutUint64(hdr[5:13], *o.UnpackedSize)
	} else {
		binary.LittleEndian.PutUint64(hdr[5:13], unpackedSizeUnknown)
	}
	_, err := w.Write(hdr[:])
	return err
}

// encoderState mirrors DecoderState's probability shapes for the literal
// and end-of-stream-marker paths; it never touches the rep/match
// probabilities beyond what's needed to emit that one marker.
type encoderState struct {
	lc, lp, pb int

	literalProbs []uint16
	isMatch      [numStates * numPosStates]uint16
	isRep        [numStates]uint16

	posSlotEnc [numLenToPosStates][]uint16
	posEnc     [115]uint16
	alignEnc   []uint16
	lenEnc     *lenEncoderState

	pos      uint64
	prevByte byte
}

// lenEncoderState is the encode-side twin of lenDecoder.
type lenEncoderState struct {
	choice, choice2 uint16
	low, mid        [numPosStates][]uint16
	high            []uint16
}

func newLenEncoderState() *lenEncoderState {
	e := &lenEncoderState{choice: probInit, choice2: probInit, high: newProbSlice(1 << 8)}
	for i := 0; i < numPosStates; i++ {
		e.low[i] = newProbSlice(1 << 3)
		e.mid[i] = newProbSlice(1 << 3)
	}
	return e
}

func (e *lenEncoderState) encode(rc *rangeEncoder, length0 uint32, posState int) error {
	if length0 < 8 {
		if err := rc.encodeBit(&e.choice, 0); err != nil {
			return err
		}
		return encodeBitTree(rc, 3, e.low[posState], length0)
	}
	if err := rc.encodeBit(&e.choice, 1); err != nil {
		return err
	}
	if length0 < 16 {
		if err := rc.encodeBit(&e.choice2, 0); err != nil {
			return err
		}
		return encodeBitTree(rc, 3, e.mid[posState], length0-8)
	}
	if err := rc.encodeBit(&e.choice2, 1); err != nil {
		return err
	}
	return encodeBitTree(rc, 8, e.high, length0-16)
}

func newEncoderState(o EncoderOptions) *encoderState {
	s := &encoderState{lc: o.LC, lp: o.LP, pb: o.PB}
	s.literalProbs = newProbSlice((1 << uint(o.LC+o.LP)) * 0x300)
	for i := range s.isMatch {
		s.isMatch[i] = probInit
	}
	for i := range s.isRep {
		s.isRep[i] = probInit
	}
	for i := range s.posSlotEnc {
		s.posSlotEnc[i] = newProbSlice(1 << numPosSlotBits)
	}
	for i := range s.posEnc {
		s.posEnc[i] = probInit
	}
	s.alignEnc = newProbSlice(1 << alignBits)
	s.lenEnc = newLenEncoderState()
	return s
}

func (s *encoderState) posMask() uint32    { return (1 << uint(s.pb)) - 1 }
func (s *encoderState) litPosMask() uint32 { return (1 << uint(s.lp)) - 1 }

// encodeLiteral emits one literal byte. Because this encoder never emits
// a real match, state is always 0 and the match-byte-constrained branch
// of literal coding never triggers, exactly like the decoder side.
func (s *encoderState) encodeLiteral(rc *rangeEncoder, b byte) error {
	litState := ((uint32(s.pos) & s.litPosMask()) << uint(s.lc)) | (uint32(s.prevByte) >> uint(8-s.lc))
	probs := s.literalProbs[litState*0x300 : litState*0x300+0x300]

	result := uint32(1)
	for i := 7; i >= 0; i-- {
		bit := (uint32(b) >> uint(i)) & 1
		if err := rc.encodeBit(&probs[result], int(bit)); err != nil {
			return err
		}
		result = (result << 1) | bit
	}

	s.prevByte = b
	s.pos++
	return nil
}

// getPosSlot returns the 6-bit position-slot value that decodeDistance
// would need to reconstruct dist, the encode-side inverse of that
// function's arithmetic.
func getPosSlot(dist uint32) uint32 {
	if dist < 4 {
		return dist
	}
	nbits := uint(bits.Len32(dist)) - 1
	return uint32(2*nbits) + ((dist >> (nbits - 1)) & 1)
}

// encodeDistance emits dist using the same pos-slot/direct-bits/align
// scheme decodeDistance consumes, including its OR-form combination of
// the slot's high bits: `(2 | (pos_slot & 1)) << num_direct_bits`.
func (s *encoderState) encodeDistance(rc *rangeEncoder, length int, dist uint32) error {
	lenState := length - matchMinLen
	if lenState > numLenToPosStates-1 {
		lenState = numLenToPosStates - 1
	}

	posSlot := getPosSlot(dist)
	if err := encodeBitTree(rc, numPosSlotBits, s.posSlotEnc[lenState], posSlot); err != nil {
		return err
	}
	if posSlot < 4 {
		return nil
	}

	numDirectBits := int(posSlot>>1) - 1
	base := (2 | (posSlot & 1)) << uint(numDirectBits)
	rem := dist - base

	const endPosModelIndex = 14
	if posSlot < endPosModelIndex {
		offset := int(base - posSlot)
		return encodeReverseBitTree(rc, numDirectBits, s.posEnc[:], offset, rem)
	}

	if err := rc.encodeDirect(rem>>uint(alignBits), numDirectBits-alignBits); err != nil {
		return err
	}
	return encodeReverseBitTree(rc, alignBits, s.alignEnc, 0, rem&((1<<alignBits)-1))
}

// encodeEndMarker emits the reserved new-distance match of length
// matchMinLen and distance 0xFFFFFFFF that signals end-of-stream.
func (s *encoderState) encodeEndMarker(rc *rangeEncoder) error {
	posState := uint32(s.pos) & s.posMask()

	if err := rc.encodeBit(&s.isMatch[0*numPosStates+int(posState)], 1); err != nil {
		return err
	}
	if err := rc.encodeBit(&s.isRep[0], 0); err != nil {
		return err
	}
	if err := s.lenEnc.encode(rc, 0, int(posState)); err != nil {
		return err
	}
	return s.encodeDistance(rc, matchMinLen, 0xFFFFFFFF)
}

// Compress writes a complete classic .lzma stream, reading r with the
// default encoder options, to w.
func Compress(r io.Reader, w io.Writer) error {
	return CompressWithOptions(r, w, DefaultEncoderOptions())
}

// CompressWithOptions writes a complete classic .lzma stream: header,
// literal-coded body, end-of-stream marker.
func CompressWithOptions(r io.Reader, w io.Writer, opts EncoderOptions) error {
	if err := writeHeader(w, opts); err != nil {
		return err
	}

	rc := newRangeEncoder(w)
	s := newEncoderState(opts)

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			posState := uint32(s.pos) & s.posMask()
			if bitErr := rc.encodeBit(&s.isMatch[0*numPosStates+int(posState)], 0); bitErr != nil {
				return bitErr
			}
			if litErr := s.encodeLiteral(rc, buf[i]); litErr != nil {
				return litErr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	if err := s.encodeEndMarker(rc); err != nil {
		return err
	}
	return rc.flush()
}
