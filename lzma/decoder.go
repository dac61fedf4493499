// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package lzma

import (
	"bufio"
	"errors"
	"io"
)

// LZMA state-machine transitions, straight out of the reference decoder:
// the 12 states track "what just happened" (literal vs match vs rep vs
// short-rep, and whether the byte before that was itself a match) so the
// probability model can condition on recent history.
func litNextState(s int) int {
	switch {
	case s < 4:
		return 0
	case s < 10:
		return s - 3
	default:
		return s - 6
	}
}

func matchNextState(s int) int {
	if s < 7 {
		return 7
	}
	return 10
}

func repNextState(s int) int {
	if s < 7 {
		return 8
	}
	return 11
}

func shortRepNextState(s int) int {
	if s < 7 {
		return 9
	}
	return 11
}

// DecoderState holds the full adaptive probability model plus the small
// amount of history (current state, rep-distance cache) that the LZMA
// symbol loop needs between iterations. It owns no I/O of its own: callers
// drive it with a rangeDecoder and an LZBuffer.
type DecoderState struct {
	lc, lp, pb int

	unpackedSize        *uint64
	producedAtLastReset uint64 // Len() of the buffer when unpackedSize was (re)armed

	state int
	rep   [4]uint32

	literalProbs []uint16 // [1<<(lc+lp)][0x300], flattened
	isMatch      [numStates * numPosStates]uint16
	isRep        [numStates]uint16
	isRepG0      [numStates]uint16
	isRepG1      [numStates]uint16
	isRepG2      [numStates]uint16
	isRep0Long   [numStates * numPosStates]uint16

	posSlotDecoders [numLenToPosStates][]uint16 // 4 trees, 6 bits each
	posDecoders     [115]uint16
	alignDecoder    []uint16 // 4-bit tree

	lenDecoder    *lenDecoder
	repLenDecoder *lenDecoder

	buf LZBuffer
}

// NewDecoderState builds a fresh probability model for the given literal
// context/position parameters, writing output through buf.
func NewDecoderState(lc, lp, pb int, buf LZBuffer) *DecoderState {
	d := &DecoderState{lc: lc, lp: lp, pb: pb, buf: buf}
	d.allocProbs()
	d.ResetState()
	return d
}

func (d *DecoderState) allocProbs() {
	d.literalProbs = make([]uint16, (1<<uint(d.lc+d.lp))*0x300)
	for i := range d.posSlotDecoders {
		d.posSlotDecoders[i] = newProbSlice(1 << numPosSlotBits)
	}
	d.alignDecoder = newProbSlice(1 << alignBits)
	d.lenDecoder = newLenDecoder()
	d.repLenDecoder = newLenDecoder()
}

// ResetState reinitializes every probability cell and the state/rep
// history, as LZMA2 does at the start of an LZMA chunk whose reset flag
// asks for it. Dictionary contents (the LZBuffer) are untouched; a
// separate dictionary reset is the caller's responsibility.
func (d *DecoderState) ResetState() {
	d.state = 0
	d.rep = [4]uint32{0, 0, 0, 0}

	for i := range d.literalProbs {
		d.literalProbs[i] = probInit
	}
	for i := range d.isMatch {
		d.isMatch[i] = probInit
	}
	for i := range d.isRep {
		d.isRep[i] = probInit
	}
	for i := range d.isRepG0 {
		d.isRepG0[i] = probInit
	}
	for i := range d.isRepG1 {
		d.isRepG1[i] = probInit
	}
	for i := range d.isRepG2 {
		d.isRepG2[i] = probInit
	}
	for i := range d.isRep0Long {
		d.isRep0Long[i] = probInit
	}
	for i := range d.posSlotDecoders {
		for j := range d.posSlotDecoders[i] {
			d.posSlotDecoders[i][j] = probInit
		}
	}
	for i := range d.posDecoders {
		d.posDecoders[i] = probInit
	}
	for i := range d.alignDecoder {
		d.alignDecoder[i] = probInit
	}
	d.lenDecoder.reset()
	d.repLenDecoder.reset()
}

// SetUnpackedSize arms (or disarms, if size is nil) the target output
// length. size is relative to the buffer's current Len(), matching LZMA2's
// per-chunk accounting where each chunk's declared size is added on top of
// whatever has already been produced.
func (d *DecoderState) SetUnpackedSize(size *uint64) {
	d.producedAtLastReset = d.buf.Len()
	if size == nil {
		d.unpackedSize = nil
		return
	}
	total := d.producedAtLastReset + *size
	d.unpackedSize = &total
}

func (d *DecoderState) posMask() uint32    { return (1 << uint(d.pb)) - 1 }
func (d *DecoderState) litPosMask() uint32 { return (1 << uint(d.lp)) - 1 }

// Reconfigure changes the literal-context/literal-position/position-bits
// parameters, as an LZMA2 chunk with fresh properties does, reallocating
// the literal probability table only if lc+lp actually changed, and
// resets all probabilities and state/rep history.
func (d *DecoderState) Reconfigure(lc, lp, pb int) {
	if lc != d.lc || lp != d.lp {
		d.lc, d.lp = lc, lp
		d.literalProbs = make([]uint16, (1<<uint(lc+lp))*0x300)
	}
	d.pb = pb
	d.ResetState()
}

// ResetDict discards back-reference history in the underlying output
// buffer (an LZMA2 dictionary-reset chunk), flushing whatever has
// accumulated so far so no output is lost.
func (d *DecoderState) ResetDict() error {
	return d.buf.Reset()
}

func (d *DecoderState) reachedTarget() bool {
	return d.unpackedSize != nil && d.buf.Len() >= *d.unpackedSize
}

// decodeLiteral decodes one literal byte, consulting the preceding output
// byte and (once state >= 7, i.e. immediately after a match/rep) the
// matched byte at rep[0]+1 to shape the probability context.
func (d *DecoderState) decodeLiteral(rc *rangeDecoder, update bool) (byte, error) {
	prevByte := uint32(d.buf.LastOr(0))

	litState := ((uint32(d.buf.Len()) & d.litPosMask()) << uint(d.lc)) | (prevByte >> uint(8-d.lc))
	probs := d.literalProbs[litState*0x300 : litState*0x300+0x300]

	result := uint32(1)
	if d.state >= 7 {
		matchByte, err := d.buf.LastN(uint64(d.rep[0]) + 1)
		if err != nil {
			return 0, err
		}
		mb := uint32(matchByte)
		for result < 0x100 {
			matchBit := (mb >> 7) & 1
			mb <<= 1
			bit, err := rc.decodeBit(&probs[((1+matchBit)<<8)+result], update)
			if err != nil {
				return 0, err
			}
			result = (result << 1) | uint32(bit)
			if matchBit != uint32(bit) {
				break
			}
		}
	}
	for result < 0x100 {
		bit, err := rc.decodeBit(&probs[result], update)
		if err != nil {
			return 0, err
		}
		result = (result << 1) | uint32(bit)
	}

	return byte(result), nil
}

// decodeDistance decodes the back-reference distance for a match of the
// given length (length is the real, already-decoded match length).
//
// The pos_slot >= kStartPosModelIndex branch combines a direct-bits high
// part with a reverse-bit-tree low part per the OR form
// `(2 | (pos_slot & 1)) << num_direct_bits`, not the XOR form that appears
// in some historical implementations.
func (d *DecoderState) decodeDistance(rc *rangeDecoder, length int, update bool) (uint32, error) {
	lenState := length - matchMinLen
	if lenState > numLenToPosStates-1 {
		lenState = numLenToPosStates - 1
	}

	posSlot, err := parseBitTree(rc, numPosSlotBits, d.posSlotDecoders[lenState], update)
	if err != nil {
		return 0, err
	}
	if posSlot < 4 {
		return posSlot, nil
	}

	numDirectBits := int(posSlot>>1) - 1
	result := (2 | (posSlot & 1)) << uint(numDirectBits)

	const endPosModelIndex = 14
	if posSlot < endPosModelIndex {
		offset := result - posSlot
		rev, err := parseReverseBitTree(rc, numDirectBits, d.posDecoders[:], int(offset), update)
		if err != nil {
			return 0, err
		}
		result += rev
		return result, nil
	}

	direct, err := rc.decodeDirect(numDirectBits - alignBits)
	if err != nil {
		return 0, err
	}
	result += direct << uint(alignBits)

	align, err := parseReverseBitTree(rc, alignBits, d.alignDecoder, 0, update)
	if err != nil {
		return 0, err
	}
	result += align

	return result, nil
}

// processNext decodes exactly one symbol (literal, short rep, rep match,
// or new-distance match), mutating state, rep and the output buffer. It
// reports cont=false once the armed unpacked size has been reached or the
// end-of-stream marker (distance 0xFFFFFFFF) is seen.
func (d *DecoderState) processNext(rc *rangeDecoder) (cont bool, err error) {
	posState := uint32(d.buf.Len()) & d.posMask()

	bit, err := rc.decodeBit(&d.isMatch[d.state*numPosStates+int(posState)], true)
	if err != nil {
		return false, err
	}

	if bit == 0 {
		lit, err := d.decodeLiteral(rc, true)
		if err != nil {
			return false, err
		}
		if err := d.buf.AppendLiteral(lit); err != nil {
			return false, err
		}
		d.state = litNextState(d.state)
		return !d.reachedTarget(), nil
	}

	var length int

	repBit, err := rc.decodeBit(&d.isRep[d.state], true)
	if err != nil {
		return false, err
	}
	if repBit == 0 {
		// New-distance match.
		d.rep[3], d.rep[2], d.rep[1] = d.rep[2], d.rep[1], d.rep[0]

		lenVal, err := d.lenDecoder.decode(rc, int(posState), true)
		if err != nil {
			return false, err
		}
		length = int(lenVal) + matchMinLen

		dist, err := d.decodeDistance(rc, length, true)
		if err != nil {
			return false, err
		}
		if dist == 0xFFFFFFFF {
			// End-of-stream marker: a compliant stream has nothing left to
			// decode once it appears. err == errNotPeekable means rc's
			// reader can't confirm either way (the streaming adapter's
			// scratch reader only ever sees a bounded slice), so that case
			// is treated as inconclusive rather than a format violation.
			ok, err := rc.isFinishedOk()
			if err != nil {
				if err != errNotPeekable {
					return false, err
				}
				return false, nil
			}
			if !ok {
				return false, newError("Found end-of-stream marker but more bytes are available")
			}
			return false, nil
		}
		d.rep[0] = dist
		d.state = matchNextState(d.state)
	} else {
		g0Bit, err := rc.decodeBit(&d.isRepG0[d.state], true)
		if err != nil {
			return false, err
		}
		if g0Bit == 0 {
			shortBit, err := rc.decodeBit(&d.isRep0Long[d.state*numPosStates+int(posState)], true)
			if err != nil {
				return false, err
			}
			if shortBit == 0 {
				b, err := d.buf.LastN(uint64(d.rep[0]) + 1)
				if err != nil {
					return false, err
				}
				if err := d.buf.AppendLiteral(b); err != nil {
					return false, err
				}
				d.state = shortRepNextState(d.state)
				return !d.reachedTarget(), nil
			}
		} else {
			var dist uint32
			g1Bit, err := rc.decodeBit(&d.isRepG1[d.state], true)
			if err != nil {
				return false, err
			}
			if g1Bit == 0 {
				dist = d.rep[1]
			} else {
				g2Bit, err := rc.decodeBit(&d.isRepG2[d.state], true)
				if err != nil {
					return false, err
				}
				if g2Bit == 0 {
					dist = d.rep[2]
				} else {
					dist = d.rep[3]
					d.rep[3] = d.rep[2]
				}
				d.rep[2] = d.rep[1]
			}
			d.rep[1] = d.rep[0]
			d.rep[0] = dist
		}

		lenVal, err := d.repLenDecoder.decode(rc, int(posState), true)
		if err != nil {
			return false, err
		}
		length = int(lenVal) + matchMinLen
		d.state = repNextState(d.state)
	}

	if err := d.buf.AppendLZ(length, uint64(d.rep[0])+1); err != nil {
		return false, err
	}
	return !d.reachedTarget(), nil
}

// Decode runs the decoder to completion over r, which must already have
// its range-coder preamble in place (the first decoded byte plus 4-byte
// code word). It stops when the armed unpacked size is reached or, if
// none was armed, when the end-of-stream marker is decoded.
func (d *DecoderState) Decode(r io.Reader) error {
	return d.decodeCore(r, false)
}

// DecodeAllowIncomplete behaves like Decode, but when allowIncomplete is
// set, a stream that runs out of input before reaching its armed unpacked
// size or an end-of-stream marker flushes whatever was decoded instead of
// failing. Used by callers (e.g. the lzma2 chunk decoder) that need to
// thread their own incomplete-input tolerance down to the raw LZMA body.
func (d *DecoderState) DecodeAllowIncomplete(r io.Reader, allowIncomplete bool) error {
	return d.decodeCore(r, allowIncomplete)
}

// decodeCore is Decode's implementation, additionally accepting
// allowIncomplete: when set, a stream that runs out of input before
// reaching its armed unpacked size or an end-of-stream marker flushes
// whatever was decoded instead of failing.
func (d *DecoderState) decodeCore(r io.Reader, allowIncomplete bool) error {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	rc, err := newRangeDecoder(br)
	if err != nil {
		if allowIncomplete && isIncompleteErr(err) {
			return d.buf.Finish()
		}
		return err
	}

	for {
		cont, err := d.processNext(rc)
		if err != nil {
			if allowIncomplete && isIncompleteErr(err) {
				return d.buf.Finish()
			}
			return err
		}
		if !cont {
			break
		}
	}

	if d.unpackedSize != nil {
		if got := d.buf.Len(); got != *d.unpackedSize {
			if allowIncomplete {
				return d.buf.Finish()
			}
			return newError("Expected unpacked size of %d but decompressed to %d", *d.unpackedSize, got)
		}
	}

	return d.buf.Finish()
}

// isIncompleteErr reports whether err represents input simply running out
// (as opposed to a format violation), the class of error AllowIncomplete
// is meant to tolerate.
func isIncompleteErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var hts *HeaderTooShortError
	return errors.As(err, &hts)
}
