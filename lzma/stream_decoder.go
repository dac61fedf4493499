// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package lzma

import (
	"bytes"
	"errors"
	"io"
)

// ErrStreamFinished is returned by Write once the stream has already
// produced its armed unpacked size or seen the end-of-stream marker; any
// further bytes are a caller error.
var ErrStreamFinished = errors.New("lzma: stream already finished")

// StreamDecoder lets callers push compressed bytes in arbitrary chunks and
// pull decoded output as it becomes available, instead of handing the
// whole input as one io.Reader. Internally it buffers whatever tail of the
// current chunk might not yet contain a complete symbol, and only commits
// probability-model state once a dry run confirms the symbol will
// complete with the bytes on hand.
type StreamDecoder struct {
	w    io.Writer
	opts DecompressOptions

	d    *DecoderState
	rng  uint32
	code uint32

	headerDone bool // whether the 13-byte .lzma header has been parsed
	init       bool // whether rng/code have been primed from the preamble

	pending []byte // undigested input: header, preamble, or scratch tail
	done    bool
	err     error // first error seen; subsequent Write/Finish calls replay it
}

// newStreamDecoderFromState wraps an already-configured DecoderState (its
// header already parsed, its output buffer already chosen) for
// incremental, push-style decoding of the body that follows, skipping
// NewStreamDecoder's own header parsing.
func newStreamDecoderFromState(d *DecoderState) *StreamDecoder {
	return &StreamDecoder{d: d, headerDone: true}
}

// NewStreamDecoder returns a StreamDecoder that will write decoded bytes
// to w as they become available. The classic .lzma stream's 13-byte
// header, the range-coder preamble, and the coded body are all supplied
// via Write in whatever chunking the caller has on hand; nothing is read
// synchronously up front.
func NewStreamDecoder(w io.Writer, opts DecompressOptions) (*StreamDecoder, error) {
	return &StreamDecoder{w: w, opts: opts}, nil
}

// parseHeader consumes the leading headerLen bytes of s.pending (already
// confirmed present by the caller) and constructs the DecoderState and
// output buffer the rest of decoding needs.
func (s *StreamDecoder) parseHeader() error {
	n := headerLen
	if s.opts.UnpackedSizeMode == UseProvided {
		n = 1 + 4
	}
	params, err := ReadLZMAParams(bytes.NewReader(s.pending[:n]), s.opts.UnpackedSizeMode, s.opts.ProvidedUnpackedSize)
	if err != nil {
		return err
	}
	s.pending = s.pending[n:]

	dictSize := params.DictSize
	if s.opts.MemLimit != 0 && uint64(dictSize) > s.opts.MemLimit {
		return errMemLimit(s.opts.MemLimit)
	}

	buf := NewCircularBuffer(s.w, dictSize)
	d := NewDecoderState(params.LC, params.LP, params.PB, buf)
	d.SetUnpackedSize(params.UnpackedSize)

	s.d = d
	s.headerDone = true
	return nil
}

// Write feeds more compressed bytes into the decoder, decoding and writing
// out as many complete symbols as the currently buffered input allows.
func (s *StreamDecoder) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.done {
		return 0, ErrStreamFinished
	}

	s.pending = append(s.pending, p...)

	if err := s.drain(); err != nil {
		s.err = err
		return 0, err
	}
	return len(p), nil
}

// drain decodes as many symbols as possible from s.pending, stopping when
// either the stream terminates or a dry run shows the remaining bytes
// can't yet complete another symbol.
func (s *StreamDecoder) drain() error {
	if !s.headerDone {
		n := headerLen
		if s.opts.UnpackedSizeMode == UseProvided {
			n = 1 + 4
		}
		if len(s.pending) < n {
			return nil
		}
		if err := s.parseHeader(); err != nil {
			return err
		}
	}

	if !s.init {
		if len(s.pending) < startBytes {
			return nil
		}
		s.rng = 0xFFFF_FFFF
		s.code = uint32(s.pending[1])<<24 | uint32(s.pending[2])<<16 | uint32(s.pending[3])<<8 | uint32(s.pending[4])
		s.pending = s.pending[startBytes:]
		s.init = true
	}

	for {
		if s.d.reachedTarget() {
			s.done = true
			return nil
		}

		if len(s.pending) < maxRequiredInput {
			ok, err := s.tryProcessNext(s.pending)
			if err != nil {
				return err
			}
			if !ok {
				return nil // wait for more input
			}
		}

		consumed, cont, err := s.commitNext(s.pending)
		if err != nil {
			return err
		}
		s.pending = s.pending[consumed:]
		if !cont {
			s.done = true
			return nil
		}
	}
}

// commitNext runs the real, state-mutating decode step over buf, returning
// how many bytes of buf it consumed.
func (s *StreamDecoder) commitNext(buf []byte) (consumed int, cont bool, err error) {
	br := bytes.NewReader(buf)
	rc := rangeDecoderFromParts(br, s.rng, s.code)

	cont, err = s.d.processNext(rc)
	if err != nil {
		return 0, false, err
	}
	s.rng, s.code = rc.rng, rc.code
	return len(buf) - br.Len(), cont, nil
}

// tryProcessNext performs a read-only lookahead over buf: it exercises the
// exact same branch structure as DecoderState.processNext, reading (but
// never writing) probability cells, to confirm that buf holds enough bytes
// to complete one full symbol. It never touches state, rep, or the output
// buffer.
func (s *StreamDecoder) tryProcessNext(buf []byte) (bool, error) {
	rc := rangeDecoderFromParts(bytes.NewReader(buf), s.rng, s.code)
	d := s.d

	posState := uint32(d.buf.Len()) & d.posMask()

	isMatch := d.isMatch[d.state*numPosStates+int(posState)]
	bit, err := rc.decodeBit(&isMatch, false)
	if shortRead(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if bit == 0 {
		if _, err := d.decodeLiteral(rc, false); shortRead(err) {
			return false, nil
		} else if err != nil {
			return false, err
		}
		return true, nil
	}

	isRep := d.isRep[d.state]
	repBit, err := rc.decodeBit(&isRep, false)
	if shortRead(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if repBit == 0 {
		lenVal, err := d.lenDecoder.decode(rc, int(posState), false)
		if shortRead(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if _, err := d.decodeDistance(rc, int(lenVal)+matchMinLen, false); shortRead(err) {
			return false, nil
		} else if err != nil {
			return false, err
		}
		return true, nil
	}

	isRepG0 := d.isRepG0[d.state]
	g0Bit, err := rc.decodeBit(&isRepG0, false)
	if shortRead(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if g0Bit == 0 {
		isRep0Long := d.isRep0Long[d.state*numPosStates+int(posState)]
		if _, err := rc.decodeBit(&isRep0Long, false); shortRead(err) {
			return false, nil
		} else if err != nil {
			return false, err
		}
	} else {
		isRepG1 := d.isRepG1[d.state]
		g1Bit, err := rc.decodeBit(&isRepG1, false)
		if shortRead(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if g1Bit != 0 {
			isRepG2 := d.isRepG2[d.state]
			if _, err := rc.decodeBit(&isRepG2, false); shortRead(err) {
				return false, nil
			} else if err != nil {
				return false, err
			}
		}
	}

	if _, err := d.repLenDecoder.decode(rc, int(posState), false); shortRead(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return true, nil
}

func shortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Finish signals that no more input will ever arrive: the stream must
// already have terminated (target size reached or end-of-stream marker
// seen), otherwise the input is truncated.
func (s *StreamDecoder) Finish() error {
	if s.err != nil {
		return s.err
	}
	if !s.done {
		if s.opts.AllowIncomplete {
			if s.d == nil {
				return nil
			}
			return s.d.buf.Finish()
		}
		err := io.ErrUnexpectedEOF
		s.err = err
		return err
	}
	return s.d.buf.Finish()
}
