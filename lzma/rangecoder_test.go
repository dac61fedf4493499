package lzma

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeCoderBitRoundTrip(t *testing.T) {
	bits := []int{1, 0, 0, 1, 1, 1, 0, 0, 1, 0, 1, 1, 0, 0, 0, 1}

	var buf bytes.Buffer
	enc := newRangeEncoder(&buf)
	prob := probInit
	for _, b := range bits {
		require.NoError(t, enc.encodeBit(&prob, b))
	}
	require.NoError(t, enc.flush())

	dec, err := newRangeDecoder(bufio.NewReader(&buf))
	require.NoError(t, err)
	prob = probInit
	for _, want := range bits {
		got, err := dec.decodeBit(&prob, true)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestRangeCoderDirectBitsRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 7, 42, 0xFFFF}
	const n = 17

	var buf bytes.Buffer
	enc := newRangeEncoder(&buf)
	for _, v := range values {
		require.NoError(t, enc.encodeDirect(v, n))
	}
	require.NoError(t, enc.flush())

	dec, err := newRangeDecoder(bufio.NewReader(&buf))
	require.NoError(t, err)
	for _, want := range values {
		got, err := dec.decodeDirect(n)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestBitTreeRoundTrip(t *testing.T) {
	const numBits = 6
	values := []uint32{0, 1, 17, 63, 32}

	var buf bytes.Buffer
	enc := newRangeEncoder(&buf)
	probs := newProbSlice(1 << numBits)
	for _, v := range values {
		require.NoError(t, encodeBitTree(enc, numBits, probs, v))
	}
	require.NoError(t, enc.flush())

	dec, err := newRangeDecoder(bufio.NewReader(&buf))
	require.NoError(t, err)
	probs = newProbSlice(1 << numBits)
	for _, want := range values {
		got, err := parseBitTree(dec, numBits, probs, true)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestReverseBitTreeRoundTrip(t *testing.T) {
	const numBits = 4
	values := []uint32{0, 5, 15, 8}

	var buf bytes.Buffer
	enc := newRangeEncoder(&buf)
	probs := newProbSlice(1 << numBits)
	for _, v := range values {
		require.NoError(t, encodeReverseBitTree(enc, numBits, probs, 0, v))
	}
	require.NoError(t, enc.flush())

	dec, err := newRangeDecoder(bufio.NewReader(&buf))
	require.NoError(t, err)
	probs = newProbSlice(1 << numBits)
	for _, want := range values {
		got, err := parseReverseBitTree(dec, numBits, probs, 0, true)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestGetPosSlotMatchesDecodeRanges(t *testing.T) {
	for slot := uint32(0); slot < 62; slot++ {
		var lo, hi uint32
		if slot < 4 {
			lo, hi = slot, slot
		} else {
			numDirectBits := uint(slot>>1) - 1
			base := (2 | (slot & 1)) << numDirectBits
			span := uint32(1) << numDirectBits
			lo = base
			hi = base + span - 1
		}
		require.Equal(t, slot, getPosSlot(lo), "lo bound for slot %d", slot)
		require.Equal(t, slot, getPosSlot(hi), "hi bound for slot %d", slot)
	}
	require.Equal(t, uint32(63), getPosSlot(0xFFFFFFFF))
}
