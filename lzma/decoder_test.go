package lzma

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("a"),
		[]byte("hello, world"),
		bytes.Repeat([]byte("ab"), 5000),
		[]byte("the quick brown fox jumps over the lazy dog, again and again and again"),
	}

	for _, data := range cases {
		var compressed bytes.Buffer
		require.NoError(t, Compress(bytes.NewReader(data), &compressed))

		var out bytes.Buffer
		require.NoError(t, Decompress(&compressed, &out))
		require.Equal(t, data, out.Bytes())
	}
}

func TestCompressDecompressRoundTripKnownSize(t *testing.T) {
	data := []byte("repeat yourself, repeat yourself, repeat yourself")
	size := uint64(len(data))
	opts := DefaultEncoderOptions()
	opts.UnpackedSize = &size

	var compressed bytes.Buffer
	require.NoError(t, CompressWithOptions(bytes.NewReader(data), &compressed, opts))

	var out bytes.Buffer
	require.NoError(t, Decompress(&compressed, &out))
	require.Equal(t, data, out.Bytes())
}

func TestStreamDecoderMatchesOneShotAcrossChunkSizes(t *testing.T) {
	data := bytes.Repeat([]byte("stream me in small pieces "), 200)

	var compressed bytes.Buffer
	require.NoError(t, CompressWithOptions(bytes.NewReader(data), &compressed, DefaultEncoderOptions()))
	raw := compressed.Bytes()

	for _, chunkSize := range []int{1, 2, 3, 7, 64, 1024} {
		params, err := ReadLZMAParams(bytes.NewReader(raw), ReadFromHeader, nil)
		require.NoError(t, err)

		var out bytes.Buffer
		buf := NewCircularBuffer(&out, params.DictSize)
		d := NewDecoderState(params.LC, params.LP, params.PB, buf)
		d.SetUnpackedSize(params.UnpackedSize)
		sd := newStreamDecoderFromState(d)

		body := raw[headerLen:]
		for off := 0; off < len(body); off += chunkSize {
			end := off + chunkSize
			if end > len(body) {
				end = len(body)
			}
			_, err := sd.Write(body[off:end])
			require.NoError(t, err, "chunkSize=%d", chunkSize)
		}
		require.NoError(t, sd.Finish(), "chunkSize=%d", chunkSize)
		require.Equal(t, data, out.Bytes(), "chunkSize=%d", chunkSize)
	}
}

func TestNewStreamDecoderAcceptsHeaderThroughWrite(t *testing.T) {
	data := bytes.Repeat([]byte("push the header through too "), 100)

	var compressed bytes.Buffer
	require.NoError(t, CompressWithOptions(bytes.NewReader(data), &compressed, DefaultEncoderOptions()))
	raw := compressed.Bytes()

	for _, chunkSize := range []int{1, 3, 11, 4096} {
		var out bytes.Buffer
		sd, err := NewStreamDecoder(&out, DefaultDecompressOptions())
		require.NoError(t, err)

		for off := 0; off < len(raw); off += chunkSize {
			end := off + chunkSize
			if end > len(raw) {
				end = len(raw)
			}
			_, err := sd.Write(raw[off:end])
			require.NoError(t, err, "chunkSize=%d", chunkSize)
		}
		require.NoError(t, sd.Finish(), "chunkSize=%d", chunkSize)
		require.Equal(t, data, out.Bytes(), "chunkSize=%d", chunkSize)
	}
}

func TestCircularBufferRejectsOutOfRangeDistance(t *testing.T) {
	var out bytes.Buffer
	buf := newCircularBuffer(&out, 4096)
	require.NoError(t, buf.AppendLiteral('a'))
	err := buf.AppendLZ(1, 5)
	require.Error(t, err)
}

// TestDecodeS1EmptyGoldenVector decodes the spec's canonical empty-stream
// byte vector: header with dict_size 0x00800000 and unknown unpacked size,
// body consisting of only the end-of-stream marker.
func TestDecodeS1EmptyGoldenVector(t *testing.T) {
	in := []byte{
		0x5D, 0x00, 0x00, 0x80, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x83, 0xFF, 0xFB, 0xFF, 0xFF, 0xC0, 0x00, 0x00, 0x00,
	}

	var out bytes.Buffer
	require.NoError(t, Decompress(bytes.NewReader(in), &out))
	require.Empty(t, out.Bytes())
}

// TestDecodeS2HelloWorldGoldenVector decodes the spec's canonical
// "Hello world\n" byte vector.
func TestDecodeS2HelloWorldGoldenVector(t *testing.T) {
	in := []byte{
		0x5D, 0x00, 0x00, 0x80, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x24, 0x19, 0x49, 0x98, 0x6F, 0x10, 0x19, 0xC6, 0xD7,
		0x31, 0xEB, 0x36, 0x50, 0xB2, 0x98, 0x48, 0xFF, 0xFE, 0xA5, 0xB0, 0x00,
	}

	var out bytes.Buffer
	require.NoError(t, Decompress(bytes.NewReader(in), &out))
	require.Equal(t, []byte("Hello world\n"), out.Bytes())
}

// TestDecodeRejectsShortHeader feeds fewer than the 13 mandatory header
// bytes and expects a HeaderTooShortError.
func TestDecodeRejectsShortHeader(t *testing.T) {
	in := []byte{0x5D, 0x00, 0x00, 0x80, 0x00, 0xFF, 0xFF}

	var out bytes.Buffer
	err := Decompress(bytes.NewReader(in), &out)
	require.Error(t, err)
	var hts *HeaderTooShortError
	require.ErrorAs(t, err, &hts)
}

// TestDecodeS3HugeDictClampGoldenVector is the S2 vector with dict_size
// replaced by an out-of-range value; the decoder must clamp/accept it and
// produce output identical to S2, not reject the stream.
func TestDecodeS3HugeDictClampGoldenVector(t *testing.T) {
	in := []byte{
		0x5D, 0x7F, 0x7F, 0x7F, 0x7F,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x24, 0x19, 0x49, 0x98, 0x6F, 0x10, 0x19, 0xC6, 0xD7,
		0x31, 0xEB, 0x36, 0x50, 0xB2, 0x98, 0x48, 0xFF, 0xFE, 0xA5, 0xB0, 0x00,
	}

	var out bytes.Buffer
	require.NoError(t, Decompress(bytes.NewReader(in), &out))
	require.Equal(t, []byte("Hello world\n"), out.Bytes())
}

// TestParseBitTreeDecodesAllZeroAndAllOneCodes exercises decodeDistance's
// forward pos-slot bit tree directly: with every probability at its
// initial 0.5 value, an all-zero code word decodes every bit as 0 and an
// all-one code word (code == rng, forced via rng's own initial value)
// decodes every bit as 1 — the two extremes of the tree's output range.
func TestParseBitTreeDecodesAllZeroAndAllOneCodes(t *testing.T) {
	newProbs := func() []uint16 {
		probs := make([]uint16, 1<<6)
		for i := range probs {
			probs[i] = probInit
		}
		return probs
	}

	zero := rangeDecoderFromParts(bytes.NewReader(bytes.Repeat([]byte{0x00}, 32)), 0xFFFF_FFFF, 0)
	slot, err := parseBitTree(zero, 6, newProbs(), true)
	require.NoError(t, err)
	require.Equal(t, uint32(0), slot)

	one := rangeDecoderFromParts(bytes.NewReader(bytes.Repeat([]byte{0xFF}, 32)), 0xFFFF_FFFF, 0xFFFF_FFFF)
	slot, err = parseBitTree(one, 6, newProbs(), true)
	require.NoError(t, err)
	require.Equal(t, uint32(1<<6-1), slot)
}

// TestParseReverseBitTreeDecodesAllZeroAndAllOneCodes is the same
// extremes test for decodeDistance's LSB-first reverse bit tree, used to
// decode the low distance bits once the pos-slot selects a multi-bit
// footer.
func TestParseReverseBitTreeDecodesAllZeroAndAllOneCodes(t *testing.T) {
	newProbs := func() []uint16 {
		probs := make([]uint16, 1+(1<<4))
		for i := range probs {
			probs[i] = probInit
		}
		return probs
	}

	zero := rangeDecoderFromParts(bytes.NewReader(bytes.Repeat([]byte{0x00}, 32)), 0xFFFF_FFFF, 0)
	v, err := parseReverseBitTree(zero, 4, newProbs(), 0, true)
	require.NoError(t, err)
	require.Equal(t, uint32(0), v)

	one := rangeDecoderFromParts(bytes.NewReader(bytes.Repeat([]byte{0xFF}, 32)), 0xFFFF_FFFF, 0xFFFF_FFFF)
	v, err = parseReverseBitTree(one, 4, newProbs(), 0, true)
	require.NoError(t, err)
	require.Equal(t, uint32(1<<4-1), v)
}

// TestDecodeDirectBitsDecodesAllZeroAndAllOneCodes covers decodeDistance's
// equiprobable direct-bits tail, used once the pos-slot's footer grows
// past the reverse-bit-tree's probability-modeled range.
func TestDecodeDirectBitsDecodesAllZeroAndAllOneCodes(t *testing.T) {
	zero := rangeDecoderFromParts(bytes.NewReader(bytes.Repeat([]byte{0x00}, 32)), 0xFFFF_FFFF, 0)
	v, err := zero.decodeDirect(26)
	require.NoError(t, err)
	require.Equal(t, uint32(0), v)

	// code = rng-1 with rng a power of two is a valid state in which every
	// direct bit decodes as 1; each 0xFF refill byte preserves it.
	one := rangeDecoderFromParts(bytes.NewReader(bytes.Repeat([]byte{0xFF}, 32)), 0x8000_0000, 0x7FFF_FFFF)
	v, err = one.decodeDirect(26)
	require.NoError(t, err)
	require.Equal(t, uint32(1<<26-1), v)
}

func TestMemLimitRejectsOversizedDictionary(t *testing.T) {
	var compressed bytes.Buffer
	require.NoError(t, Compress(bytes.NewReader([]byte("x")), &compressed))

	var out bytes.Buffer
	err := DecompressWithOptions(&compressed, &out, DecompressOptions{MemLimit: 1024})
	require.Error(t, err)
}
