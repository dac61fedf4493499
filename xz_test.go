package xz

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lzmago/xz/lzma2"
	"github.com/lzmago/xz/xzio"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("a"),
		[]byte("hello, world"),
		bytes.Repeat([]byte("ab"), 5000),
	}

	for _, data := range cases {
		var compressed bytes.Buffer
		require.NoError(t, Compress(bytes.NewReader(data), &compressed))

		var out bytes.Buffer
		require.NoError(t, Decompress(bytes.NewReader(compressed.Bytes()), &out))
		require.Equal(t, data, out.Bytes())
	}
}

func TestReaderRoundTrip(t *testing.T) {
	data := []byte("streamed through the push-style xz.Reader, in small pieces")

	var compressed bytes.Buffer
	require.NoError(t, Compress(bytes.NewReader(data), &compressed))

	var out bytes.Buffer
	r, err := NewReader(&out, nil)
	require.NoError(t, err)

	raw := compressed.Bytes()
	for i := 0; i < len(raw); i += 7 {
		end := i + 7
		if end > len(raw) {
			end = len(raw)
		}
		_, err := r.Write(raw[i:end])
		require.NoError(t, err)
	}
	require.NoError(t, r.Close())
	require.Equal(t, data, out.Bytes())
}

func TestStreamHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStreamHeader(&buf, checkCRC32))

	check, err := readStreamHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, checkCRC32, check)
}

func TestStreamHeaderRejectsBadMagic(t *testing.T) {
	buf := bytes.NewReader([]byte{0xFD, '7', 'z', 'X', 'Y', 0x00, 0x00, 0x01, 0, 0, 0, 0})
	_, err := readStreamHeader(buf)
	require.Error(t, err)
}

func TestStreamHeaderRejectsBadCRC(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStreamHeader(&buf, checkCRC32))
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF
	_, err := readStreamHeader(bytes.NewReader(corrupted))
	require.Error(t, err)
}

func TestStreamFooterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStreamFooter(&buf, 12, checkCRC32))

	indexSize, check, err := readStreamFooter(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 12, indexSize)
	require.Equal(t, checkCRC32, check)
}

func TestIndexRoundTrip(t *testing.T) {
	records := []indexRecord{
		{unpaddedSize: 40, uncompressedSize: 100},
		{unpaddedSize: 20, uncompressedSize: 50},
	}

	var buf bytes.Buffer
	n, err := writeIndex(&buf, records)
	require.NoError(t, err)
	require.EqualValues(t, buf.Len(), n)

	// The leading indicator byte (0x00) is normally peeked by the block
	// loop before dispatching to readIndex; strip it here the same way.
	raw := buf.Bytes()
	require.Equal(t, byte(0x00), raw[0])

	got, total, err := readIndex(bytes.NewReader(raw[1:]))
	require.NoError(t, err)
	require.Equal(t, records, got)
	require.EqualValues(t, len(raw), total)
}

func TestIndexRejectsBadCRC(t *testing.T) {
	var buf bytes.Buffer
	_, err := writeIndex(&buf, []indexRecord{{unpaddedSize: 1, uncompressedSize: 1}})
	require.NoError(t, err)

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF
	_, _, err = readIndex(bytes.NewReader(raw[1:]))
	require.Error(t, err)
}

func TestMultibyteRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 129, 16383, 16384, 1 << 32, 1<<63 - 1}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, writeMultibyte(&buf, v))
		require.Equal(t, multibyteLen(v), buf.Len())

		got, err := readMultibyte(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	data := []byte{10, 20, 35, 60, 61, 90, 91, 92}
	orig := append([]byte(nil), data...)

	deltaEncode(data, 1)
	deltaDecode(data, 1)
	require.Equal(t, orig, data)

	deltaEncode(data, 3)
	deltaDecode(data, 3)
	require.Equal(t, orig, data)
}

func TestLZMA2DictSizeRoundTrip(t *testing.T) {
	for _, want := range []uint32{1 << 20, 1 << 23, 1 << 26} {
		b := encodeLZMA2DictSizeByte(want)
		got, err := lzma2DictSize(b)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got, want)
	}

	_, err := lzma2DictSize(41)
	require.Error(t, err)

	got, err := lzma2DictSize(40)
	require.NoError(t, err)
	require.EqualValues(t, 0xFFFFFFFF, got)
}

// TestDecodeS4EmptyGoldenVector decodes the spec's canonical empty .xz
// stream (stream header, a zero-block index, and stream footer — no
// block bodies at all).
func TestDecodeS4EmptyGoldenVector(t *testing.T) {
	in := []byte{
		0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00, 0x00, 0x04, 0xE6, 0xD6, 0xB4, 0x46,
		0x00, 0x00, 0x00, 0x00, 0x1C, 0xDF, 0x44, 0x21, 0x1F, 0xB6, 0xF3, 0x7D,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x04, 0x59, 0x5A,
	}

	var out bytes.Buffer
	require.NoError(t, Decompress(bytes.NewReader(in), &out))
	require.Empty(t, out.Bytes())
}

// buildSingleBlockPrefix writes exactly the stream header, one block
// header, and one LZMA2-uncompressed block body (with its padding and
// check bytes) for data — everything DecompressWithOptions's per-block
// loop consumes before it would try to read the index — without the
// index or footer that normally follow.
func buildSingleBlockPrefix(t *testing.T, data []byte) []byte {
	t.Helper()

	var out bytes.Buffer
	require.NoError(t, writeStreamHeader(&out, checkCRC32))

	var blockBody bytes.Buffer
	require.NoError(t, lzma2.EncodeUncompressed(bytes.NewReader(data), &blockBody))

	var bh bytes.Buffer
	require.NoError(t, writeBlockHeader(&bh, DefaultEncoderOptions().DictSize))

	out.Write(bh.Bytes())
	out.Write(blockBody.Bytes())
	require.NoError(t, xzio.WriteZeroPadding(&out, int(xzio.PaddingLen(int64(blockBody.Len()), 4))))

	sum := crc32.ChecksumIEEE(data)
	var crcBuf [4]byte
	putLeUint32(crcBuf[:], sum)
	out.Write(crcBuf[:])

	return out.Bytes()
}

func TestAllowIncompleteFlushesBlocksBeforeTruncation(t *testing.T) {
	data := []byte("flush what decoded before the stream got cut off")
	truncated := buildSingleBlockPrefix(t, data)

	var out bytes.Buffer
	err := DecompressWithOptions(bytes.NewReader(truncated), &out, &Options{AllowIncomplete: true})
	require.NoError(t, err)
	require.Equal(t, data, out.Bytes())
}

func TestWithoutAllowIncompleteTruncationIsAnError(t *testing.T) {
	data := []byte("this one should fail without the flag")
	truncated := buildSingleBlockPrefix(t, data)

	var out bytes.Buffer
	err := DecompressWithOptions(bytes.NewReader(truncated), &out, &Options{})
	require.Error(t, err)
}

func TestDecompressRejectsCorruptedBlockCheck(t *testing.T) {
	data := []byte("check this gets caught")

	var compressed bytes.Buffer
	require.NoError(t, Compress(bytes.NewReader(data), &compressed))

	raw := compressed.Bytes()
	raw[len(raw)/2] ^= 0xFF // perturb a byte inside the block's compressed body

	var out bytes.Buffer
	err := DecompressWithOptions(bytes.NewReader(raw), &out, nil)
	require.Error(t, err)
}
