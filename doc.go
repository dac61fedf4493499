// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/lzo

/*
Package xz implements the .xz container format: stream header/footer,
block headers with their filter chains (LZMA2, Delta), per-block
integrity checks, and the index. It decodes and encodes LZMA2-framed .xz
streams built on top of the github.com/lzmago/xz/lzma and
github.com/lzmago/xz/lzma2 packages.

# Decompress

	var out bytes.Buffer
	err := xz.Decompress(r, &out)

DecompressWithOptions accepts a memory limit:

	err := xz.DecompressWithOptions(r, &out, &xz.Options{MemLimit: 1 << 28})

# Compress

Compress always produces a single block with one LZMA2 filter carrying
uncompressed chunks only (no match finder) and a CRC32 integrity check,
still a fully valid stream any conforming xz reader can decode:

	err := xz.Compress(r, &out)

# Incremental decoding

NewReader returns a push-style decoder: write compressed bytes to it in
any chunking and Close to flush the decoded bytes to the wrapped writer.

	dec, err := xz.NewReader(&out, nil)
	io.Copy(dec, compressedSource)
	err = dec.Close()
*/
package xz
