// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package xz

// Filter IDs recognized in a block's filter chain.
const (
	filterIDDelta = 0x03
	filterIDLZMA2 = 0x21
)

// deltaDecode reverses the delta filter in place: each output byte is the
// running sum, modulo 256, of every input byte `distance` positions back
// plus itself. distance is in [1, 256]; the history ring only ever needs
// to hold the most recent `distance` output bytes.
func deltaDecode(data []byte, distance int) {
	var history [256]byte
	pos := 0
	for i := range data {
		data[i] += history[pos]
		history[pos] = data[i]
		pos++
		if pos == distance {
			pos = 0
		}
	}
}

// deltaEncode applies the delta filter: each output byte is the input
// byte minus the input byte `distance` positions back, modulo 256.
func deltaEncode(data []byte, distance int) {
	var history [256]byte
	pos := 0
	for i := range data {
		orig := data[i]
		data[i] -= history[pos]
		history[pos] = orig
		pos++
		if pos == distance {
			pos = 0
		}
	}
}
