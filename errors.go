// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta

package xz

import "fmt"

// Error is a format violation at the .xz container level: bad magic,
// CRC mismatch, an unsupported filter, or an inconsistent index. It
// corresponds to XzError in the container's own error taxonomy.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}
