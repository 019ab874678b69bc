// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

package xsettings

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMemory reports that the server or the decoder could not allocate
	// what an operation needed.
	ErrNoMemory = errors.New("xsettings: out of memory")
	// ErrAccessDenied reports a permission failure while resolving the
	// settings owner or reading its property.
	ErrAccessDenied = errors.New("xsettings: access denied")
	// ErrFailed is the generic failure, including every malformed blob.
	ErrFailed = errors.New("xsettings: failed")
	// ErrNotFound reports a lookup of a setting that is not in the snapshot.
	ErrNotFound = errors.New("xsettings: no such setting")
	// ErrDuplicateEntry reports a blob naming the same setting twice.
	ErrDuplicateEntry = errors.New("xsettings: duplicate setting")
	// ErrClosed is returned by a Client after Close.
	ErrClosed = errors.New("xsettings: client closed")
)

// DecodeError describes why a settings blob was rejected. It matches
// ErrFailed under errors.Is, and also Err when one is set.
type DecodeError struct {
	Offset int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("xsettings: malformed settings blob at offset %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrFailed }
