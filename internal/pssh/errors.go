// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pssh

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBoxes means the segment carries fewer than two pssh boxes.
	ErrInsufficientBoxes = errors.New("pssh: insufficient boxes")
	// ErrBadBoxSize means a box size field is zero, too small or points past the data.
	ErrBadBoxSize = errors.New("pssh: bad box size")
	// ErrTruncated means a read ran past the end of the available bytes.
	ErrTruncated = errors.New("pssh: truncated data")
	// ErrNotPssh means a buffer handed to ParseBox is not a pssh box.
	ErrNotPssh = errors.New("pssh: not a pssh box")
)

// ExtractError describes why DRM init data could not be derived from a segment.
type ExtractError struct {
	Box    int // 1-based box index, 0 when not box specific
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Box > 0 {
		return fmt.Sprintf("pssh extract: box %d: %s: %v", e.Box, e.Reason, e.Err)
	}
	return fmt.Sprintf("pssh extract: %s: %v", e.Reason, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

func extractErr(box int, reason string, err error) error {
	return &ExtractError{Box: box, Reason: reason, Err: err}
}
