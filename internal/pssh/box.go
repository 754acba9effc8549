// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pssh

import (
	"bytes"
	"encoding/hex"
)

// BoxType is the four character code of a protection system header box.
var BoxType = [4]byte{'p', 's', 's', 'h'}

// Well-known DRM system identifiers.
var (
	WidevineSystemID  = [16]byte{0xed, 0xef, 0x8b, 0xa9, 0x79, 0xd6, 0x4a, 0xce, 0xa3, 0xc8, 0x27, 0xdc, 0xd5, 0x1d, 0x21, 0xed}
	PlayReadySystemID = [16]byte{0x9a, 0x04, 0xf0, 0x79, 0x98, 0x40, 0x42, 0x86, 0xab, 0x92, 0xe6, 0x5b, 0xe0, 0x88, 0x5f, 0x95}
)

// Box is a decoded pssh box header. Raw holds the complete box bytes.
type Box struct {
	Size     uint32
	Version  uint8
	Flags    uint32
	SystemID [16]byte
	KeyIDs   [][16]byte // version 1 only
	Data     []byte
	Raw      []byte
}

// SystemName returns a short name for well-known system ids.
func (b *Box) SystemName() string {
	switch b.SystemID {
	case WidevineSystemID:
		return "widevine"
	case PlayReadySystemID:
		return "playready"
	default:
		return hex.EncodeToString(b.SystemID[:])
	}
}

// ParseBox decodes a full pssh box (version 0 or 1) from raw.
func ParseBox(raw []byte) (*Box, error) {
	c := newCursor(raw, 0)
	size, err := c.uint32()
	if err != nil {
		return nil, err
	}
	if size < 8 || int(size) > len(raw) {
		return nil, ErrBadBoxSize
	}
	typ, err := c.bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(typ, BoxType[:]) {
		return nil, ErrNotPssh
	}

	// Everything past this point must stay inside the declared box.
	c = newCursor(raw[:size], 8)
	b := &Box{Size: size, Raw: raw[:size]}
	if b.Version, err = c.uint8(); err != nil {
		return nil, err
	}
	if b.Flags, err = c.uint24(); err != nil {
		return nil, err
	}
	sys, err := c.bytes(16)
	if err != nil {
		return nil, err
	}
	copy(b.SystemID[:], sys)

	if b.Version > 0 {
		count, err := c.uint32()
		if err != nil {
			return nil, err
		}
		if uint64(count)*16 > uint64(c.remaining()) {
			return nil, ErrTruncated
		}
		for i := uint32(0); i < count; i++ {
			kid, _ := c.bytes(16)
			var k [16]byte
			copy(k[:], kid)
			b.KeyIDs = append(b.KeyIDs, k)
		}
	}

	dataSize, err := c.uint32()
	if err != nil {
		return nil, err
	}
	if uint64(dataSize) > uint64(c.remaining()) {
		return nil, ErrTruncated
	}
	b.Data, _ = c.bytes(int(dataSize))
	return b, nil
}

// FindBoxes returns the raw bytes of every well-formed pssh box found by
// scanning segment for the box tag.
func FindBoxes(segment []byte) []*Box {
	var out []*Box
	for _, off := range tagOffsets(segment) {
		raw, err := boxAt(segment, off)
		if err != nil {
			continue
		}
		if b, err := ParseBox(raw); err == nil {
			out = append(out, b)
		}
	}
	return out
}

// tagOffsets returns the offsets of every non-overlapping occurrence of the
// pssh tag in stream order.
func tagOffsets(segment []byte) []int {
	var offsets []int
	for off := 0; off < len(segment); {
		i := bytes.Index(segment[off:], BoxType[:])
		if i < 0 {
			break
		}
		offsets = append(offsets, off+i)
		off += i + len(BoxType)
	}
	return offsets
}

// boxAt returns the box whose type tag sits at tagOffset. The size field is
// the four bytes before the tag and covers the whole box.
func boxAt(segment []byte, tagOffset int) ([]byte, error) {
	start := tagOffset - 4
	if start < 0 {
		return nil, ErrTruncated
	}
	size, err := newCursor(segment, start).uint32()
	if err != nil {
		return nil, err
	}
	if size < 8 || uint64(start)+uint64(size) > uint64(len(segment)) {
		return nil, ErrBadBoxSize
	}
	return segment[start : start+int(size)], nil
}
