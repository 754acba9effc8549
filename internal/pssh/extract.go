// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pssh extracts DRM initialization data from the protection system
// header boxes of a media initialization segment.
package pssh

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// kidOffset is where the origin places the content key id inside the first
// (Widevine) box: size(4) type(4) version/flags(4) system id(16) data size(4)
// and the two byte protobuf key_id tag and length.
const kidOffset = 34

// widevineBoxSize is the total size of the canonical Widevine box.
const widevineBoxSize = 0x32

// DrmInitData is what a DRM-aware player needs to request a license.
type DrmInitData struct {
	KID       string   // dashed hex form, 8-4-4-4-12
	KeyID     [16]byte // raw key id
	Widevine  []byte   // canonical Widevine pssh box
	PlayReady []byte   // PlayReady pssh box, verbatim from the segment
}

// WidevineBase64 returns the Widevine box in standard base64.
func (d DrmInitData) WidevineBase64() string {
	return base64.StdEncoding.EncodeToString(d.Widevine)
}

// PlayReadyBase64 returns the PlayReady box in standard base64.
func (d DrmInitData) PlayReadyBase64() string {
	return base64.StdEncoding.EncodeToString(d.PlayReady)
}

// Extract derives DrmInitData from an initialization segment. The first pssh
// box in stream order is trusted only for its key id, the second is copied.
func Extract(segment []byte) (DrmInitData, error) {
	offsets := tagOffsets(segment)
	if len(offsets) < 2 {
		return DrmInitData{}, extractErr(0, "need two pssh boxes", ErrInsufficientBoxes)
	}

	wvBox, err := boxAt(segment, offsets[0])
	if err != nil {
		return DrmInitData{}, extractErr(1, "locate box", err)
	}
	prBox, err := boxAt(segment, offsets[1])
	if err != nil {
		return DrmInitData{}, extractErr(2, "locate box", err)
	}

	c := newCursor(wvBox, 0)
	if err := c.skip(kidOffset); err != nil {
		return DrmInitData{}, extractErr(1, "seek key id", err)
	}
	kid, err := c.bytes(16)
	if err != nil {
		return DrmInitData{}, extractErr(1, "read key id", err)
	}

	var out DrmInitData
	copy(out.KeyID[:], kid)
	out.KID = FormatKID(out.KeyID)
	out.Widevine = WidevineBox(out.KeyID)
	out.PlayReady = append([]byte(nil), prBox...)
	return out, nil
}

// FormatKID renders a key id as lowercase 8-4-4-4-12 hex groups.
func FormatKID(kid [16]byte) string {
	return uuid.UUID(kid).String()
}

// WidevineBox builds the minimal version 0 Widevine pssh box carrying only
// the given key id.
func WidevineBox(kid [16]byte) []byte {
	b := make([]byte, 0, widevineBoxSize)
	b = append(b, 0x00, 0x00, 0x00, widevineBoxSize)
	b = append(b, BoxType[:]...)
	b = append(b, 0x00, 0x00, 0x00, 0x00)
	b = append(b, WidevineSystemID[:]...)
	b = append(b, 0x00, 0x00, 0x00, 0x12)
	// protobuf: field 2 (key_id), wire type 2, length 16
	b = append(b, 0x12, 0x10)
	b = append(b, kid[:]...)
	return b
}
