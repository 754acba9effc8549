// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pssh

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKID = [16]byte{0x1f, 0x2e, 0x3d, 0x4c, 0x5b, 0x6a, 0x79, 0x88, 0x97, 0xa6, 0xb5, 0xc4, 0xd3, 0xe2, 0xf1, 0x00}

func buildBox(systemID [16]byte, data []byte) []byte {
	size := 32 + len(data)
	b := make([]byte, 4, size)
	binary.BigEndian.PutUint32(b, uint32(size))
	b = append(b, "pssh"...)
	b = append(b, 0, 0, 0, 0)
	b = append(b, systemID[:]...)
	var ds [4]byte
	binary.BigEndian.PutUint32(ds[:], uint32(len(data)))
	b = append(b, ds[:]...)
	return append(b, data...)
}

// originWidevineBox mimics what the origin ships: key_id first, followed by
// fields the extractor is expected to discard.
func originWidevineBox(kid [16]byte) []byte {
	data := append([]byte{0x12, 0x10}, kid[:]...)
	data = append(data, 0x1a, 0x05, 'o', 'r', 'i', 'g', 'n', 0x22, 0x03, 'c', 'i', 'd')
	return buildBox(WidevineSystemID, data)
}

func playReadyBox() []byte {
	return buildBox(PlayReadySystemID, []byte("<WRMHEADER>opaque playready object</WRMHEADER>"))
}

func segmentWith(boxes ...[]byte) []byte {
	seg := []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', '6', 0, 0, 0, 0, 'i', 's', 'o', '6', 'd', 'a', 's', 'h'}
	seg = append(seg, 0, 0, 0, 0x08, 'm', 'o', 'o', 'v')
	for _, b := range boxes {
		seg = append(seg, b...)
	}
	return append(seg, 0, 0, 0, 0x08, 'f', 'r', 'e', 'e')
}

func TestExtract_RoundTrip(t *testing.T) {
	pr := playReadyBox()
	seg := segmentWith(originWidevineBox(testKID), pr)

	got, err := Extract(seg)
	require.NoError(t, err)

	assert.Equal(t, "1f2e3d4c-5b6a-7988-97a6-b5c4d3e2f100", got.KID)
	assert.Equal(t, testKID, got.KeyID)
	assert.Equal(t, pr, got.PlayReady, "playready box must be copied verbatim")

	wv, err := ParseBox(got.Widevine)
	require.NoError(t, err)
	assert.Equal(t, WidevineSystemID, wv.SystemID)
	assert.Equal(t, uint32(0x32), wv.Size)
	assert.Equal(t, uint8(0), wv.Version)
	assert.Equal(t, testKID[:], wv.Data[2:])
}

func TestWidevineBox_CanonicalBytes(t *testing.T) {
	want := "000000327073736800000000edef8ba979d64acea3c827dcd51d21ed000000121210" + hex.EncodeToString(testKID[:])
	assert.Equal(t, want, hex.EncodeToString(WidevineBox(testKID)))
}

func TestExtract_InsufficientBoxes(t *testing.T) {
	tests := []struct {
		name string
		seg  []byte
	}{
		{"no boxes", segmentWith()},
		{"one box", segmentWith(originWidevineBox(testKID))},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.seg)
			require.ErrorIs(t, err, ErrInsufficientBoxes)
			assert.True(t, cmp.Equal(DrmInitData{}, got), "no partial data on failure")

			var xerr *ExtractError
			require.True(t, errors.As(err, &xerr))
		})
	}
}

func TestExtract_MalformedSizes(t *testing.T) {
	wv := originWidevineBox(testKID)
	pr := playReadyBox()

	zeroSize := append([]byte(nil), wv...)
	binary.BigEndian.PutUint32(zeroSize, 0)

	oversized := append([]byte(nil), pr...)
	binary.BigEndian.PutUint32(oversized, uint32(len(pr)+4096))

	// Box large enough to be in range but too small to hold a key id.
	tiny := []byte{0, 0, 0, 0x10, 'p', 's', 's', 'h', 0, 0, 0, 0, 0, 0, 0, 0}

	tests := []struct {
		name string
		seg  []byte
		want error
	}{
		{"zero size", segmentWith(zeroSize, pr), ErrBadBoxSize},
		{"size past end", append(append([]byte(nil), wv...), oversized...), ErrBadBoxSize},
		{"key id outside box", segmentWith(tiny, pr), ErrTruncated},
		{"tag at start of stream", append([]byte("pssh"), segmentWith(wv, pr)...), ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.seg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtract_UsesFirstTwoBoxesInOrder(t *testing.T) {
	other := [16]byte{0xaa}
	pr := playReadyBox()
	seg := segmentWith(originWidevineBox(testKID), pr, originWidevineBox(other))

	got, err := Extract(seg)
	require.NoError(t, err)
	assert.Equal(t, testKID, got.KeyID)
	assert.Equal(t, pr, got.PlayReady)
}

func TestDrmInitData_Base64(t *testing.T) {
	d := DrmInitData{Widevine: []byte{0x00, 0x01}, PlayReady: []byte("pr")}
	assert.Equal(t, "AAE=", d.WidevineBase64())
	assert.Equal(t, "cHI=", d.PlayReadyBase64())
}
