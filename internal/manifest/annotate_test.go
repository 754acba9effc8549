// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manifest

import (
	"strings"
	"testing"

	"github.com/ManuGH/mpdgate/internal/pssh"
	"github.com/stretchr/testify/assert"
)

const virgin = `<MPD>
<AdaptationSet contentType="video">
<ContentProtection schemeIdUri="urn:mpeg:dash:mp4protection:2011" value="cenc"/>
<ContentProtection schemeIdUri="urn:uuid:9a04f079-9840-4286-ab92-e65be0885f95" value="PlayReady"/>
<ContentProtection schemeIdUri="urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed" value="Widevine"/>
<SegmentTemplate initialization="dash/video-init.dash" media="dash/video-$Number$.m4s"/>
</AdaptationSet>
<AdaptationSet contentType="audio">
<ContentProtection schemeIdUri="urn:mpeg:dash:mp4protection:2011" value="cenc"/>
<ContentProtection schemeIdUri="urn:uuid:9a04f079-9840-4286-ab92-e65be0885f95" value="PlayReady"/>
<ContentProtection schemeIdUri="urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed" value="Widevine"/>
</AdaptationSet>
</MPD>`

func testDRM() pssh.DrmInitData {
	kid := [16]byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f}
	return pssh.DrmInitData{
		KID:       pssh.FormatKID(kid),
		KeyID:     kid,
		Widevine:  pssh.WidevineBox(kid),
		PlayReady: []byte("pr-box"),
	}
}

func TestAnnotate_SingleInsertionPerScheme(t *testing.T) {
	drm := testDRM()
	out := Annotate(virgin, drm)

	assert.Equal(t, 1, strings.Count(out, "cenc:default_KID="))
	assert.Contains(t, out, `mp4protection:2011" cenc:default_KID="10111213-1415-1617-1819-1a1b1c1d1e1f" value="cenc"/>`)
	assert.Equal(t, 1, strings.Count(out, "<cenc:pssh>"+drm.PlayReadyBase64()+"</cenc:pssh>"))
	assert.Equal(t, 1, strings.Count(out, "<cenc:pssh>"+drm.WidevineBase64()+"</cenc:pssh>"))
	assert.Contains(t, out, `e65be0885f95"><cenc:pssh>`+drm.PlayReadyBase64()+`</cenc:pssh></ContentProtection>`)
	assert.Contains(t, out, `27dcd51d21ed"><cenc:pssh>`+drm.WidevineBase64()+`</cenc:pssh></ContentProtection>`)

	// The audio set declarations stay untouched.
	assert.Equal(t, 1, strings.Count(out, `" value="PlayReady"/>`))
	assert.Equal(t, 1, strings.Count(out, `" value="Widevine"/>`))
}

func TestAnnotate_SecondPassDoesNotDuplicateKID(t *testing.T) {
	drm := testDRM()
	once := Annotate(virgin, drm)
	twice := Annotate(once, drm)

	assert.Equal(t, 1, strings.Count(twice, "cenc:default_KID="))
	// PSSH anchors are consumed one at a time.
	assert.Equal(t, 2, strings.Count(twice, "<cenc:pssh>"+drm.PlayReadyBase64()+"</cenc:pssh>"))
}

func TestAnnotate_EmptyDRMIsNoop(t *testing.T) {
	assert.Equal(t, virgin, Annotate(virgin, pssh.DrmInitData{}))
}

func TestAnnotate_MissingAnchors(t *testing.T) {
	const doc = "<MPD><Period/></MPD>"
	assert.Equal(t, doc, Annotate(doc, testDRM()))
}

func TestRewritePaths(t *testing.T) {
	out := RewritePaths(virgin, "https://cdn.example/out/v1/")
	assert.Contains(t, out, `initialization="https://cdn.example/out/v1/dash/video-init.dash"`)
	assert.Contains(t, out, `media="https://cdn.example/out/v1/dash/video-$Number$.m4s"`)
	assert.NotContains(t, out, `"dash/`)
}
