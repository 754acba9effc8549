// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manifest

import (
	"strings"

	"github.com/ManuGH/mpdgate/internal/mpd"
	"github.com/ManuGH/mpdgate/internal/pssh"
)

const (
	kidAnchor       = "mp4protection:2011"
	kidAttr         = `" cenc:default_KID="`
	playReadyAnchor = `" value="PlayReady"/>`
	widevineAnchor  = `" value="Widevine"/>`
)

// RewritePaths turns every relative "dash/" reference into an absolute URL
// below baseURL.
func RewritePaths(text, baseURL string) string {
	return strings.ReplaceAll(text, mpd.SegmentPrefix, strings.TrimRight(baseURL, "/")+"/"+mpd.SegmentPrefix)
}

// Annotate injects the default KID and the PSSH boxes into the first
// matching ContentProtection declarations. Each substitution touches only the
// first occurrence of its anchor. The KID is not injected again into a
// declaration that already carries one.
func Annotate(text string, drm pssh.DrmInitData) string {
	if drm.KID != "" {
		text = annotateKID(text, drm.KID)
	}
	if len(drm.PlayReady) > 0 {
		text = strings.Replace(text, playReadyAnchor,
			`"><cenc:pssh>`+drm.PlayReadyBase64()+`</cenc:pssh></ContentProtection>`, 1)
	}
	if len(drm.Widevine) > 0 {
		text = strings.Replace(text, widevineAnchor,
			`"><cenc:pssh>`+drm.WidevineBase64()+`</cenc:pssh></ContentProtection>`, 1)
	}
	return text
}

func annotateKID(text, kid string) string {
	i := strings.Index(text, kidAnchor)
	if i < 0 {
		return text
	}
	end := i + len(kidAnchor)
	if strings.HasPrefix(text[end:], kidAttr) {
		return text
	}
	return text[:end] + kidAttr + kid + text[end:]
}
