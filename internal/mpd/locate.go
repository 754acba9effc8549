// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mpd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned when the manifest has no addressable audio init segment.
var ErrNotFound = errors.New("mpd: audio init segment not found")

// SegmentPrefix is the path segment the origin serves media under.
const SegmentPrefix = "dash/"

// LocateAudioInitSegment returns the first URL LocateAudioInitSegments
// yields.
func LocateAudioInitSegment(m *MPD, baseURL string) (string, error) {
	urls, err := LocateAudioInitSegments(m, baseURL)
	if err != nil {
		return "", err
	}
	return urls[0], nil
}

// LocateAudioInitSegments returns, in document order, the URL of the segment
// each audio representation with a usable segment template uses to carry
// its protection boxes. Callers try them in turn until one downloads.
//
// $Number$ is the template's startNumber plus the repeat count of the first
// timeline entry. That is how this origin labels the segment and is kept as is.
func LocateAudioInitSegments(m *MPD, baseURL string) ([]string, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no manifest", ErrNotFound)
	}
	var urls []string
	reason := "no audio adaptation set"
	for _, p := range m.Periods {
		for _, set := range p.Sets {
			if set.ContentType != "audio" {
				continue
			}
			if len(set.Representations) == 0 {
				reason = fmt.Sprintf("audio set %q has no representation", set.ID)
				continue
			}
			for _, rep := range set.Representations {
				tmpl := rep.SegmentTemplate
				if tmpl == nil {
					tmpl = set.SegmentTemplate
				}
				if tmpl == nil || tmpl.Media == "" {
					reason = fmt.Sprintf("representation %q has no segment template", rep.ID)
					continue
				}
				media := strings.Replace(tmpl.Media, "$RepresentationID$", rep.ID, 1)
				media = strings.Replace(media, "$Number$", strconv.Itoa(initNumber(tmpl)), 1)
				urls = append(urls, strings.TrimRight(baseURL, "/")+"/"+SegmentPrefix+media)
			}
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reason)
	}
	return urls, nil
}

func initNumber(t *SegmentTemplate) int {
	n := atoi(t.StartNumber)
	if t.Timeline != nil && len(t.Timeline.Segments) > 0 {
		n += atoi(t.Timeline.Segments[0].R)
	}
	return n
}

// atoi parses a leading integer like JavaScript's parseInt, 0 when absent.
func atoi(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
