// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mpd models the subset of a DASH Media Presentation Description
// needed to address initialization segments.
package mpd

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// MPD is the root element of a Media Presentation Description.
type MPD struct {
	XMLName  xml.Name `xml:"MPD"`
	Type     string   `xml:"type,attr"`
	Profiles string   `xml:"profiles,attr"`
	BaseURL  string   `xml:"BaseURL"`
	Periods  []Period `xml:"Period"`
}

// Period represents a media content period.
type Period struct {
	ID      string          `xml:"id,attr"`
	Start   string          `xml:"start,attr"`
	BaseURL string          `xml:"BaseURL"`
	Sets    []AdaptationSet `xml:"AdaptationSet"`
}

// AdaptationSet represents a set of interchangeable representations.
type AdaptationSet struct {
	ID                string              `xml:"id,attr"`
	ContentType       string              `xml:"contentType,attr"`
	MimeType          string              `xml:"mimeType,attr"`
	Lang              string              `xml:"lang,attr,omitempty"`
	ContentProtection []ContentProtection `xml:"ContentProtection"`
	SegmentTemplate   *SegmentTemplate    `xml:"SegmentTemplate"`
	Representations   []Representation    `xml:"Representation"`
}

// ContentProtection declares a protection scheme for an adaptation set.
type ContentProtection struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
	DefaultKID  string `xml:"default_KID,attr"`
}

// Representation represents a specific media stream.
type Representation struct {
	ID              string           `xml:"id,attr"`
	Bandwidth       int              `xml:"bandwidth,attr"`
	Codecs          string           `xml:"codecs,attr"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
}

// SegmentTemplate defines the URL structure for segments.
type SegmentTemplate struct {
	Timescale      int              `xml:"timescale,attr"`
	Initialization string           `xml:"initialization,attr"`
	Media          string           `xml:"media,attr"`
	StartNumber    string           `xml:"startNumber,attr"`
	Timeline       *SegmentTimeline `xml:"SegmentTimeline"`
}

// SegmentTimeline defines the timeline of segments.
type SegmentTimeline struct {
	Segments []S `xml:"S"`
}

// S represents a single segment or a series of segments.
type S struct {
	T string `xml:"t,attr"` // Start time
	D string `xml:"d,attr"` // Duration
	R string `xml:"r,attr"` // Repeat count
}

// Parse decodes an MPD document.
func Parse(data []byte) (*MPD, error) {
	var m MPD
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mpd: %w", err)
	}
	return &m, nil
}

// BaseURL returns the manifest URL up to, but excluding, the last slash of
// its path. The query is dropped first since CDN tokens may contain slashes.
func BaseURL(manifestURL string) string {
	if i := strings.IndexByte(manifestURL, '?'); i >= 0 {
		manifestURL = manifestURL[:i]
	}
	i := strings.LastIndex(manifestURL, "/")
	if i < 0 {
		return manifestURL
	}
	return manifestURL[:i]
}
