// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/mpdgate/internal/manifest"
	"github.com/ManuGH/mpdgate/internal/platform/httpx"
	"github.com/ManuGH/mpdgate/internal/pointer"
	"github.com/ManuGH/mpdgate/internal/pssh"
	"github.com/ManuGH/mpdgate/internal/redirect"
	"github.com/ManuGH/mpdgate/internal/session"
	"github.com/ManuGH/mpdgate/internal/urlcache"
	"github.com/stretchr/testify/require"
)

var (
	testKID   = [16]byte{0xa1, 0xb2, 0xc3, 0xd4, 0xe5, 0xf6, 0x07, 0x18, 0x29, 0x3a, 0x4b, 0x5c, 0x6d, 0x7e, 0x8f, 0x90}
	testCreds = session.Credentials{SubscriberID: "1001", Token: "tok"}
	fixedNow  = time.Unix(1700000000, 0)
)

const cdnManifest = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" xmlns:cenc="urn:mpeg:cenc:2013" type="dynamic">
  <Period id="1">
    <AdaptationSet id="1" contentType="video" mimeType="video/mp4">
      <ContentProtection schemeIdUri="urn:mpeg:dash:mp4protection:2011" value="cenc"/>
      <ContentProtection schemeIdUri="urn:uuid:9a04f079-9840-4286-ab92-e65be0885f95" value="PlayReady"/>
      <ContentProtection schemeIdUri="urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed" value="Widevine"/>
      <Representation id="video=800000" bandwidth="800000">
        <SegmentTemplate initialization="dash/video=800000.dash" media="dash/video=800000-$Number$.m4s" startNumber="10"/>
      </Representation>
    </AdaptationSet>
    <AdaptationSet id="2" contentType="audio" mimeType="audio/mp4">
      <Representation id="audio_eng=64000" bandwidth="64000">
        <SegmentTemplate timescale="48000" media="$RepresentationID$-$Number$.m4s" startNumber="10">
          <SegmentTimeline><S t="0" d="96000" r="2"/></SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

// multiAudioManifest lists an audio representation ahead of the one the CDN
// serves a segment for.
var multiAudioManifest = strings.Replace(cdnManifest,
	`      <Representation id="audio_eng=64000" bandwidth="64000">`,
	`      <Representation id="audio_hin=96000" bandwidth="96000">
        <SegmentTemplate timescale="48000" media="$RepresentationID$-$Number$.m4s" startNumber="10">
          <SegmentTimeline><S t="0" d="96000" r="2"/></SegmentTimeline>
        </SegmentTemplate>
      </Representation>
      <Representation id="audio_eng=64000" bandwidth="64000">`, 1)

// playReadyBox builds a version 0 pssh box with the PlayReady system id.
func playReadyBox() []byte {
	payload := []byte("<WRMHEADER>playready</WRMHEADER>")
	box := make([]byte, 32+len(payload))
	binary.BigEndian.PutUint32(box[0:], uint32(len(box)))
	copy(box[4:], "pssh")
	copy(box[12:], pssh.PlayReadySystemID[:])
	binary.BigEndian.PutUint32(box[28:], uint32(len(payload)))
	copy(box[32:], payload)
	return box
}

func initSegment() []byte {
	seg := []byte{0, 0, 0, 8, 'm', 'o', 'o', 'v'}
	seg = append(seg, pssh.WidevineBox(testKID)...)
	return append(seg, playReadyBox()...)
}

// fakeCDN serves the origin redirect, the manifest and the audio segment.
type fakeCDN struct {
	srv          *httptest.Server
	redirectCode atomic.Int32
	manifestCode atomic.Int32
	segmentCode  atomic.Int32
	manifestHits atomic.Int32
	segmentHits  atomic.Int32
	missingHits  atomic.Int32
	headRequests atomic.Int32
}

func newFakeCDN(t *testing.T) *fakeCDN {
	t.Helper()
	f := &fakeCDN{}
	f.redirectCode.Store(http.StatusFound)
	f.manifestCode.Store(http.StatusOK)
	f.segmentCode.Store(http.StatusOK)

	mux := http.NewServeMux()
	serveManifest := func(w http.ResponseWriter, r *http.Request) {
		f.manifestHits.Add(1)
		if code := int(f.manifestCode.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_, _ = w.Write([]byte(cdnManifest))
	}
	mux.HandleFunc("/bpaita/origin.mpd", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			f.headRequests.Add(1)
			code := int(f.redirectCode.Load())
			if code == http.StatusFound {
				w.Header().Set("Location", f.srv.URL+"/cdn/live/manifest.mpd?hdntl=exp=1700003600~acl=/*&utm=1")
			}
			w.WriteHeader(code)
			return
		}
		serveManifest(w, r)
	})
	mux.HandleFunc("/cdn/live/manifest.mpd", serveManifest)
	mux.HandleFunc("/plain/manifest.mpd", serveManifest)
	segment := func(w http.ResponseWriter, r *http.Request) {
		f.segmentHits.Add(1)
		if code := int(f.segmentCode.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_, _ = w.Write(initSegment())
	}
	mux.HandleFunc("/cdn/live/dash/audio_eng=64000-12.m4s", segment)
	mux.HandleFunc("/bpaita/dash/audio_eng=64000-12.m4s", segment)
	mux.HandleFunc("/plain/dash/audio_eng=64000-12.m4s", segment)
	mux.HandleFunc("/multi/manifest.mpd", func(w http.ResponseWriter, r *http.Request) {
		f.manifestHits.Add(1)
		_, _ = w.Write([]byte(multiAudioManifest))
	})
	mux.HandleFunc("/multi/dash/audio_hin=96000-12.m4s", func(w http.ResponseWriter, r *http.Request) {
		f.missingHits.Add(1)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/multi/dash/audio_eng=64000-12.m4s", segment)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// fakeSource hands out pointers and can block until released.
type fakeSource struct {
	mu       sync.Mutex
	pointers map[string]string
	err      error
	calls    atomic.Int32
	gate     chan struct{}
}

func (s *fakeSource) Pointer(ctx context.Context, contentID string, _ session.Credentials) (string, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	p, ok := s.pointers[contentID]
	if !ok {
		return "", fmt.Errorf("no pointer for %s", contentID)
	}
	return p, nil
}

type harness struct {
	svc    *Service
	cdn    *fakeCDN
	source *fakeSource
	store  *urlcache.MemoryStore
	codec  *pointer.Codec
}

func newHarness(t *testing.T, passthrough bool) *harness {
	t.Helper()
	cdn := newFakeCDN(t)
	codec := pointer.NewCodec(pointer.DefaultSecret)
	store := urlcache.NewMemoryStore()
	source := &fakeSource{pointers: map[string]string{}}

	probeClient := httpx.NewClient(2*time.Second, httpx.WithoutRedirects())
	fetchClient := httpx.NewClient(2 * time.Second)
	t.Cleanup(func() {
		probeClient.CloseIdleConnections()
		fetchClient.CloseIdleConnections()
	})

	svc := New(Deps{
		Cache:       urlcache.New(store, urlcache.BackendMemory),
		Codec:       codec,
		Redirect:    &redirect.Resolver{Client: probeClient, Markers: redirect.DefaultMarkers},
		Fetcher:     &manifest.Fetcher{Client: fetchClient},
		Source:      source,
		Now:         func() time.Time { return fixedNow },
		Passthrough: passthrough,
	})
	return &harness{svc: svc, cdn: cdn, source: source, store: store, codec: codec}
}

// point registers contentID as pointing at path on the fake CDN.
func (h *harness) point(t *testing.T, contentID, path string) {
	t.Helper()
	enc, err := pointer.Encode(h.cdn.srv.URL+path, h.codec.Key)
	require.NoError(t, err)
	h.source.mu.Lock()
	h.source.pointers[contentID] = enc + "#ignored"
	h.source.mu.Unlock()
}

func countOf(s, sub string) int { return strings.Count(s, sub) }

func urlcacheRecord(u string) urlcache.Record {
	return urlcache.Record{URL: u, UpdatedAt: fixedNow.Unix() - 3600}
}
