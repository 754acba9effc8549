// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"errors"
	"fmt"
)

// Stage names one step of a resolution.
type Stage string

const (
	StageCacheLookup   Stage = "cache_lookup"
	StageContentDetail Stage = "content_detail"
	StageDecode        Stage = "decode"
	StageRedirect      Stage = "redirect"
	StageCacheStore    Stage = "cache_store"
	StageManifestFetch Stage = "manifest_fetch"
	StageSegmentLocate Stage = "segment_locate"
	StageSegmentFetch  Stage = "segment_fetch"
	StageExtract       Stage = "extract"
)

// Policy says what a stage failure does to the resolution.
type Policy int

const (
	// Abort fails the whole resolution.
	Abort Policy = iota
	// Degrade records the failure and carries on without the stage's output.
	Degrade
)

func (p Policy) String() string {
	if p == Degrade {
		return "degrade"
	}
	return "abort"
}

// Policies is the failure policy of every stage. A cache lookup never fails:
// store errors already count as misses.
var Policies = map[Stage]Policy{
	StageCacheLookup:   Degrade,
	StageContentDetail: Abort,
	StageDecode:        Abort,
	StageRedirect:      Degrade,
	StageCacheStore:    Degrade,
	StageManifestFetch: Abort,
	StageSegmentLocate: Degrade,
	StageSegmentFetch:  Degrade,
	StageExtract:       Degrade,
}

// PolicyOf returns the policy for stage, Abort when unknown.
func PolicyOf(stage Stage) Policy {
	if p, ok := Policies[stage]; ok {
		return p
	}
	return Abort
}

// ErrManifestFetch means the manifest could not be downloaded.
var ErrManifestFetch = errors.New("manifest fetch failed")

// StageError wraps the error of an aborting stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
