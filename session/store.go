//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

// Package session provides the core session-state functionality: the Manager
// factory, the per-session State lifecycle and the pluggable Store contract.
package session

import (
	"context"
	"strings"
	"time"
)

// Data is the session payload, a mapping from string keys to structured
// values. Values must stay within the clonable kind set of CloneData.
type Data map[string]any

// NoExpiry is the expiration sentinel meaning "never expires". It is also the
// MaxExpires value of a store with no configured cap.
const NoExpiry int64 = 0

// Record is a session record as persisted by a Store. A Store returns the
// record exactly as written, except that Expires reflects the effective
// (possibly capped) value.
type Record struct {
	Data     Data      `json:"data"`     // Data is the session payload.
	Created  time.Time `json:"created"`  // Created is set once, at first save.
	Modified time.Time `json:"modified"` // Modified is updated on every save.
	Expires  int64     `json:"expires"`  // Expires is the effective TTL in seconds.
}

// Namespace is an ordered sequence of key-prefix segments. It lets a single
// Store instance host logically distinct keyspaces without collisions; the
// root namespace is the empty sequence.
type Namespace []string

// Key joins the namespace segments and the given id into a flat storage key.
// Separators inside segments or the id are escaped, so two distinct namespace
// paths never produce the same key.
func (ns Namespace) Key(id string) string {
	if len(ns) == 0 {
		return escapeSegment(id)
	}
	return ns.String() + ":" + escapeSegment(id)
}

// String returns the flat form of the namespace path, with separators inside
// segments escaped.
func (ns Namespace) String() string {
	parts := make([]string, len(ns))
	for i, segment := range ns {
		parts[i] = escapeSegment(segment)
	}
	return strings.Join(parts, ":")
}

// escapeSegment keeps the join separator unambiguous: a ':' inside a segment
// or id cannot be mistaken for a segment boundary.
func escapeSegment(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, ":", `\:`)
}

// Prepend returns a new namespace with the given segments in front. The
// receiver is not modified.
func (ns Namespace) Prepend(segments ...string) Namespace {
	out := make(Namespace, 0, len(segments)+len(ns))
	out = append(out, segments...)
	out = append(out, ns...)
	return out
}

// Store is the pluggable persistence contract shared by all backend variants.
// Implementations must be safe for concurrent use by multiple States;
// last-writer-wins at the granularity of one Set call is acceptable.
type Store interface {
	// Get looks up a record. It returns (nil, nil) for expired, removed or
	// never-created records; absence is never confused with an empty record.
	Get(ctx context.Context, id string, ns Namespace) (*Record, error)

	// Set upserts a record. If the store has a configured MaxExpires, the
	// effective TTL written is capped by it.
	Set(ctx context.Context, id string, ns Namespace, record *Record) error

	// Remove deletes a record. Removing an absent key is not an error.
	Remove(ctx context.Context, id string, ns Namespace) error

	// MaxExpires reports the store-enforced TTL ceiling in seconds, or
	// NoExpiry when no cap is configured.
	MaxExpires() int64
}

// EffectiveExpires clamps a requested TTL against a store cap. A request of
// NoExpiry under a cap is clamped to the cap, since "never" exceeds any
// ceiling.
func EffectiveExpires(requested, max int64) int64 {
	if max > NoExpiry && (requested <= NoExpiry || requested > max) {
		return max
	}
	if requested < NoExpiry {
		return NoExpiry
	}
	return requested
}
