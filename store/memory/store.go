//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

// Package memory provides the in-memory reference store implementation.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/statehaus/sessionstate/session"
)

func init() {
	session.RegisterStore("memory", func(opts map[string]any) (session.Store, error) {
		var options []Opt
		if max, ok := session.OptInt64(opts, "max_expires"); ok {
			options = append(options, WithMaxExpires(max))
		}
		if interval, ok := session.OptInt64(opts, "cleanup_interval"); ok {
			options = append(options, WithCleanupInterval(time.Duration(interval)*time.Second))
		}
		return New(options...), nil
	})
}

// entry wraps a persisted record with its expiration time.
type entry struct {
	record    *session.Record
	expiredAt time.Time
}

// isExpired checks if the given time has passed.
func isExpired(expiredAt time.Time) bool {
	return !expiredAt.IsZero() && time.Now().After(expiredAt)
}

// calculateExpiredAt calculates the expiration time based on TTL seconds.
func calculateExpiredAt(seconds int64) time.Time {
	if seconds <= 0 {
		return time.Time{} // Zero time means no expiration
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}

type storeOpts struct {
	maxExpires      int64
	cleanupInterval time.Duration
}

var defaultOpts = storeOpts{
	maxExpires: session.NoExpiry,
}

// Opt is the option for the memory store.
type Opt func(*storeOpts)

// WithMaxExpires sets the store-enforced TTL ceiling in seconds. Requested
// expirations longer than the cap are clamped on write.
func WithMaxExpires(seconds int64) Opt {
	return func(o *storeOpts) {
		o.maxExpires = seconds
	}
}

// WithCleanupInterval enables the background sweep of expired records at the
// given interval. Without it, expired records are dropped lazily on access.
func WithCleanupInterval(interval time.Duration) Opt {
	return func(o *storeOpts) {
		o.cleanupInterval = interval
	}
}

// Store is the in-memory reference store. Records are deep-copied on both
// write and read, so callers can never alias the stored mapping.
type Store struct {
	mu     sync.RWMutex
	spaces map[string]map[string]*entry // namespace key -> id -> record
	opts   storeOpts

	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	closeOnce     sync.Once
}

var _ session.Store = (*Store)(nil)

// New creates a new in-memory store.
func New(options ...Opt) *Store {
	opts := defaultOpts
	for _, option := range options {
		option(&opts)
	}

	s := &Store{
		spaces:      make(map[string]map[string]*entry),
		opts:        opts,
		cleanupDone: make(chan struct{}),
	}
	if opts.cleanupInterval > 0 {
		s.startCleanupRoutine()
	}
	return s
}

func spaceKey(ns session.Namespace) string {
	return ns.String()
}

// Get looks up a record, returning (nil, nil) for absent or expired keys.
func (s *Store) Get(ctx context.Context, id string, ns session.Namespace) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	space, ok := s.spaces[spaceKey(ns)]
	if !ok {
		return nil, nil
	}
	e, ok := space[id]
	if !ok || isExpired(e.expiredAt) {
		return nil, nil
	}

	data, err := session.CloneData(e.record.Data)
	if err != nil {
		return nil, err
	}
	rec := *e.record
	rec.Data = data
	return &rec, nil
}

// Set upserts a record, clamping its TTL against the configured cap.
func (s *Store) Set(ctx context.Context, id string, ns session.Namespace, record *session.Record) error {
	data, err := session.CloneData(record.Data)
	if err != nil {
		return err
	}
	effective := session.EffectiveExpires(record.Expires, s.opts.maxExpires)
	stored := &session.Record{
		Data:     data,
		Created:  record.Created,
		Modified: record.Modified,
		Expires:  effective,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := spaceKey(ns)
	if s.spaces[key] == nil {
		s.spaces[key] = make(map[string]*entry)
	}
	s.spaces[key][id] = &entry{
		record:    stored,
		expiredAt: calculateExpiredAt(effective),
	}
	return nil
}

// Remove deletes a record. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, id string, ns session.Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := spaceKey(ns)
	space, ok := s.spaces[key]
	if !ok {
		return nil
	}
	delete(space, id)

	// Clean up empty namespace maps
	if len(space) == 0 {
		delete(s.spaces, key)
	}
	return nil
}

// MaxExpires reports the configured TTL ceiling, or session.NoExpiry.
func (s *Store) MaxExpires() int64 {
	return s.opts.maxExpires
}

// cleanupExpired removes all expired records.
func (s *Store) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, space := range s.spaces {
		for id, e := range space {
			if isExpired(e.expiredAt) {
				delete(space, id)
			}
		}
		if len(space) == 0 {
			delete(s.spaces, key)
		}
	}
}

// startCleanupRoutine starts the background cleanup routine.
func (s *Store) startCleanupRoutine() {
	s.cleanupTicker = time.NewTicker(s.opts.cleanupInterval)
	ticker := s.cleanupTicker // Capture ticker to avoid race condition
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.cleanupExpired()
			case <-s.cleanupDone:
				return
			}
		}
	}()
}

// Close stops the background cleanup routine, if any.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.cleanupTicker != nil {
			close(s.cleanupDone)
			s.cleanupTicker = nil
		}
	})
	return nil
}
