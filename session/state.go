//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
)

// State is a per-session mutable facade over a data mapping, with identity,
// timestamps, expiration and dirty tracking. It lazily loads from, and
// explicitly saves to, its Manager's store.
//
// A State is a per-request object: it is not safe for concurrent mutation by
// multiple goroutines. The Manager and the store behind it are.
type State struct {
	mgr *Manager

	id   string
	seed uint64

	data     Data // nil until loaded
	snapshot Data // last-known-clean copy of data

	created  time.Time
	modified time.Time
	expires  int64

	loaded   bool
	saved    bool
	inStore  bool
	deleted  bool
	knownNew bool // id was freshly generated; no record can exist yet
}

// ID returns the current identity. It never touches the store.
func (s *State) ID() string {
	return s.id
}

// HashSeed returns the per-State randomness seed mixed into id generation.
func (s *State) HashSeed() uint64 {
	return s.seed
}

// GenerateID produces a new random opaque id. The per-State seed is mixed in
// so ids remain unpredictable across States; collisions are probabilistically
// impossible (128 bits).
func (s *State) GenerateID() string {
	u := uuid.New()
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[:8], s.seed)
	copy(buf[8:], u[:])
	h1, h2 := murmur3.Sum128(buf[:])
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// Created returns the creation timestamp. It is set once, at construction
// for brand-new sessions or from the persisted record for resumed ones, and
// never changes thereafter.
func (s *State) Created() time.Time {
	return s.created
}

// Modified returns the last successful save timestamp. It equals Created
// until the first save.
func (s *State) Modified() time.Time {
	return s.modified
}

// Expires returns the per-State expiration in seconds.
func (s *State) Expires() int64 {
	return s.expires
}

// SetExpires sets the per-State expiration override in memory. It takes
// effect on the next save.
func (s *State) SetExpires(seconds int64) {
	s.expires = seconds
}

// IsLoaded reports whether the data mapping has been materialized.
func (s *State) IsLoaded() bool {
	return s.loaded
}

// IsSaved reports whether this State has completed at least one successful
// save since construction or since its last id change.
func (s *State) IsSaved() bool {
	return s.saved
}

// InStore reports whether this State's id corresponded to a record actually
// present in the store at load time, distinguishing resumed sessions from
// brand-new ones.
func (s *State) InStore() bool {
	return s.inStore
}

// IsDeleted reports whether this State's record was removed through it.
func (s *State) IsDeleted() bool {
	return s.deleted
}

// Data returns a mutable reference to the live data mapping, loading it from
// the store first if needed. Mutating the returned mapping is the only way
// the State becomes dirty; dirtiness is computed by structural comparison
// against the clean snapshot, not by intercepting writes.
func (s *State) Data(ctx context.Context) (Data, error) {
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return nil, err
		}
	}
	return s.data, nil
}

// IsDirty reports whether the data mapping differs structurally from the
// clean snapshot, forcing a load if needed.
func (s *State) IsDirty(ctx context.Context) (bool, error) {
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return false, err
		}
	}
	return !reflect.DeepEqual(s.data, s.snapshot), nil
}

// Save persists the current data under the State's id, unless a fresh
// existence check finds the record gone (deleted elsewhere since the last
// load or save), in which case it returns ErrSaveMiss and writes nothing.
// The check is a best-effort guard, not a transaction; a race between check
// and write is acceptable, and ForceSave is the unconditional escape hatch.
// Save does not skip on clean data; dirtiness is a query, not a save gate.
func (s *State) Save(ctx context.Context) error {
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return err
		}
	}
	if s.saved || s.inStore {
		rec, err := s.mgr.Store().Get(ctx, s.id, s.namespace())
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrSaveMiss
		}
	}
	return s.persist(ctx)
}

// ForceSave persists like Save but skips the existence check, always
// creating or overwriting the record.
func (s *State) ForceSave(ctx context.Context) error {
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return err
		}
	}
	return s.persist(ctx)
}

// Reload refetches the record from the store, replacing in-memory data,
// timestamps and expiration. It fails with ErrDirty when unsaved
// modifications exist, so uncommitted work is never silently discarded.
func (s *State) Reload(ctx context.Context) error {
	if s.loaded && !reflect.DeepEqual(s.data, s.snapshot) {
		return ErrDirty
	}
	return s.ForceReload(ctx)
}

// ForceReload reloads unconditionally, discarding in-memory modifications.
func (s *State) ForceReload(ctx context.Context) error {
	s.loaded = false
	s.knownNew = false
	return s.load(ctx)
}

// Rollback discards in-memory modifications, restoring the data mapping to
// the last clean snapshot without touching the store.
func (s *State) Rollback() error {
	if !s.loaded {
		return nil
	}
	if s.snapshot == nil {
		// After ResetID there is no clean baseline; an empty mapping
		// becomes the new one.
		s.snapshot = Data{}
	}
	data, err := CloneData(s.snapshot)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

// MarkClean accepts the current in-memory data as the new baseline without
// touching the store. A subsequent Rollback reverts to this baseline.
func (s *State) MarkClean() error {
	if !s.loaded {
		return nil
	}
	snapshot, err := CloneData(s.data)
	if err != nil {
		return err
	}
	s.snapshot = snapshot
	return nil
}

// Delete removes the record from the store and marks the State deleted. It
// fails with ErrNotStored when the State was never saved or resumed, since
// no record could plausibly exist.
func (s *State) Delete(ctx context.Context) error {
	if !s.saved && !s.inStore {
		return ErrNotStored
	}
	return s.remove(ctx)
}

// ForceDelete removes the record regardless of local saved or resumed
// status. Removing a nonexistent record is not an error.
func (s *State) ForceDelete(ctx context.Context) error {
	return s.remove(ctx)
}

// ResetID assigns a fresh id to this State while keeping its in-memory data,
// detaching it from the previous record. The State becomes unsaved and dirty
// and requires a Save to persist under the new id. This is the
// session-fixation mitigation primitive: rotate the id after privilege
// changes.
//
// The old id's record is left in the store until natural expiry; callers
// that need it gone must delete it first.
func (s *State) ResetID(ctx context.Context) error {
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return err
		}
	}
	s.id = s.GenerateID()
	s.saved = false
	s.inStore = false
	s.deleted = false
	s.knownNew = true
	// A nil snapshot never equals a live mapping, so the State reads as
	// dirty until the next mark-clean point.
	s.snapshot = nil
	return nil
}

func (s *State) namespace() Namespace {
	return s.mgr.Namespace()
}

// load materializes the data mapping. Brand-new ids skip the store entirely;
// otherwise the record is fetched through the load hook chain, and absence
// initializes an empty new session.
func (s *State) load(ctx context.Context) error {
	var rec *Record
	if !s.knownNew {
		var err error
		rec, err = s.fetch(ctx)
		if err != nil {
			return err
		}
	}
	if rec != nil {
		s.data = rec.Data
		if s.data == nil {
			s.data = Data{}
		}
		s.created = rec.Created
		s.modified = rec.Modified
		s.expires = rec.Expires
		s.inStore = true
	} else {
		s.data = Data{}
		s.inStore = false
	}
	snapshot, err := CloneData(s.data)
	if err != nil {
		return err
	}
	s.snapshot = snapshot
	s.loaded = true
	return nil
}

func (s *State) fetch(ctx context.Context) (*Record, error) {
	hctx := &LoadContext{
		Context:   ctx,
		ID:        s.id,
		Namespace: s.namespace(),
	}
	final := func(c *LoadContext, next func() (*Record, error)) (*Record, error) {
		return s.mgr.Store().Get(c.Context, c.ID, c.Namespace)
	}
	return runLoadHooks(s.mgr.opts.loadHooks, hctx, final)
}

// persist writes the record through the save hook chain and refreshes the
// State's bookkeeping: clean snapshot, modified timestamp, saved and
// in-store flags.
func (s *State) persist(ctx context.Context) error {
	data, err := CloneData(s.data)
	if err != nil {
		return err
	}
	now := time.Now()
	hctx := &SaveContext{
		Context:   ctx,
		ID:        s.id,
		Namespace: s.namespace(),
		Record: &Record{
			Data:     data,
			Created:  s.created,
			Modified: now,
			Expires:  s.expires,
		},
	}
	final := func(c *SaveContext, next func() error) error {
		return s.mgr.Store().Set(c.Context, c.ID, c.Namespace, c.Record)
	}
	if err := runSaveHooks(s.mgr.opts.saveHooks, hctx, final); err != nil {
		return err
	}

	snapshot, err := CloneData(s.data)
	if err != nil {
		return err
	}
	s.snapshot = snapshot
	s.modified = now
	s.saved = true
	s.inStore = true
	s.deleted = false
	s.knownNew = false
	return nil
}

func (s *State) remove(ctx context.Context) error {
	hctx := &DeleteContext{
		Context:   ctx,
		ID:        s.id,
		Namespace: s.namespace(),
	}
	final := func(c *DeleteContext, next func() error) error {
		return s.mgr.Store().Remove(c.Context, c.ID, c.Namespace)
	}
	if err := runDeleteHooks(s.mgr.opts.deleteHooks, hctx, final); err != nil {
		return err
	}
	s.deleted = true
	return nil
}
