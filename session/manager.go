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
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
)

// ManagerOpts is the options for a Manager.
type ManagerOpts struct {
	store          Store
	storeName      string
	storeOpts      map[string]any
	defaultExpires int64
	namespace      Namespace
	loadHooks      []LoadHook
	saveHooks      []SaveHook
	deleteHooks    []DeleteHook
}

var defaultManagerOpts = ManagerOpts{
	defaultExpires: NoExpiry,
}

// ManagerOpt is the option for a Manager.
type ManagerOpt func(*ManagerOpts)

// WithStore sets the configured store instance. The store may itself be a
// composite of layered stores; composition is opaque to the Manager.
func WithStore(store Store) ManagerOpt {
	return func(o *ManagerOpts) {
		o.store = store
	}
}

// WithStoreName selects a registered store backend by its symbolic name,
// constructed with the given backend options. Ignored when WithStore is set.
func WithStoreName(name string, storeOpts map[string]any) ManagerOpt {
	return func(o *ManagerOpts) {
		o.storeName = name
		o.storeOpts = storeOpts
	}
}

// WithDefaultExpires sets the default expiration in seconds applied to every
// new State. NoExpiry means sessions never expire.
func WithDefaultExpires(seconds int64) ManagerOpt {
	return func(o *ManagerOpts) {
		o.defaultExpires = seconds
	}
}

// WithNamespace sets the namespace path under which all of this Manager's
// sessions are addressed. The default is the root (empty) namespace.
func WithNamespace(segments ...string) ManagerOpt {
	return func(o *ManagerOpts) {
		o.namespace = Namespace(segments)
	}
}

// WithLoadHook appends hooks invoked around every record load.
func WithLoadHook(hooks ...LoadHook) ManagerOpt {
	return func(o *ManagerOpts) {
		o.loadHooks = append(o.loadHooks, hooks...)
	}
}

// WithSaveHook appends hooks invoked around every record persist.
func WithSaveHook(hooks ...SaveHook) ManagerOpt {
	return func(o *ManagerOpts) {
		o.saveHooks = append(o.saveHooks, hooks...)
	}
}

// WithDeleteHook appends hooks invoked around every record removal.
func WithDeleteHook(hooks ...DeleteHook) ManagerOpt {
	return func(o *ManagerOpts) {
		o.deleteHooks = append(o.deleteHooks, hooks...)
	}
}

// Manager holds the global session defaults and acts as the factory for
// State objects. It is immutable after construction and safe for concurrent
// use by many States.
type Manager struct {
	opts ManagerOpts
}

// NewManager creates a new Manager. A store is required, either directly via
// WithStore or by registered name via WithStoreName.
func NewManager(options ...ManagerOpt) (*Manager, error) {
	opts := defaultManagerOpts
	for _, option := range options {
		option(&opts)
	}

	if opts.store == nil && opts.storeName != "" {
		store, err := OpenStore(opts.storeName, opts.storeOpts)
		if err != nil {
			return nil, fmt.Errorf("session: open store %q: %w", opts.storeName, err)
		}
		opts.store = store
	}
	if opts.store == nil {
		return nil, ErrStoreRequired
	}
	return &Manager{opts: opts}, nil
}

// NewState creates a State managed by this Manager. If id is empty a fresh
// random id is generated and the State is known not to be in the store, so
// its first data access needs no store round trip. If id is given, the
// in-store determination is deferred to first load.
func (m *Manager) NewState(id string) *State {
	now := time.Now()
	s := &State{
		mgr:      m,
		seed:     newSeed(),
		created:  now,
		modified: now,
		expires:  m.opts.defaultExpires,
	}
	if id == "" {
		s.id = s.GenerateID()
		s.knownNew = true
	} else {
		s.id = id
	}
	return s
}

// DefaultExpires returns the default expiration in seconds.
func (m *Manager) DefaultExpires() int64 {
	return m.opts.defaultExpires
}

// Store returns the configured store instance.
func (m *Manager) Store() Store {
	return m.opts.store
}

// Namespace returns the namespace path sessions are addressed under.
func (m *Manager) Namespace() Namespace {
	return m.opts.namespace
}

// CloneData performs a deep structural copy of a session payload; mutating
// the copy never affects the original and vice versa.
func (m *Manager) CloneData(d Data) (Data, error) {
	return CloneData(d)
}

// newSeed derives a per-State randomness seed by mixing a random uuid with
// the construction time. Two States never share a seed.
func newSeed() uint64 {
	u := uuid.New()
	var buf [24]byte
	copy(buf[:16], u[:])
	binary.BigEndian.PutUint64(buf[16:], uint64(time.Now().UnixNano()))
	return murmur3.Sum64(buf[:])
}
