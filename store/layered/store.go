//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

// Package layered composes two stores into one: a fast tier (typically the
// memory store) read before, and backfilled from, a durable tier (redis,
// bolt). The durable tier is the source of truth; fast-tier failures degrade
// to durable reads instead of failing the call.
package layered

import (
	"context"
	"io"

	"go.uber.org/multierr"

	"github.com/statehaus/sessionstate/log"
	"github.com/statehaus/sessionstate/session"
)

type storeOpts struct {
	fastExpires int64
}

var defaultOpts = storeOpts{
	fastExpires: session.NoExpiry,
}

// Opt is the option for the layered store.
type Opt func(*storeOpts)

// WithFastExpires caps the TTL of fast-tier copies, so cached records can
// turn over faster than the durable records they shadow. NoExpiry keeps the
// record's own TTL.
func WithFastExpires(seconds int64) Opt {
	return func(o *storeOpts) {
		o.fastExpires = seconds
	}
}

// Store is a fast-over-durable composite store.
type Store struct {
	fast    session.Store
	durable session.Store
	opts    storeOpts
}

var _ session.Store = (*Store)(nil)

// New creates a layered store from a fast and a durable tier.
func New(fast, durable session.Store, options ...Opt) *Store {
	opts := defaultOpts
	for _, option := range options {
		option(&opts)
	}
	return &Store{fast: fast, durable: durable, opts: opts}
}

// Get reads through the fast tier, falling back to the durable tier and
// backfilling the fast tier on a durable hit. Fast-tier failures are logged
// and treated as misses.
func (s *Store) Get(ctx context.Context, id string, ns session.Namespace) (*session.Record, error) {
	rec, err := s.fast.Get(ctx, id, ns)
	if err != nil {
		log.Warnf("layered store: fast tier get %s failed: %v", ns.Key(id), err)
	} else if rec != nil {
		return rec, nil
	}

	rec, err = s.durable.Get(ctx, id, ns)
	if err != nil || rec == nil {
		return nil, err
	}
	if copied, err := s.fastCopy(rec); err != nil {
		log.Warnf("layered store: backfill of %s failed: %v", ns.Key(id), err)
	} else if err := s.fast.Set(ctx, id, ns, copied); err != nil {
		log.Warnf("layered store: backfill of %s failed: %v", ns.Key(id), err)
	}
	return rec, nil
}

// Set writes through to the durable tier first, then mirrors to the fast
// tier. A fast-tier write failure evicts the stale copy and is logged; the
// durable write already succeeded.
func (s *Store) Set(ctx context.Context, id string, ns session.Namespace, record *session.Record) error {
	if err := s.durable.Set(ctx, id, ns, record); err != nil {
		return err
	}
	copied, err := s.fastCopy(record)
	if err == nil {
		err = s.fast.Set(ctx, id, ns, copied)
	}
	if err != nil {
		log.Warnf("layered store: fast tier set %s failed: %v", ns.Key(id), err)
		if err := s.fast.Remove(ctx, id, ns); err != nil {
			log.Warnf("layered store: fast tier evict %s failed: %v", ns.Key(id), err)
		}
	}
	return nil
}

// Remove deletes the record from both tiers. Removing an absent key is not
// an error in either tier.
func (s *Store) Remove(ctx context.Context, id string, ns session.Namespace) error {
	return multierr.Append(
		s.fast.Remove(ctx, id, ns),
		s.durable.Remove(ctx, id, ns),
	)
}

// MaxExpires reports the tightest cap of the two tiers, since that is the
// effective ceiling a caller can observe on read-back.
func (s *Store) MaxExpires() int64 {
	fast, durable := s.fast.MaxExpires(), s.durable.MaxExpires()
	if fast == session.NoExpiry {
		return durable
	}
	if durable == session.NoExpiry || fast < durable {
		return fast
	}
	return durable
}

// Close closes both tiers, if they own resources.
func (s *Store) Close() error {
	var err error
	if c, ok := s.fast.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	if c, ok := s.durable.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// fastCopy deep-copies a record headed for the fast tier and applies the
// fast-tier TTL override. The fast tier never receives the caller's record
// or data mapping, so a non-copying tier cannot alias live session data.
func (s *Store) fastCopy(record *session.Record) (*session.Record, error) {
	data, err := session.CloneData(record.Data)
	if err != nil {
		return nil, err
	}
	copied := *record
	copied.Data = data
	if s.opts.fastExpires != session.NoExpiry {
		copied.Expires = session.EffectiveExpires(record.Expires, s.opts.fastExpires)
	}
	return &copied, nil
}

// prefixed routes all operations of an inner store under a fixed namespace
// prefix, so one backend instance can host logically distinct keyspaces.
type prefixed struct {
	inner    session.Store
	segments []string
}

// Prefixed wraps a store so every operation runs under the given leading
// namespace segments. Layered tiers sharing one backend use distinct
// prefixes to avoid key collisions.
func Prefixed(inner session.Store, segments ...string) session.Store {
	return &prefixed{inner: inner, segments: segments}
}

func (p *prefixed) Get(ctx context.Context, id string, ns session.Namespace) (*session.Record, error) {
	return p.inner.Get(ctx, id, ns.Prepend(p.segments...))
}

func (p *prefixed) Set(ctx context.Context, id string, ns session.Namespace, record *session.Record) error {
	return p.inner.Set(ctx, id, ns.Prepend(p.segments...), record)
}

func (p *prefixed) Remove(ctx context.Context, id string, ns session.Namespace) error {
	return p.inner.Remove(ctx, id, ns.Prepend(p.segments...))
}

func (p *prefixed) MaxExpires() int64 {
	return p.inner.MaxExpires()
}
