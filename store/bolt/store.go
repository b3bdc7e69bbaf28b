//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

// Package bolt provides an embedded file-backed store implementation on top
// of bbolt, suitable as the durable tier of a layered store.
//
// Storage structure: one nested bucket per namespace segment under a root
// bucket, with the JSON-encoded record envelope keyed by id at the leaf.
// bbolt has no native TTL, so the envelope carries an absolute deadline and
// expired records are treated as absent and swept lazily. Payload numbers
// round-trip through JSON and come back as float64.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/statehaus/sessionstate/log"
	"github.com/statehaus/sessionstate/session"
)

func init() {
	session.RegisterStore("bolt", func(opts map[string]any) (session.Store, error) {
		path, ok := session.OptString(opts, "path")
		if !ok {
			return nil, fmt.Errorf("bolt store: %q option is required", "path")
		}
		var options []Opt
		if max, ok := session.OptInt64(opts, "max_expires"); ok {
			options = append(options, WithMaxExpires(max))
		}
		return Open(path, options...)
	})
}

const rootBucket = "sessions"

type envelope struct {
	Record   *session.Record `json:"record"`
	Deadline time.Time       `json:"deadline,omitempty"` // zero means no expiry
}

func (e *envelope) expired() bool {
	return !e.Deadline.IsZero() && time.Now().After(e.Deadline)
}

type storeOpts struct {
	maxExpires int64
}

var defaultOpts = storeOpts{
	maxExpires: session.NoExpiry,
}

// Opt is the option for the bolt store.
type Opt func(*storeOpts)

// WithMaxExpires sets the store-enforced TTL ceiling in seconds.
func WithMaxExpires(seconds int64) Opt {
	return func(o *storeOpts) {
		o.maxExpires = seconds
	}
}

// Store is the bbolt-backed session store.
type Store struct {
	db   *bbolt.DB
	opts storeOpts
}

var _ session.Store = (*Store)(nil)

// Open opens or creates the database file at path.
func Open(path string, options ...Opt) (*Store, error) {
	opts := defaultOpts
	for _, option := range options {
		option(&opts)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt store: open %s: %w", path, err)
	}
	return &Store{db: db, opts: opts}, nil
}

// bucketFor walks the namespace bucket chain inside a read transaction. A
// missing bucket anywhere on the path means no record under that namespace.
func bucketFor(tx *bbolt.Tx, ns session.Namespace) *bbolt.Bucket {
	b := tx.Bucket([]byte(rootBucket))
	for _, segment := range ns {
		if b == nil {
			return nil
		}
		b = b.Bucket([]byte(segment))
	}
	return b
}

// createBucketFor walks the namespace bucket chain inside a write
// transaction, creating buckets as needed.
func createBucketFor(tx *bbolt.Tx, ns session.Namespace) (*bbolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists([]byte(rootBucket))
	if err != nil {
		return nil, err
	}
	for _, segment := range ns {
		if b, err = b.CreateBucketIfNotExists([]byte(segment)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Get looks up a record, returning (nil, nil) for absent or expired keys.
// Expired records are swept in a follow-up write transaction.
func (s *Store) Get(ctx context.Context, id string, ns session.Namespace) (*session.Record, error) {
	var rec *session.Record
	var stale bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := bucketFor(tx, ns)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("bolt store: decode record: %w", err)
		}
		if env.expired() {
			stale = true
			return nil
		}
		rec = env.Record
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stale {
		if err := s.Remove(ctx, id, ns); err != nil {
			log.Debugf("bolt store: sweep of expired record %s failed: %v", ns.Key(id), err)
		}
	}
	return rec, nil
}

// Set upserts a record, clamping its TTL against the configured cap.
func (s *Store) Set(ctx context.Context, id string, ns session.Namespace, record *session.Record) error {
	effective := session.EffectiveExpires(record.Expires, s.opts.maxExpires)
	stored := *record
	stored.Expires = effective
	env := envelope{Record: &stored}
	if effective > 0 {
		env.Deadline = time.Now().Add(time.Duration(effective) * time.Second)
	}
	payload, err := json.Marshal(&env)
	if err != nil {
		return fmt.Errorf("bolt store: encode record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := createBucketFor(tx, ns)
		if err != nil {
			return fmt.Errorf("bolt store: create bucket: %w", err)
		}
		if err := b.Put([]byte(id), payload); err != nil {
			return fmt.Errorf("bolt store: put: %w", err)
		}
		return nil
	})
}

// Remove deletes a record. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, id string, ns session.Namespace) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := bucketFor(tx, ns)
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(id)); err != nil {
			return fmt.Errorf("bolt store: delete: %w", err)
		}
		return nil
	})
}

// MaxExpires reports the configured TTL ceiling, or session.NoExpiry.
func (s *Store) MaxExpires() int64 {
	return s.opts.maxExpires
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
