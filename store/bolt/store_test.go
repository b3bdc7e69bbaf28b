//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

package bolt

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/statehaus/sessionstate/session"
)

func newTestStore(t *testing.T, options ...Opt) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"), options...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(expires int64) *session.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &session.Record{
		Data:     session.Data{"foo": "bar"},
		Created:  now,
		Modified: now,
		Expires:  expires,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec, err := store.Get(ctx, "sid", nil)
	require.NoError(t, err)
	assert.Nil(t, rec, "never-created key is absent")

	written := testRecord(session.NoExpiry)
	require.NoError(t, store.Set(ctx, "sid", nil, written))

	rec, err = store.Get(ctx, "sid", nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "bar", rec.Data["foo"])
	assert.True(t, rec.Created.Equal(written.Created))
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "sid", session.Namespace{"web"}, testRecord(session.NoExpiry)))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.Get(ctx, "sid", session.Namespace{"web"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "bar", rec.Data["foo"])
}

func TestStoreNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "sid", session.Namespace{"tier", "web"}, testRecord(session.NoExpiry)))

	rec, err := store.Get(ctx, "sid", session.Namespace{"tier", "api"})
	require.NoError(t, err)
	assert.Nil(t, rec, "same id under a sibling namespace is a different record")

	rec, err = store.Get(ctx, "sid", session.Namespace{"tier"})
	require.NoError(t, err)
	assert.Nil(t, rec, "parent namespace does not see child records")

	rec, err = store.Get(ctx, "sid", session.Namespace{"tier", "web"})
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestStoreMaxExpiresCap(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithMaxExpires(67))
	assert.Equal(t, int64(67), store.MaxExpires())

	require.NoError(t, store.Set(ctx, "sid", nil, testRecord(89)))
	rec, err := store.Get(ctx, "sid", nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(67), rec.Expires, "read-back reports the capped TTL")
}

func TestStoreRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "sid", nil, testRecord(session.NoExpiry)))
	require.NoError(t, store.Remove(ctx, "sid", nil))

	rec, err := store.Get(ctx, "sid", nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Remove(ctx, "sid", nil), "removing an absent key is not an error")
	require.NoError(t, store.Remove(ctx, "sid", session.Namespace{"never", "written"}))
}

func TestStoreExpiredRecordIsAbsentAndSwept(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "sid", nil, testRecord(3600)))

	// Rewind the persisted deadline instead of sleeping out a real TTL.
	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(rootBucket))
		var env envelope
		if err := json.Unmarshal(b.Get([]byte("sid")), &env); err != nil {
			return err
		}
		env.Deadline = time.Now().Add(-time.Second)
		raw, err := json.Marshal(&env)
		if err != nil {
			return err
		}
		return b.Put([]byte("sid"), raw)
	}))

	rec, err := store.Get(ctx, "sid", nil)
	require.NoError(t, err)
	assert.Nil(t, rec, "expired record reads as absent")

	// The lazy sweep removed the stale payload.
	err = store.db.View(func(tx *bbolt.Tx) error {
		assert.Nil(t, tx.Bucket([]byte(rootBucket)).Get([]byte("sid")))
		return nil
	})
	require.NoError(t, err)
}

func TestStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ids := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				id := ids[(g+i)%len(ids)]
				assert.NoError(t, store.Set(ctx, id, nil, testRecord(1)))
				_, err := store.Get(ctx, id, nil)
				assert.NoError(t, err)
				assert.NoError(t, store.Remove(ctx, id, nil))
			}
		}(g)
	}
	wg.Wait()
}

func TestStoreRegisteredRequiresPath(t *testing.T) {
	_, err := session.OpenStore("bolt", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")

	store, err := session.OpenStore("bolt", map[string]any{
		"path":        filepath.Join(t.TempDir(), "sessions.db"),
		"max_expires": 67,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(67), store.MaxExpires())
	require.NoError(t, store.(*Store).Close())
}
