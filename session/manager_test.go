//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statehaus/sessionstate/session"
	"github.com/statehaus/sessionstate/store/memory"
)

func TestNewManagerRequiresStore(t *testing.T) {
	_, err := session.NewManager()
	assert.ErrorIs(t, err, session.ErrStoreRequired)
}

func TestNewManagerDefaults(t *testing.T) {
	store := memory.New()
	mgr, err := session.NewManager(session.WithStore(store))
	require.NoError(t, err)

	assert.Equal(t, session.NoExpiry, mgr.DefaultExpires())
	assert.Empty(t, mgr.Namespace())
	assert.Equal(t, session.Store(store), mgr.Store())
}

func TestNewManagerByStoreName(t *testing.T) {
	mgr, err := session.NewManager(
		session.WithStoreName("memory", map[string]any{"max_expires": 67}),
		session.WithDefaultExpires(300),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(300), mgr.DefaultExpires())
	assert.Equal(t, int64(67), mgr.Store().MaxExpires())
}

func TestNewManagerUnknownStoreName(t *testing.T) {
	_, err := session.NewManager(session.WithStoreName("no-such-store", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-store")
}

func TestManagerNewStateIDs(t *testing.T) {
	mgr, err := session.NewManager(session.WithStore(memory.New()))
	require.NoError(t, err)

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		s := mgr.NewState("")
		require.NotEmpty(t, s.ID())
		_, dup := seen[s.ID()]
		require.False(t, dup, "manager-minted ids must not collide")
		seen[s.ID()] = struct{}{}
	}

	explicit := mgr.NewState("my-session")
	assert.Equal(t, "my-session", explicit.ID())
}

func TestManagerCloneData(t *testing.T) {
	mgr, err := session.NewManager(session.WithStore(memory.New()))
	require.NoError(t, err)

	original := session.Data{"nested": map[string]any{"count": 7}}
	clone, err := mgr.CloneData(original)
	require.NoError(t, err)

	clone["nested"].(map[string]any)["count"] = 8
	assert.Equal(t, 7, original["nested"].(map[string]any)["count"])
}
