//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

package session

import "errors"

var (
	// ErrStoreRequired is returned by NewManager when no store is configured.
	ErrStoreRequired = errors.New("session: store is required")

	// ErrDirty is returned by Reload when the state has unsaved
	// modifications. Use ForceReload to discard them.
	ErrDirty = errors.New("session: state has unsaved modifications")

	// ErrNotStored is returned by Delete when the state was never
	// successfully saved or resumed. Use ForceDelete to remove
	// unconditionally.
	ErrNotStored = errors.New("session: state was never stored")

	// ErrSaveMiss is returned by Save when the record no longer exists in
	// the store, typically because it was deleted elsewhere. Use ForceSave
	// to overwrite regardless.
	ErrSaveMiss = errors.New("session: record no longer exists in store")

	// ErrUnclonable is returned by CloneData for values outside the
	// supported container and scalar kinds.
	ErrUnclonable = errors.New("session: value is not clonable")
)
