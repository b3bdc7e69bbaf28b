//
// Tencent is pleased to support the open source community by making sessionstate available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// sessionstate is licensed under the Apache License Version 2.0.
//
//

package session

import "context"

// LoadContext carries context for Load hooks.
type LoadContext struct {
	Context   context.Context
	ID        string
	Namespace Namespace
}

// SaveContext carries context for Save hooks.
type SaveContext struct {
	Context   context.Context
	ID        string
	Namespace Namespace
	Record    *Record
}

// DeleteContext carries context for Delete hooks.
type DeleteContext struct {
	Context   context.Context
	ID        string
	Namespace Namespace
}

// LoadHook processes record loads with next() chain pattern.
// Call next() to fetch from storage, then optionally modify and return.
type LoadHook func(ctx *LoadContext, next func() (*Record, error)) (*Record, error)

// SaveHook processes record persists with next() chain pattern.
// Call next() to continue processing, or return directly to abort.
type SaveHook func(ctx *SaveContext, next func() error) error

// DeleteHook processes record removals with next() chain pattern.
// Call next() to continue processing, or return directly to abort.
type DeleteHook func(ctx *DeleteContext, next func() error) error

// runLoadHooks executes the Load hooks chain.
// The final hook performs the actual storage retrieval.
func runLoadHooks(hooks []LoadHook, ctx *LoadContext, final LoadHook) (*Record, error) {
	// Wrap final as a hook that ignores next (it's the terminal)
	allHooks := make([]LoadHook, 0, len(hooks)+1)
	allHooks = append(allHooks, hooks...)
	if final != nil {
		allHooks = append(allHooks, final)
	}

	if len(allHooks) == 0 {
		return nil, nil
	}

	var run func(idx int) (*Record, error)
	run = func(idx int) (*Record, error) {
		if idx >= len(allHooks) {
			return nil, nil
		}
		return allHooks[idx](ctx, func() (*Record, error) { return run(idx + 1) })
	}
	return run(0)
}

// runSaveHooks executes the Save hooks chain.
// The final hook performs the actual storage write.
func runSaveHooks(hooks []SaveHook, ctx *SaveContext, final SaveHook) error {
	// Wrap final as a hook that ignores next (it's the terminal)
	allHooks := make([]SaveHook, 0, len(hooks)+1)
	allHooks = append(allHooks, hooks...)
	if final != nil {
		allHooks = append(allHooks, final)
	}

	if len(allHooks) == 0 {
		return nil
	}

	var run func(idx int) error
	run = func(idx int) error {
		if idx >= len(allHooks) {
			return nil
		}
		return allHooks[idx](ctx, func() error { return run(idx + 1) })
	}
	return run(0)
}

// runDeleteHooks executes the Delete hooks chain.
// The final hook performs the actual storage removal.
func runDeleteHooks(hooks []DeleteHook, ctx *DeleteContext, final DeleteHook) error {
	// Wrap final as a hook that ignores next (it's the terminal)
	allHooks := make([]DeleteHook, 0, len(hooks)+1)
	allHooks = append(allHooks, hooks...)
	if final != nil {
		allHooks = append(allHooks, final)
	}

	if len(allHooks) == 0 {
		return nil
	}

	var run func(idx int) error
	run = func(idx int) error {
		if idx >= len(allHooks) {
			return nil
		}
		return allHooks[idx](ctx, func() error { return run(idx + 1) })
	}
	return run(0)
}
