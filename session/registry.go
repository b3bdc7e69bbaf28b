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
	"fmt"
	"sort"
	"sync"
)

// Initer constructs a Store from backend-specific options. Every backend
// honors the universal "max_expires" option (seconds, integer).
type Initer func(opts map[string]any) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Initer)
)

// RegisterStore makes a store backend available under a short symbolic name.
// Backends call it from their init function. It panics if the name is already
// taken or the initer is nil.
func RegisterStore(name string, initer Initer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if initer == nil {
		panic("session: RegisterStore initer is nil")
	}
	if _, dup := registry[name]; dup {
		panic("session: RegisterStore called twice for store " + name)
	}
	registry[name] = initer
}

// OpenStore constructs a registered store backend by name.
func OpenStore(name string, opts map[string]any) (Store, error) {
	registryMu.RLock()
	initer, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session: unknown store %q (registered: %v)", name, StoreNames())
	}
	return initer(opts)
}

// StoreNames returns the names of all registered store backends, sorted.
func StoreNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OptInt64 reads an integer option from a backend option map, accepting the
// integer kinds a literal or decoded config may produce.
func OptInt64(opts map[string]any, key string) (int64, bool) {
	switch v := opts[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// OptString reads a string option from a backend option map.
func OptString(opts map[string]any, key string) (string, bool) {
	v, ok := opts[key].(string)
	return v, ok
}
