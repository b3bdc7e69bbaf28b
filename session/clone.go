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
	"time"
)

// CloneData returns a deep structural copy of d. Mutating the copy never
// affects d and vice versa. Cloning covers the closed set of payload kinds
// (scalars, byte/string/any slices, string-keyed maps, time values); any
// other kind fails with ErrUnclonable rather than being copied by reference.
func CloneData(d Data) (Data, error) {
	if d == nil {
		return nil, nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		cv, err := cloneValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = cv
	}
	return out, nil
}

func cloneValue(v any) (any, error) {
	switch val := v.(type) {
	case nil,
		bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time, time.Duration:
		return val, nil
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out, nil
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			ci, err := cloneValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = ci
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out, nil
	case Data:
		return CloneData(val)
	case map[string]any:
		// Keep the dynamic type: a map[string]any must not come back as
		// Data, or structural comparison of clones against originals breaks.
		cloned, err := CloneData(Data(val))
		if err != nil {
			return nil, err
		}
		return map[string]any(cloned), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnclonable, v)
	}
}
