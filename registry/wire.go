package registry

import (
	"encoding/json"
	"fmt"
	"sync"
)

// wireCache holds the serialized byte form and dict form of a handler
// descriptor. Both are computed exactly once per (re)compute; reads of the
// dict return deep copies so callers may mutate.
type wireCache struct {
	mu   sync.RWMutex
	raw  json.RawMessage
	tmpl map[string]any
}

func (w *wireCache) compute(desc any) error {
	b, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("serialize descriptor: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("decode descriptor: %w", err)
	}
	w.mu.Lock()
	w.raw = b
	w.tmpl = m
	w.mu.Unlock()
	return nil
}

func (w *wireCache) bytes() json.RawMessage {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.raw
}

func (w *wireCache) dict() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return deepCopyMap(w.tmpl)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
