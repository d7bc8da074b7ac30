// Package databag provee un almacén clave→valor inmutable usado como value object
// para metadata de clients, parámetros de tokens y payloads de comandos.
package databag

import "encoding/json"

// Bag is a copy-on-write parameter store. With/Without return a clone, so a bag
// threaded through a multi-step pipeline can never observe a mutation made by a
// step that later failed. The zero value is ready to use.
type Bag struct {
	values map[string]any
}

// New builds a bag from an optional seed map (the seed is copied).
func New(seed map[string]any) Bag {
	b := Bag{values: make(map[string]any, len(seed))}
	for k, v := range seed {
		b.values[k] = v
	}
	return b
}

// Has reports whether the key is present.
func (b Bag) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Get returns the value for key, or nil if absent.
func (b Bag) Get(key string) any {
	return b.values[key]
}

// GetOr returns the value for key, or def if absent.
func (b Bag) GetOr(key string, def any) any {
	if v, ok := b.values[key]; ok {
		return v
	}
	return def
}

// String returns the value for key as a string ("" if absent or not a string).
func (b Bag) String(key string) string {
	s, _ := b.values[key].(string)
	return s
}

// StringOr returns the string value for key, or def if absent/not a string.
func (b Bag) StringOr(key, def string) string {
	if s, ok := b.values[key].(string); ok {
		return s
	}
	return def
}

// Strings returns the value for key as a []string. Accepts []string or []any
// of strings (the shape JSON decoding produces).
func (b Bag) Strings(key string) []string {
	switch v := b.values[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Bool returns the value for key as a bool (false if absent or not a bool).
func (b Bag) Bool(key string) bool {
	v, _ := b.values[key].(bool)
	return v
}

// Len returns the number of keys.
func (b Bag) Len() int { return len(b.values) }

// Keys returns all keys (order unspecified).
func (b Bag) Keys() []string {
	out := make([]string, 0, len(b.values))
	for k := range b.values {
		out = append(out, k)
	}
	return out
}

// With returns a clone with key set to value. The receiver is not modified.
func (b Bag) With(key string, value any) Bag {
	nb := make(map[string]any, len(b.values)+1)
	for k, v := range b.values {
		nb[k] = v
	}
	nb[key] = value
	return Bag{values: nb}
}

// Without returns a clone with the given keys removed. The receiver is not
// modified.
func (b Bag) Without(keys ...string) Bag {
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	nb := make(map[string]any, len(b.values))
	for k, v := range b.values {
		if _, skip := drop[k]; !skip {
			nb[k] = v
		}
	}
	return Bag{values: nb}
}

// Merge returns a clone where every key of other overrides the receiver's.
func (b Bag) Merge(other Bag) Bag {
	nb := make(map[string]any, len(b.values)+len(other.values))
	for k, v := range b.values {
		nb[k] = v
	}
	for k, v := range other.values {
		nb[k] = v
	}
	return Bag{values: nb}
}

// Map returns a copy of the underlying map (safe to mutate by the caller).
func (b Bag) Map() map[string]any {
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// MarshalJSON serializa el bag como objeto plano (para backends que persisten
// entidades como JSON).
func (b Bag) MarshalJSON() ([]byte, error) {
	if b.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.values)
}

// UnmarshalJSON reconstruye el bag desde un objeto plano.
func (b *Bag) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*b = New(m)
	return nil
}
