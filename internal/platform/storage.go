// Package platform implements spec.md §4.K: the in-memory mock tables a
// headless test harness substitutes for real browser I/O — Storage,
// fetch, matchMedia, clipboard, confirm/prompt/alert, and location
// navigation — adapted in-house from cryguy-worker's webapi mock tables
// (internal/webapi/storage.go, internal/webapi/fetch.go) the way
// SPEC_FULL.md §2 describes: same table-plus-call-log shape, mocked
// rather than backed by real network or KV.
package platform

// Pair is one Storage entry, preserving insertion order like the
// `storage_pairs` list the original implementation keeps per spec.md §4.K
// and its original_source supplement (storage_pairs_and_members.rs).
type Pair struct {
	Name  string
	Value string
}

// Storage models localStorage/sessionStorage: an insertion-ordered list of
// string pairs with getItem/setItem/removeItem/clear/key/length semantics.
type Storage struct {
	pairs []Pair
}

// NewStorage constructs an empty Storage, optionally seeded (used by
// `from_html_with_local_storage`).
func NewStorage(seed []Pair) *Storage {
	s := &Storage{}
	for _, p := range seed {
		s.SetItem(p.Name, p.Value)
	}
	return s
}

// GetItem returns (value, true) if key is present, else ("", false) — the
// caller maps the false case to the Storage API's `null`.
func (s *Storage) GetItem(key string) (string, bool) {
	for _, p := range s.pairs {
		if p.Name == key {
			return p.Value, true
		}
	}
	return "", false
}

// SetItem inserts key with value, or updates it in place if already present
// (insertion order is preserved on update, matching the original).
func (s *Storage) SetItem(key, value string) {
	for i, p := range s.pairs {
		if p.Name == key {
			s.pairs[i].Value = value
			return
		}
	}
	s.pairs = append(s.pairs, Pair{Name: key, Value: value})
}

// RemoveItem deletes key if present; a no-op otherwise.
func (s *Storage) RemoveItem(key string) {
	for i, p := range s.pairs {
		if p.Name == key {
			s.pairs = append(s.pairs[:i], s.pairs[i+1:]...)
			return
		}
	}
}

// Clear empties the store.
func (s *Storage) Clear() { s.pairs = nil }

// Key returns the name at index (insertion order), or ("", false) if out
// of range, per the Storage.key(n) contract.
func (s *Storage) Key(index int) (string, bool) {
	if index < 0 || index >= len(s.pairs) {
		return "", false
	}
	return s.pairs[index].Name, true
}

// Length reports the number of stored pairs, backing Storage.length.
func (s *Storage) Length() int { return len(s.pairs) }

// All returns a copy of the current pairs in insertion order, used to seed
// a fresh Storage from a prior one (reload) or for test introspection.
func (s *Storage) All() []Pair {
	out := make([]Pair, len(s.pairs))
	copy(out, s.pairs)
	return out
}
