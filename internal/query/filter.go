package query

// Key identifies a cached query. Two keys are the same query when their
// hashes are equal.
type Key interface {
	Hash() string
	Entity() string
}

// Filter selects cached queries. Empty fields match everything.
type Filter struct {
	Entity    string
	Hashes    []string
	Predicate func(Key) bool
}

// Match reports whether key is selected by the filter.
func (f Filter) Match(key Key) bool {
	if key == nil {
		return false
	}
	if f.Entity != "" && key.Entity() != f.Entity {
		return false
	}
	if len(f.Hashes) > 0 {
		hash := key.Hash()
		found := false
		for _, h := range f.Hashes {
			if h == hash {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Predicate != nil && !f.Predicate(key) {
		return false
	}
	return true
}
