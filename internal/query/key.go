package query

import (
	"fmt"
	"strings"
)

// Key identifies a cache entry. Keys are composite: the first segment names
// the data set ("posts", "post") and the rest parameterize it.
type Key []string

// NewKey builds a Key from arbitrary parts, formatting each with fmt.Sprint.
func NewKey(parts ...any) Key {
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = fmt.Sprint(p)
	}
	return k
}

// String returns the canonical form used as the store's map key.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// HasPrefix reports whether every segment of prefix matches the leading
// segments of k. An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
