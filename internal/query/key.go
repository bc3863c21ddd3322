package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cached query. Two keys address the same entry when their
// parts are structurally equal, so ["getFriends", "u1"] built in two places
// shares one entry.
type Key []any

// NewKey builds a key from the provided parts.
func NewKey(parts ...any) Key {
	return Key(parts)
}

// String renders the key for logs, e.g. "getFriends:u1".
func (k Key) String() string {
	parts := make([]string, 0, len(k))
	for _, part := range k {
		parts = append(parts, fmt.Sprint(part))
	}
	return strings.Join(parts, ":")
}

// HasPrefix reports whether the leading parts of the key equal prefix.
func (k Key) HasPrefix(prefix ...any) bool {
	if len(prefix) > len(k) {
		return false
	}
	return Key(prefix).hash() == k[:len(prefix)].hash()
}

// Equal reports whether two keys address the same entry.
func (k Key) Equal(other Key) bool {
	return k.hash() == other.hash()
}

func (k Key) hash() string {
	if len(k) == 0 {
		return "[]"
	}
	b, err := json.Marshal([]any(k))
	if err != nil {
		return fmt.Sprintf("%#v", []any(k))
	}
	return string(b)
}
