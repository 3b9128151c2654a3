package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GroupRef references a group either by numeric id or by public username
type GroupRef struct {
	ID       int64
	Username string
}

// IsAlias reports whether the reference is a username
func (r GroupRef) IsAlias() bool {
	return r.Username != ""
}

func (r GroupRef) String() string {
	if r.IsAlias() {
		return "@" + r.Username
	}
	return strconv.FormatInt(r.ID, 10)
}

// MarshalJSON writes ids as numbers and aliases as "@name"
func (r GroupRef) MarshalJSON() ([]byte, error) {
	if r.IsAlias() {
		return json.Marshal("@" + r.Username)
	}
	return []byte(strconv.FormatInt(r.ID, 10)), nil
}

// UnmarshalJSON accepts a number, a numeric string or an alias string
func (r *GroupRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '"' {
		id, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid group id %s", data)
		}
		*r = GroupRef{ID: id}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ref, err := ParseGroupRef(s)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// ParseGroupRef parses "123", "-100123", "@name", "name" or "https://t.me/name"
func ParseGroupRef(s string) (GroupRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return GroupRef{}, fmt.Errorf("empty group reference")
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return GroupRef{ID: id}, nil
	}

	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimSuffix(s, "/")
	if s == "" || strings.ContainsAny(s, " /") {
		return GroupRef{}, fmt.Errorf("invalid group reference %q", s)
	}
	return GroupRef{Username: strings.ToLower(s)}, nil
}

// NormalizeRefs de-duplicates refs and orders them: ids ascending, then aliases
func NormalizeRefs(refs []GroupRef) []GroupRef {
	seen := make(map[GroupRef]struct{}, len(refs))
	out := make([]GroupRef, 0, len(refs))
	for _, r := range refs {
		if r.IsAlias() {
			r = GroupRef{Username: strings.ToLower(r.Username)}
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsAlias() != b.IsAlias() {
			return !a.IsAlias()
		}
		if a.IsAlias() {
			return a.Username < b.Username
		}
		return a.ID < b.ID
	})
	return out
}

// SameRefs compares two selections as sets
func SameRefs(a, b []GroupRef) bool {
	a, b = NormalizeRefs(a), NormalizeRefs(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SplitRefs separates numeric ids from aliases. Both results are non-nil.
func SplitRefs(refs []GroupRef) ([]int64, []string) {
	ids := make([]int64, 0, len(refs))
	aliases := make([]string, 0)
	for _, r := range NormalizeRefs(refs) {
		if r.IsAlias() {
			aliases = append(aliases, r.Username)
		} else {
			ids = append(ids, r.ID)
		}
	}
	return ids, aliases
}
