package reroll

import (
	mapset "github.com/deckarep/golang-set"
)

// InstanceID identifies one running instance (container) of a service.
type InstanceID string

// InstanceSet is the set of instances returned by a single query of the
// runtime. It keeps the order the runtime listed them in.
type InstanceSet []InstanceID

func (s InstanceSet) toSet() mapset.Set {
	set := mapset.NewThreadUnsafeSet()
	for _, id := range s {
		set.Add(id)
	}
	return set
}

// Difference returns the instances of s that are not in other, in the order
// they appear in s.
func (s InstanceSet) Difference(other InstanceSet) InstanceSet {
	exclude := other.toSet()
	diff := InstanceSet{}
	for _, id := range s {
		if !exclude.Contains(id) {
			diff = append(diff, id)
		}
	}
	return diff
}

// Contains reports whether id is a member of s.
func (s InstanceSet) Contains(id InstanceID) bool {
	return s.toSet().Contains(id)
}

// Strings returns the ids as plain strings, e.g. for use as command arguments.
func (s InstanceSet) Strings() []string {
	strs := make([]string, 0, len(s))
	for _, id := range s {
		strs = append(strs, string(id))
	}
	return strs
}
