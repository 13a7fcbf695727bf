package types

import "strings"

// TopicSeparator joins the name components of a hierarchical topic.
const TopicSeparator = "/"

const (
	// TopicStatuses receives peer lifecycle status events.
	TopicStatuses Topic = "broker/statuses"

	// TopicErrors receives peer lifecycle error events.
	TopicErrors Topic = "broker/errors"
)

// A Topic is an ordered sequence of name components joined by the
// topic separator. Topics compare by byte sequence.
type Topic string

// Split the topic into its name components.
func (t Topic) Split() []string {
	return strings.Split(string(t), TopicSeparator)
}

// Verify if the receiver is a component-aligned prefix of the given
// topic. A topic is a prefix of itself.
func (t Topic) PrefixOf(other Topic) bool {
	if t == other {
		return true
	}
	if len(t) >= len(other) {
		return false
	}
	return strings.HasPrefix(string(other), string(t)) &&
		other[len(t)] == TopicSeparator[0]
}

// A Filter is a set of topic prefixes, canonicalized so that no
// element is a prefix of another element.
type Filter []Topic

// Verify if any element of the filter is a component-aligned prefix
// of the given topic.
func (f Filter) Matches(t Topic) bool {
	for _, prefix := range f {
		if prefix.PrefixOf(t) {
			return true
		}
	}
	return false
}

// Extend inserts the given topics into the filter, keeping it
// canonical. An existing element that is a prefix of an addition
// absorbs it, while an addition that is a prefix of existing elements
// replaces them. Returns whether the canonical filter changed.
func (f *Filter) Extend(additions ...Topic) bool {
	changed := false
	for _, addition := range additions {
		if f.insert(addition) {
			changed = true
		}
	}
	return changed
}

func (f *Filter) insert(t Topic) bool {
	kept := (*f)[:0]
	removed := false
	for _, existing := range *f {
		if existing.PrefixOf(t) {
			// Already covered, nothing to do.
			return removed
		}
		if t.PrefixOf(existing) {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	*f = append(kept, t)
	return true
}

// Clone returns an independent copy of the filter.
func (f Filter) Clone() Filter {
	if f == nil {
		return nil
	}
	c := make(Filter, len(f))
	copy(c, f)
	return c
}

// Equal reports whether both filters hold the same elements,
// regardless of ordering.
func (f Filter) Equal(other Filter) bool {
	if len(f) != len(other) {
		return false
	}
	for _, t := range f {
		found := false
		for _, o := range other {
			if t == o {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
