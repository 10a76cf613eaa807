package nostr

// Tag is an ordered, non-empty sequence of strings; its first element is
// the tag name (spec.md §3). It is not a set — repeated elements are
// legal — matching the teacher's pkg/nostr/tag.T.
type Tag []string

// Name returns the tag's first element, or "" if empty.
func (t Tag) Name() string {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Value returns the tag's second element, or "" if too short.
func (t Tag) Value() string {
	if len(t) > 1 {
		return t[1]
	}
	return ""
}

func (t Tag) Clone() Tag {
	if t == nil {
		return nil
	}
	c := make(Tag, len(t))
	copy(c, t)
	return c
}

// Tags is an ordered sequence of Tag, matching spec.md §3.
type Tags []Tag

// GetFirst returns the first tag named name, or nil.
func (ts Tags) GetFirst(name string) Tag {
	for _, t := range ts {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// GetAll returns every tag named name, in order.
func (ts Tags) GetAll(name string) Tags {
	var out Tags
	for _, t := range ts {
		if t.Name() == name {
			out = append(out, t)
		}
	}
	return out
}

// ContainsAny reports whether any tag named name has a value in values.
func (ts Tags) ContainsAny(name string, values []string) bool {
	for _, t := range ts {
		if t.Name() != name || len(t) < 2 {
			continue
		}
		for _, v := range values {
			if t[1] == v {
				return true
			}
		}
	}
	return false
}

func (ts Tags) Clone() Tags {
	if ts == nil {
		return nil
	}
	c := make(Tags, len(ts))
	for i, t := range ts {
		c[i] = t.Clone()
	}
	return c
}
