package event

// Builder assembles an object Value. It is not safe for concurrent use.
//
// Example:
//
//	ev := event.NewBuilder().
//	    SetString("category", event.Design.String()).
//	    SetString("event_id", "level:boss").
//	    SetNumber("value", 3).
//	    Build()
type Builder struct {
	members []Member
	index   map[string]int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// From creates a builder seeded with the members of obj.
// Non-object values produce an empty builder.
func From(obj Value) *Builder {
	b := NewBuilder()
	return b.Merge(obj)
}

// Set adds key or replaces its value, keeping the original position.
func (b *Builder) Set(key string, v Value) *Builder {
	if i, ok := b.index[key]; ok {
		b.members[i].Value = v
		return b
	}
	b.index[key] = len(b.members)
	b.members = append(b.members, Member{Key: key, Value: v})
	return b
}

// SetString sets a string member.
func (b *Builder) SetString(key, s string) *Builder {
	return b.Set(key, String(s))
}

// SetNumber sets a numeric member.
func (b *Builder) SetNumber(key string, f float64) *Builder {
	return b.Set(key, Number(f))
}

// SetInt sets an integer member.
func (b *Builder) SetInt(key string, i int64) *Builder {
	return b.Set(key, Int(i))
}

// SetIfNotEmpty sets a string member only when s is non-empty.
func (b *Builder) SetIfNotEmpty(key, s string) *Builder {
	if s == "" {
		return b
	}
	return b.SetString(key, s)
}

// Merge copies every member of obj into the builder, overwriting existing keys.
func (b *Builder) Merge(obj Value) *Builder {
	if obj.kind != KindObject {
		return b
	}
	for _, m := range obj.members {
		b.Set(m.Key, m.Value)
	}
	return b
}

// Delete removes key if present.
func (b *Builder) Delete(key string) *Builder {
	i, ok := b.index[key]
	if !ok {
		return b
	}
	b.members = append(b.members[:i], b.members[i+1:]...)
	delete(b.index, key)
	for j := i; j < len(b.members); j++ {
		b.index[b.members[j].Key] = j
	}
	return b
}

// Has reports whether key is set.
func (b *Builder) Has(key string) bool {
	_, ok := b.index[key]
	return ok
}

// Len returns the number of members.
func (b *Builder) Len() int {
	return len(b.members)
}

// Build returns the object. The builder may keep being used afterwards
// without affecting the returned value.
func (b *Builder) Build() Value {
	cp := make([]Member, len(b.members))
	copy(cp, b.members)
	return Value{kind: KindObject, members: cp}
}
