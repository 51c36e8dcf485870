package kord

// Filter is a predicate over sessions. Scopes and listeners are gated by
// composed filters; composition always derives a new context and never
// mutates the parent, so a shared base behaves correctly under multiple
// derivations.
type Filter func(*Session) bool

// Match evaluates the context's composed filter. A context without an
// explicit filter matches everything.
func (c *Context) Match(s *Session) bool {
	if c.filter == nil {
		return true
	}
	return c.filter(s)
}

// FilterFunc returns the composed filter as a standalone predicate,
// usable as the argument to Union/Intersect/Exclude on another context.
func (c *Context) FilterFunc() Filter {
	return c.Match
}

// Any derives a context that matches every session.
func (c *Context) Any() *Context {
	return c.extend(func(*Session) bool { return true })
}

// Never derives a context that matches no session.
func (c *Context) Never() *Context {
	return c.extend(func(*Session) bool { return false })
}

// Union derives a context matching sessions that match either this
// context or the given filter.
func (c *Context) Union(filter Filter) *Context {
	base := c.Match
	return c.extend(func(s *Session) bool { return base(s) || filter(s) })
}

// Intersect derives a context matching sessions that match both this
// context and the given filter.
func (c *Context) Intersect(filter Filter) *Context {
	base := c.Match
	return c.extend(func(s *Session) bool { return base(s) && filter(s) })
}

// Exclude derives a context matching sessions that match this context
// but not the given filter.
func (c *Context) Exclude(filter Filter) *Context {
	base := c.Match
	return c.extend(func(s *Session) bool { return base(s) && !filter(s) })
}

// property narrows by one session field: with values it requires
// membership, without values it requires the field to be non-empty.
func property(c *Context, get func(*Session) string, values ...string) *Context {
	return c.Intersect(func(s *Session) bool {
		v := get(s)
		if len(values) == 0 {
			return v != ""
		}
		for _, want := range values {
			if v == want {
				return true
			}
		}
		return false
	})
}

// User narrows to sessions from the given user ids.
func (c *Context) User(values ...string) *Context {
	return property(c, func(s *Session) string { return s.UserID }, values...)
}

// Self narrows to sessions delivered to the given bot ids.
func (c *Context) Self(values ...string) *Context {
	return property(c, func(s *Session) string { return s.SelfID }, values...)
}

// Guild narrows to sessions from the given guilds.
func (c *Context) Guild(values ...string) *Context {
	return property(c, func(s *Session) string { return s.GuildID }, values...)
}

// Channel narrows to sessions from the given channels.
func (c *Context) Channel(values ...string) *Context {
	return property(c, func(s *Session) string { return s.ChannelID }, values...)
}

// Private narrows to direct-message sessions, optionally from the given
// user ids. Private sessions carry the chat code in GuildID, so the
// channel kind is what distinguishes them, not guild emptiness.
func (c *Context) Private(values ...string) *Context {
	base := c.Intersect(func(s *Session) bool {
		return s.Data != nil && s.Data.ChannelType == ChannelTypePerson
	})
	return property(base, func(s *Session) string { return s.UserID }, values...)
}
