package kord

import (
	"github.com/tidwall/gjson"
)

// Scratch keys the command router stores per-dispatch values under.
const (
	ScratchCommandInput = "command_input"
	ScratchCommand      = "command"
)

// Session is the ephemeral per-event context built by the normalizer and
// read by every downstream stage. It is never persisted.
type Session struct {
	UserID    string
	SelfID    string
	GuildID   string
	ChannelID string

	// Data is the decoded event body; Data.Extra stays raw.
	Data *Data

	// Internal carries ambient context returned by command checkers.
	Internal interface{}

	scratch map[string]interface{}
}

// Extra parses the raw extra payload for ad-hoc queries.
func (s *Session) Extra() gjson.Result {
	return gjson.ParseBytes(s.Data.Extra)
}

// SetScratch stores a per-dispatch value on the session.
func (s *Session) SetScratch(key string, v interface{}) {
	if s.scratch == nil {
		s.scratch = make(map[string]interface{})
	}
	s.scratch[key] = v
}

// Scratch returns a per-dispatch value previously stored on the session.
func (s *Session) Scratch(key string) (interface{}, bool) {
	v, ok := s.scratch[key]
	return v, ok
}

// CommandInput returns the command text under parse, if any.
func (s *Session) CommandInput() string {
	if v, ok := s.scratch[ScratchCommandInput]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// Command returns the command instance under execution, if any.
func (s *Session) Command() *CommandInstance {
	if v, ok := s.scratch[ScratchCommand]; ok {
		if cmd, ok := v.(*CommandInstance); ok {
			return cmd
		}
	}
	return nil
}
