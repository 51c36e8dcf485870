package kord

import (
	"fmt"
	"strings"
)

// Tokenize splits an argument string into tokens with double-quote
// grouping and backslash escaping.
func Tokenize(value string) []string {
	var args []string
	var arg strings.Builder
	inQuotes := false
	escape := false

	for _, r := range value {
		switch {
		case escape:
			arg.WriteRune(r)
			escape = false
		case r == '\\':
			escape = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			if arg.Len() > 0 {
				args = append(args, arg.String())
				arg.Reset()
			}
		default:
			arg.WriteRune(r)
		}
	}
	if arg.Len() > 0 {
		args = append(args, arg.String())
	}
	return args
}

// FlagType selects how a declared flag consumes tokens.
type FlagType int

const (
	// FlagString consumes the next token (or the =value suffix).
	FlagString FlagType = iota
	// FlagBool is a bare switch.
	FlagBool
)

// FlagSpec declares one command flag.
type FlagSpec struct {
	Type        FlagType
	Alias       string
	Description string
}

// Flags is a command's declared flag schema, keyed by long name.
type Flags map[string]FlagSpec

// Argv is the parse result handed to a command action.
type Argv struct {
	// Params maps declared positional placeholders to their tokens.
	Params map[string]string
	// Flags maps declared flag names to string values or bool switches.
	Flags map[string]interface{}
	// Rest holds positional tokens beyond the declared placeholders.
	Rest []string
}

// Param returns a named positional value.
func (a *Argv) Param(name string) string {
	return a.Params[name]
}

// Flag returns a string flag value.
func (a *Argv) Flag(name string) string {
	if v, ok := a.Flags[name].(string); ok {
		return v
	}
	return ""
}

// Bool returns a boolean flag value.
func (a *Argv) Bool(name string) bool {
	if v, ok := a.Flags[name].(bool); ok {
		return v
	}
	return false
}

// parseFlags separates declared flags from positional tokens. An
// undeclared flag is a validation failure surfaced to the user, not an
// internal error.
func parseFlags(tokens []string, schema Flags) (positional []string, values map[string]interface{}, err error) {
	values = make(map[string]interface{})

	resolve := func(name string) (string, FlagSpec, bool) {
		if spec, ok := schema[name]; ok {
			return name, spec, true
		}
		for long, spec := range schema {
			if spec.Alias != "" && spec.Alias == name {
				return long, spec, true
			}
		}
		return "", FlagSpec{}, false
	}

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if !strings.HasPrefix(token, "-") || token == "-" || token == "--" {
			positional = append(positional, token)
			continue
		}

		name := strings.TrimLeft(token, "-")
		var inline string
		hasInline := false
		if idx := strings.IndexByte(name, '='); idx >= 0 {
			inline = name[idx+1:]
			name = name[:idx]
			hasInline = true
		}

		long, spec, ok := resolve(name)
		if !ok {
			return nil, nil, fmt.Errorf("unknown flag --%s", name)
		}

		switch spec.Type {
		case FlagBool:
			values[long] = true
		default:
			if hasInline {
				values[long] = inline
			} else if i+1 < len(tokens) {
				i++
				values[long] = tokens[i]
			} else {
				return nil, nil, fmt.Errorf("flag --%s requires a value", long)
			}
		}
	}
	return positional, values, nil
}
