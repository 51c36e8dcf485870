package kord

import (
	"fmt"
	"strings"

	"github.com/kooklab/kord/pkg/logger"
)

// CheckerPermission names the checker slot the help command consults
// when deciding whether to list a command.
const CheckerPermission = "PERMISSION"

// Checker is an ordered command guard. Returning false silently vetoes
// execution; returning any other non-nil value becomes ambient context
// for the action (Session.Internal).
type Checker func(bot *Bot, s *Session) (interface{}, error)

// CommandAction handles a resolved command. A non-empty string result is
// sent as a reply quoting the original message.
type CommandAction func(argv *Argv, bot *Bot, s *Session) (string, error)

type namedChecker struct {
	name string
	fn   Checker
}

// CommandInstance is one registered command: a name pattern with
// <required> and [optional] positional placeholders, a flag schema,
// ordered checkers and an action.
type CommandInstance struct {
	Name        string
	Description string
	Aliases     []string

	flags    Flags
	required []string
	optional []string
	checkers []namedChecker
	action   CommandAction
	isPublic bool
}

func newCommand(pattern, description string, flags Flags) *CommandInstance {
	fields := strings.Fields(pattern)
	cmd := &CommandInstance{
		Description: description,
		flags:       flags,
		isPublic:    true,
	}
	if len(fields) > 0 {
		cmd.Name = fields[0]
		for _, param := range fields[1:] {
			switch {
			case strings.HasPrefix(param, "<") && strings.HasSuffix(param, ">"):
				cmd.required = append(cmd.required, param[1:len(param)-1])
			case strings.HasPrefix(param, "[") && strings.HasSuffix(param, "]"):
				cmd.optional = append(cmd.optional, param[1:len(param)-1])
			}
		}
	}
	return cmd
}

// Action sets the command handler.
func (c *CommandInstance) Action(fn CommandAction) *CommandInstance {
	c.action = fn
	return c
}

// Alias adds alternate names resolving to this command.
func (c *CommandInstance) Alias(aliases ...string) *CommandInstance {
	c.Aliases = append(c.Aliases, aliases...)
	return c
}

// AddChecker appends a named guard; guards run in registration order
// before every execution.
func (c *CommandInstance) AddChecker(name string, fn Checker) *CommandInstance {
	c.checkers = append(c.checkers, namedChecker{name: name, fn: fn})
	return c
}

// AddPermissionChecker installs fn in the permission slot the help
// listing consults.
func (c *CommandInstance) AddPermissionChecker(fn Checker) *CommandInstance {
	return c.AddChecker(CheckerPermission, fn)
}

// Private hides the command from the help listing.
func (c *CommandInstance) Private() *CommandInstance {
	c.isPublic = false
	return c
}

// DeveloperOnly restricts the command to the configured developer
// allowlist and hides it from help.
func (c *CommandInstance) DeveloperOnly(developerIDs []string) *CommandInstance {
	c.isPublic = false
	return c.AddChecker("developer", func(bot *Bot, s *Session) (interface{}, error) {
		for _, id := range developerIDs {
			if id == s.UserID {
				return true, nil
			}
		}
		return false, nil
	})
}

// GuildAdminOnly restricts the command to members holding the guild
// admin permission bit, resolved through the role list API.
func (c *CommandInstance) GuildAdminOnly() *CommandInstance {
	c.isPublic = false
	return c.AddChecker("admin", func(bot *Bot, s *Session) (interface{}, error) {
		roles, err := bot.GuildRoleList(s.GuildID)
		if err != nil {
			return nil, fmt.Errorf("fetch guild roles: %w", err)
		}
		for _, userRole := range s.Data.ExtraField("author.roles").Array() {
			for _, role := range roles {
				if role.RoleID == userRole.Int() && HasPermission(role.Permissions, PermissionAdmin) {
					return true, nil
				}
			}
		}
		if _, err := bot.SendMessage(s.ChannelID, "You don't have permission to do that."); err != nil {
			logger.ErrorCF("command", "Failed to send permission reply",
				map[string]interface{}{"command": c.Name, "error": err.Error()})
		}
		return false, nil
	})
}

// permissionChecker returns the checker in the permission slot, if any.
func (c *CommandInstance) permissionChecker() Checker {
	for _, nc := range c.checkers {
		if nc.name == CheckerPermission {
			return nc.fn
		}
	}
	return nil
}

// execute runs checkers, parses args against the declared shape and
// invokes the action. The returned bool reports whether the action ran.
func (c *CommandInstance) execute(args string, bot *Bot, s *Session) bool {
	for _, nc := range c.checkers {
		result, err := nc.fn(bot, s)
		if err != nil {
			logger.ErrorCF("command", "Checker failed",
				map[string]interface{}{"command": c.Name, "checker": nc.name, "error": err.Error()})
			return false
		}
		if passed, ok := result.(bool); ok {
			if !passed {
				return false
			}
			continue
		}
		if result != nil {
			s.Internal = result
		}
	}

	positional, flagValues, err := parseFlags(Tokenize(args), c.flags)
	if err != nil {
		c.reply(bot, s, err.Error())
		return false
	}

	if len(positional) < len(c.required) {
		missing := len(c.required) - len(positional)
		c.reply(bot, s, fmt.Sprintf("This command takes %d required parameters; %d missing.",
			len(c.required), missing))
		return false
	}

	argv := &Argv{Params: make(map[string]string), Flags: flagValues}
	for i, name := range c.required {
		argv.Params[name] = positional[i]
	}
	rest := positional[len(c.required):]
	for i, name := range c.optional {
		if i < len(rest) {
			argv.Params[name] = rest[i]
		}
	}
	if len(rest) > len(c.optional) {
		argv.Rest = rest[len(c.optional):]
	}

	if c.action == nil {
		return false
	}
	result, err := c.action(argv, bot, s)
	if err != nil {
		logger.ErrorCF("command", "Action failed",
			map[string]interface{}{"command": c.Name, "error": err.Error()})
		return false
	}
	if result != "" {
		c.reply(bot, s, result)
	}
	return true
}

func (c *CommandInstance) reply(bot *Bot, s *Session, content string) {
	if bot == nil {
		return
	}
	if _, err := bot.SendMessage(s.ChannelID, content, WithQuote(s.Data.MsgID)); err != nil {
		logger.ErrorCF("command", "Failed to send reply",
			map[string]interface{}{"command": c.Name, "error": err.Error()})
	}
}

// usage renders the declared shape for help output.
func (c *CommandInstance) usage() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	for _, p := range c.required {
		fmt.Fprintf(&sb, " <%s>", p)
	}
	for _, p := range c.optional {
		fmt.Fprintf(&sb, " [%s]", p)
	}
	return sb.String()
}
