package kord

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/kooklab/kord/pkg/config"
	"github.com/kooklab/kord/pkg/logger"
)

// likelyThreshold is the normalized edit-distance similarity floor below
// which fuzzy suggestions are suppressed.
const likelyThreshold = 0.6

// HelpContent documents one command for the help registry.
type HelpContent struct {
	Description string
	Required    map[string]string
	Optional    map[string]string
	Flags       map[string]string
}

// HelpMessages maps command names to their help content.
type HelpMessages map[string]HelpContent

type commandEntry struct {
	ctx *Context
	cmd *CommandInstance
}

// Commander resolves command-shaped messages against the registered
// table. Commands are scope-bound: registration order decides ties and
// scope disposal removes them.
type Commander struct {
	app *App
	cfg config.CommandConfig

	mu      sync.RWMutex
	entries []*commandEntry

	helpMu sync.RWMutex
	help   HelpMessages
}

func newCommander(root *Context, cfg config.CommandConfig) *Commander {
	cmd := &Commander{
		app: root.app,
		cfg: cfg,
		help: HelpMessages{
			"help": {Description: "Show command help", Optional: map[string]string{"command": "command name"}},
		},
	}
	root.app.commander = cmd

	// Prepended so commands resolve before ordinary middleware.
	root.Middleware(cmd.parserMiddleware, true)
	cmd.registerBuiltins(root)
	return cmd
}

// Prefix returns the configured command prefix.
func (cm *Commander) Prefix() string {
	return cm.cfg.Prefix
}

// command registers a new command against the given context's scope.
// First registration wins name ties among commands visible to a session.
func (cm *Commander) command(c *Context, pattern, description string, flags Flags) *CommandInstance {
	cmd := newCommand(pattern, description, flags)
	entry := &commandEntry{ctx: c, cmd: cmd}

	cm.mu.Lock()
	cm.entries = append(cm.entries, entry)
	cm.mu.Unlock()

	c.scope.AddDisposable(func() {
		cm.mu.Lock()
		defer cm.mu.Unlock()
		for i, e := range cm.entries {
			if e == entry {
				cm.entries = append(cm.entries[:i], cm.entries[i+1:]...)
				return
			}
		}
	})
	return cmd
}

// all returns every registered command in registration order.
func (cm *Commander) all() []*CommandInstance {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*CommandInstance, 0, len(cm.entries))
	for _, e := range cm.entries {
		out = append(out, e.cmd)
	}
	return out
}

// visible returns the commands whose scope filter accepts the session.
func (cm *Commander) visible(s *Session) []*CommandInstance {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*CommandInstance, 0, len(cm.entries))
	for _, e := range cm.entries {
		if e.ctx.Match(s) {
			out = append(out, e.cmd)
		}
	}
	return out
}

func (cm *Commander) addHelp(messages HelpMessages) {
	cm.helpMu.Lock()
	defer cm.helpMu.Unlock()
	for name, content := range messages {
		cm.help[name] = content
	}
}

// parserMiddleware gives command-shaped messages priority over ordinary
// middleware: non-prefixed content just delegates.
func (cm *Commander) parserMiddleware(bot *Bot, s *Session, next Next) (string, error) {
	if !strings.HasPrefix(s.Data.Content, cm.cfg.Prefix) {
		return next()
	}

	suggestions, matched := cm.parseAndExecute(bot, s, "")
	if matched {
		return "", nil
	}

	if len(suggestions) > 0 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Similar commands (prefix %q):\n", cm.cfg.Prefix)
		for _, cmd := range suggestions {
			fmt.Fprintf(&sb, "%s%s - %s\n", cm.cfg.Prefix, cmd.usage(), cmd.Description)
		}
		return strings.TrimRight(sb.String(), "\n"), nil
	}

	if cm.cfg.DisableNotFoundMessage {
		return "", nil
	}
	// Give subscribers a chance to intercept before the default reply.
	if resp := cm.app.root.Bail(EventCommandNotFound, bot, s); resp != nil {
		if reply, ok := resp.(string); ok && reply != "" {
			return reply, nil
		}
		return "", nil
	}
	return "No such command.", nil
}

// parseAndExecute resolves input against the visible command table.
// matched reports that a command was resolved (or parsing was vetoed);
// otherwise the returned slice holds fuzzy suggestions, possibly empty.
func (cm *Commander) parseAndExecute(bot *Bot, s *Session, input string) (suggestions []*CommandInstance, matched bool) {
	if input == "" {
		input = strings.TrimPrefix(s.Data.Content, cm.cfg.Prefix)
	}

	// The before-parse gate may rewrite the input or cancel parsing.
	s.SetScratch(ScratchCommandInput, input)
	switch resp := cm.app.root.Bail(EventBeforeParse, bot, s).(type) {
	case string:
		input = resp
	case bool:
		if !resp {
			return nil, true
		}
	}

	name := input
	args := ""
	if idx := strings.IndexByte(input, ' '); idx >= 0 {
		name = input[:idx]
		args = input[idx+1:]
	}

	var candidates []*CommandInstance
	for _, cmd := range cm.visible(s) {
		if cmd.Name == name || containsString(cmd.Aliases, name) {
			cm.runMatched(cmd, args, bot, s)
			return nil, true
		}
		if !cm.cfg.DisableLikelyCommand {
			candidates = append(candidates, cmd)
		}
	}

	return likelyCommands(name, candidates), false
}

// runMatched gates execution behind the before-execute event, then runs
// the command and announces successful execution.
func (cm *Commander) runMatched(cmd *CommandInstance, args string, bot *Bot, s *Session) {
	s.SetScratch(ScratchCommand, cmd)
	if resp := cm.app.root.Serial(EventBeforeExecute, bot, s); resp != nil {
		if reply, ok := resp.(string); ok && reply != "" {
			cmd.reply(bot, s, reply)
		}
		return
	}
	if cmd.execute(args, bot, s) {
		cm.app.root.Parallel(EventCommandExecute, bot, s)
	}
}

// likelyCommands ranks candidates by normalized edit-distance
// similarity, keeping those at or above the threshold.
func likelyCommands(name string, candidates []*CommandInstance) []*CommandInstance {
	type scored struct {
		cmd   *CommandInstance
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, cmd := range candidates {
		if score := similarity(name, cmd.Name); score >= likelyThreshold {
			ranked = append(ranked, scored{cmd: cmd, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]*CommandInstance, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.cmd)
	}
	return out
}

// similarity maps edit distance onto [0,1], 1 meaning identical.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// registerBuiltins installs the help and inspect commands on the root
// scope.
func (cm *Commander) registerBuiltins(root *Context) {
	root.Command("help [command]", "Show command help", nil).Action(
		func(argv *Argv, bot *Bot, s *Session) (string, error) {
			visible := cm.visible(s)

			target := argv.Param("command")
			if target == "" {
				return cm.listHelp(visible, bot, s), nil
			}

			for _, cmd := range visible {
				if cmd.Name != target && !containsString(cmd.Aliases, target) {
					continue
				}
				if checker := cmd.permissionChecker(); checker != nil {
					result, err := checker(bot, s)
					if err != nil {
						return "", err
					}
					if passed, ok := result.(bool); ok && !passed {
						return "", nil
					}
				}
				return cm.describe(cmd), nil
			}
			return fmt.Sprintf("No such command %s.", EscapeKMarkdown(target)), nil
		})

	root.Command("inspect", "Show the current session context", nil).
		GuildAdminOnly().
		Action(func(argv *Argv, bot *Bot, s *Session) (string, error) {
			content := fmt.Sprintf("Guild: %s\nChannel: %s\nUser: %s", s.GuildID, s.ChannelID, s.UserID)
			if _, err := bot.SendMessage(s.ChannelID, content, WithTempTarget(s.UserID)); err != nil {
				logger.ErrorCF("command", "Failed to send inspect reply",
					map[string]interface{}{"error": err.Error()})
			}
			return "", nil
		})
}

// listHelp renders the public, permission-passing commands.
func (cm *Commander) listHelp(visible []*CommandInstance, bot *Bot, s *Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Commands (prefix %q):\n", cm.cfg.Prefix)
	for _, cmd := range visible {
		if !cmd.isPublic {
			continue
		}
		if checker := cmd.permissionChecker(); checker != nil {
			result, err := checker(bot, s)
			if err != nil {
				continue
			}
			if passed, ok := result.(bool); ok && !passed {
				continue
			}
		}
		aliases := ""
		if len(cmd.Aliases) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases, ", "))
		}
		fmt.Fprintf(&sb, "%s%s%s - %s\n", cm.cfg.Prefix, cmd.usage(), aliases, cmd.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// describe renders one command's detail, preferring registered help
// content over the generated shape.
func (cm *Commander) describe(cmd *CommandInstance) string {
	cm.helpMu.RLock()
	content, ok := cm.help[cmd.Name]
	cm.helpMu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** - %s", cmd.Name, cmd.Description)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&sb, "\nAliases: %s", strings.Join(cmd.Aliases, ", "))
	}

	if !ok {
		if len(cmd.required) > 0 {
			fmt.Fprintf(&sb, "\nRequired: %s", strings.Join(cmd.required, ", "))
		}
		if len(cmd.optional) > 0 {
			fmt.Fprintf(&sb, "\nOptional: %s", strings.Join(cmd.optional, ", "))
		}
		if len(cmd.flags) > 0 {
			names := make([]string, 0, len(cmd.flags))
			for name := range cmd.flags {
				names = append(names, "--"+name)
			}
			sort.Strings(names)
			fmt.Fprintf(&sb, "\nFlags: %s", strings.Join(names, ", "))
		}
		return sb.String()
	}

	if content.Description != "" {
		fmt.Fprintf(&sb, "\n%s", content.Description)
	}
	writeHelpSection(&sb, "Required", content.Required)
	writeHelpSection(&sb, "Optional", content.Optional)
	writeHelpSection(&sb, "Flags", content.Flags)
	return sb.String()
}

func writeHelpSection(sb *strings.Builder, title string, entries map[string]string) {
	if len(entries) == 0 {
		return
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(sb, "\n%s:", title)
	for _, name := range names {
		fmt.Fprintf(sb, "\n  %s - %s", name, entries[name])
	}
}
