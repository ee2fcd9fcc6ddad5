package command

import (
	"fmt"
	"slices"
	"strings"
)

// categoryOrder fixes the order categories appear in help output.
var categoryOrder = []string{CategoryRoom, CategoryGame, CategorySystem}

// Registry maps command names and aliases to Command definitions.
type Registry struct {
	commands map[string]*Command // canonical name → command
	aliases  map[string]string   // alias → canonical name
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if _, taken := r.commands[cmd.Name]; taken {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		if owner, taken := r.aliases[cmd.Name]; taken {
			return nil, fmt.Errorf("command name %q is already an alias of %q", cmd.Name, owner)
		}
		r.commands[cmd.Name] = cmd
	}
	for _, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if _, taken := r.commands[alias]; taken {
				return nil, fmt.Errorf("alias %q of %q shadows a command name", alias, cmd.Name)
			}
			if owner, taken := r.aliases[alias]; taken {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, owner, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}
	}
	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
//
// Postcondition: Returns a Registry with all built-in commands registered.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name or alias, case-insensitively.
func (r *Registry) Resolve(input string) (*Command, bool) {
	input = strings.ToLower(input)
	if cmd, ok := r.commands[input]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[input]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// Commands returns all registered commands sorted by name.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	slices.SortFunc(out, func(a, b *Command) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// HelpLines renders one line per command, grouped by category in a fixed
// order, with aliases in parentheses.
func (r *Registry) HelpLines() []string {
	byCategory := make(map[string][]*Command)
	for _, cmd := range r.Commands() {
		byCategory[cmd.Category] = append(byCategory[cmd.Category], cmd)
	}

	var lines []string
	emit := func(cat string) {
		cmds := byCategory[cat]
		if len(cmds) == 0 {
			return
		}
		lines = append(lines, strings.ToUpper(cat[:1])+cat[1:]+":")
		for _, cmd := range cmds {
			line := fmt.Sprintf("  %-12s %s", cmd.Usage, cmd.Help)
			if len(cmd.Aliases) > 0 {
				line += " (" + strings.Join(cmd.Aliases, ", ") + ")"
			}
			lines = append(lines, line)
		}
		delete(byCategory, cat)
	}
	for _, cat := range categoryOrder {
		emit(cat)
	}
	rest := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		rest = append(rest, cat)
	}
	slices.Sort(rest)
	for _, cat := range rest {
		emit(cat)
	}
	return lines
}
