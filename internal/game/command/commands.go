// Package command provides the terminal command vocabulary: the registry,
// the line parser, and translation of commands into protocol requests.
package command

// Categories for organizing commands in help output.
const (
	CategoryRoom   = "room"
	CategoryGame   = "game"
	CategorySystem = "system"
)

// Handler identifiers. Commands with a protocol handler become arbiter
// requests; the rest are answered by the terminal session itself.
const (
	HandlerCreate = "create"
	HandlerJoin   = "join"
	HandlerLeave  = "leave"
	HandlerDrop   = "drop"
	HandlerReset  = "reset"
	HandlerBoard  = "board"
	HandlerHelp   = "help"
	HandlerQuit   = "quit"
)

// Command defines a player-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument form, e.g. "join <code>".
	Usage string
	// Help is the short help text displayed to players.
	Help string
	// Category groups the command in help output.
	Category string
	// Handler identifies what the command does.
	Handler string
}

// BuiltinCommands returns all terminal commands.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "create", Aliases: []string{"new", "host"}, Usage: "create", Help: "Open a new room and wait for an opponent", Category: CategoryRoom, Handler: HandlerCreate},
		{Name: "join", Aliases: []string{"j"}, Usage: "join <code>", Help: "Join a room by its code", Category: CategoryRoom, Handler: HandlerJoin},
		{Name: "leave", Usage: "leave", Help: "Leave the current room; the room is closed", Category: CategoryRoom, Handler: HandlerLeave},

		{Name: "drop", Aliases: []string{"d", "move", "m"}, Usage: "drop <1-7>", Help: "Drop a disc into a column", Category: CategoryGame, Handler: HandlerDrop},
		{Name: "reset", Aliases: []string{"rematch"}, Usage: "reset", Help: "Clear the board and start again", Category: CategoryGame, Handler: HandlerReset},
		{Name: "board", Aliases: []string{"b", "look", "l"}, Usage: "board", Help: "Show the board again", Category: CategoryGame, Handler: HandlerBoard},

		{Name: "help", Aliases: []string{"?"}, Usage: "help", Help: "List commands", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Usage: "quit", Help: "Disconnect", Category: CategorySystem, Handler: HandlerQuit},
	}
}
