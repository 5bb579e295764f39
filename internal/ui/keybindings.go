package ui

// Action is what a key press does while browsing the grid.
type Action string

const (
	ActionNone        Action = ""
	ActionUp          Action = "up"
	ActionDown        Action = "down"
	ActionLeft        Action = "left"
	ActionRight       Action = "right"
	ActionPageUp      Action = "page_up"
	ActionPageDown    Action = "page_down"
	ActionTop         Action = "top"
	ActionBottom      Action = "bottom"
	ActionRowStart    Action = "row_start"
	ActionRowEnd      Action = "row_end"
	ActionEdit        Action = "edit"
	ActionSearch      Action = "search"
	ActionAddRow      Action = "add_row"
	ActionAddRows     Action = "add_rows"
	ActionAddColumn   Action = "add_column"
	ActionRetry       Action = "retry"
	ActionDismiss     Action = "dismiss"
	ActionHelp        Action = "help"
	ActionQuit        Action = "quit"
	ActionClearSearch Action = "clear_search"
)

// KeyBindings maps key names, as reported by tea.KeyPressMsg.String, to
// browse actions.
var KeyBindings = map[string]Action{
	"up":     ActionUp,
	"k":      ActionUp,
	"down":   ActionDown,
	"j":      ActionDown,
	"left":   ActionLeft,
	"h":      ActionLeft,
	"right":  ActionRight,
	"l":      ActionRight,
	"tab":    ActionRight,
	"pgup":   ActionPageUp,
	"ctrl+u": ActionPageUp,
	"pgdown": ActionPageDown,
	"ctrl+d": ActionPageDown,
	"g":      ActionTop,
	"home":   ActionTop,
	"G":      ActionBottom,
	"end":    ActionBottom,
	"0":      ActionRowStart,
	"$":      ActionRowEnd,
	"enter":  ActionEdit,
	"e":      ActionEdit,
	"/":      ActionSearch,
	"ctrl+f": ActionSearch,
	"ctrl+n": ActionAddRow,
	"ctrl+b": ActionAddRows,
	"ctrl+k": ActionAddColumn,
	"ctrl+r": ActionRetry,
	"esc":    ActionDismiss,
	"ctrl+l": ActionClearSearch,
	"?":      ActionHelp,
	"f1":     ActionHelp,
	"q":      ActionQuit,
	"ctrl+c": ActionQuit,
}

// ResolveAction returns the browse action bound to key.
func ResolveAction(key string) Action {
	return KeyBindings[key]
}

// helpEntry is one line of the help panel.
type helpEntry struct {
	keys string
	desc string
}

var helpEntries = []helpEntry{
	{"↑↓←→ hjkl", "move the selection"},
	{"pgup pgdn", "scroll a page"},
	{"g G", "first and last loaded row"},
	{"enter e", "edit the selected cell"},
	{"tab", "commit and move right while editing"},
	{"esc", "cancel the edit or clear the search"},
	{"/", "search this table (prefix = for an expression)"},
	{"ctrl+n", "add a row"},
	{"ctrl+b", "add rows in bulk"},
	{"ctrl+k", "add a column (name or name:NUMBER)"},
	{"ctrl+r", "retry what failed"},
	{"?", "toggle this help"},
	{"q", "quit"},
}

// shortHelp is the key hint shown in the footer.
var shortHelp = []helpEntry{
	{"enter", "edit"},
	{"/", "search"},
	{"ctrl+n", "row"},
	{"ctrl+k", "column"},
	{"?", "help"},
	{"q", "quit"},
}
