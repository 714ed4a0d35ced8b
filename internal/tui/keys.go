package tui

// Keybinding constants
const (
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyPane1    = "1"
	KeyPane2    = "2"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView(done bool) string {
	if done {
		return StyleHelp.Render("Run finished | j/k: select step | Tab: cycle focus | q: quit")
	}
	return StyleHelp.Render("Tab: cycle focus | 1/2: jump to pane | j/k: select step | q: quit")
}
