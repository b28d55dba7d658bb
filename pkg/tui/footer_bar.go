package tui

// FooterBar renders the keyboard shortcuts footer.
type FooterBar struct {
	terminalWidth int
}

// NewFooterBar creates a footer bar renderer.
func NewFooterBar(width int) *FooterBar {
	return &FooterBar{
		terminalWidth: width,
	}
}

// SetWidth updates the terminal width for the footer bar.
func (f *FooterBar) SetWidth(width int) {
	f.terminalWidth = width
}

// Render outputs the footer bar content.
// Full (width >= 80): "Space: Replay | n/p: Round | Tab: Panel | :: Command | q: Quit"
// Abbreviated (width < 80): "Spc:Play n/p:Rnd Tab:Panel ::Cmd q:Quit"
// When in command panel: "Enter: Execute | Esc: Clear | Tab: Next Panel"
func (f *FooterBar) Render(inCommandPanel bool) string {
	if inCommandPanel {
		if f.terminalWidth < 80 {
			return "Enter:Exec Esc:Clear Tab:Panel"
		}
		return "Enter: Execute | Esc: Clear | Tab: Next Panel"
	}
	if f.terminalWidth < 80 {
		return "Spc:Play n/p:Rnd Tab:Panel ::Cmd q:Quit"
	}
	return "Space: Replay | n/p: Round | Tab: Panel | :: Command | q: Quit"
}
