package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Keys

| Key | Action |
| --- | --- |
| tab / shift+tab | move between table, search and form |
| ↑ ↓ / k j | select a contact |
| ← → / h l | previous / next page |
| a | new contact |
| e / enter | edit the selected contact |
| d | delete the selected contact (asks y/n) |
| / | search by name |
| r | reload the page |
| enter (form) | save |
| esc (form) | cancel editing |
| ? | toggle this help |
| q / ctrl+c | quit |
`

// renderHelp renders the key reference; the raw markdown is shown if glamour
// fails.
func renderHelp(width int) string {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := renderer.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return strings.TrimSpace(out)
}
