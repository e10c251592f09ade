package render

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Primary = lipgloss.Color("#7D56F4") // Purple
	Success = lipgloss.Color("#04B575") // Green
	Error   = lipgloss.Color("#FF6B6B") // Red
	Warning = lipgloss.Color("#FFCC00") // Yellow
	Info    = lipgloss.Color("#5384FF") // Blue
	Muted   = lipgloss.Color("#6C6C6C")
	Border  = lipgloss.Color("#3C3C3C")
)

// Styles groups the styles used for one transcript rendering
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Body      lipgloss.Style
	ToolCall  lipgloss.Style
	Pending   lipgloss.Style
	Done      lipgloss.Style
	Result    lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	JSON      lipgloss.Style
}

// DefaultStyles returns the colored terminal styles
func DefaultStyles() Styles {
	return Styles{
		User: lipgloss.NewStyle().
			Foreground(Info).
			Bold(true),
		Assistant: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true),
		Body: lipgloss.NewStyle(),
		ToolCall: lipgloss.NewStyle().
			Foreground(Warning),
		Pending: lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true),
		Done: lipgloss.NewStyle().
			Foreground(Success),
		Result: lipgloss.NewStyle().
			Foreground(Muted).
			PaddingLeft(4),
		Error: lipgloss.NewStyle().
			Foreground(Error).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(Muted),
		JSON: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1),
	}
}

// PlainStyles returns styles without colors or borders, for piped output
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		User:      plain,
		Assistant: plain,
		Body:      plain,
		ToolCall:  plain,
		Pending:   plain,
		Done:      plain,
		Result:    plain.PaddingLeft(4),
		Error:     plain,
		Muted:     plain,
		JSON:      plain,
	}
}
