package picker

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the picker until the user chooses a source or quits, and
// returns the chosen id ("" on quit).
func Run(ctx context.Context, ch Channel, in io.Reader, out io.Writer) (string, error) {
	p := tea.NewProgram(New(ctx, ch),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("picker: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return "", nil
	}
	return m.Selected(), nil
}
