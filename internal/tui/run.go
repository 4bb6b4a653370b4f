package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the browser and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts ...Option) error {
	m := New(opts...)
	if m.api == nil {
		return fmt.Errorf("browser needs an API client")
	}

	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("browser failed: %w", err)
	}
	return nil
}
