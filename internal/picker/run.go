package picker

import (
	"context"
	"errors"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ErrCancelled is returned by Run when the user dismisses the picker.
var ErrCancelled = errors.New("picker cancelled")

// Run shows the picker on tty (stdin/stderr when nil) and returns the
// chosen value.
func Run(ctx context.Context, model Model, tty *os.File) (string, error) {
	var in io.Reader = os.Stdin
	var out io.Writer = os.Stderr
	colorOut := os.Stderr
	if tty != nil {
		in, out, colorOut = tty, tty, tty
	}

	// Styles follow the terminal actually drawn on, not stdout, which is
	// usually captured by the caller.
	lipgloss.SetColorProfile(termenv.NewOutput(colorOut).ColorProfile())

	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return "", err
	}

	m, ok := final.(Model)
	if !ok {
		return "", errors.New("unexpected picker model type")
	}
	if m.IsCancelled() {
		return "", ErrCancelled
	}
	return m.Result(), nil
}
