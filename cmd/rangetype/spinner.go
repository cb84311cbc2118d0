package main

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// spinnerModel shows a spinner next to a label until the work is done.
type spinnerModel struct {
	styles  *Styles
	spinner spinner.Model
	label   string
	done    bool
}

// workDoneMsg is sent when the background work has finished.
type workDoneMsg struct{}

func newSpinnerModel(label string, styles *Styles) *spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerFrames(),
		FPS:    time.Second / 10,
	}
	s.Style = styles.Running

	return &spinnerModel{
		styles:  styles,
		spinner: s,
		label:   label,
	}
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) { //nolint:ireturn // bubbletea.Model interface required by tea.Program
	switch msg := msg.(type) {
	case workDoneMsg:
		m.done = true

		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done {
		return ""
	}

	return m.spinner.View() + " " + m.styles.Dim.Render(m.label)
}

// withSpinner runs fn while a spinner is drawn on w. An interrupt (SIGINT)
// stops the spinner and cancels the context passed to fn.
func withSpinner(ctx context.Context, w io.Writer, label string, styles *Styles, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newSpinnerModel(label, styles),
		tea.WithContext(ctx),
		tea.WithOutput(w),
		tea.WithInput(nil),
	)

	result := make(chan error, 1)

	go func() {
		result <- fn(ctx)

		program.Send(workDoneMsg{})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-result

		return err
	}

	return <-result
}
