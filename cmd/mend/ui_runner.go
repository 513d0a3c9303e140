package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"mend/internal/driver"
	"mend/internal/ui"
)

// runWithUI renders progress while work runs in the background. work receives
// the sink to report through; its error is returned once the view has closed.
func runWithUI(out io.Writer, title string, files []string, work func(driver.ProgressSink) error) error {
	events := make(chan driver.Event, 256)
	errCh := make(chan error, 1)

	go func() {
		err := work(driver.ChannelSink{Ch: events})
		close(events)
		errCh <- err
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(out))
	_, uiErr := program.Run()
	// UI мог закрыться раньше времени: дочитываем, чтобы воркеры не блокировались
	for range events {
	}
	err := <-errCh
	if uiErr != nil {
		return uiErr
	}
	return err
}
