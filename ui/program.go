package ui

import (
	"bytes"
	"context"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"tracker/report"
)

// Dashboard runs the bubbletea program and forwards engine events to it.
type Dashboard struct {
	program *tea.Program
}

func New(runID string, quit func()) *Dashboard {
	return &Dashboard{
		program: tea.NewProgram(NewModel(runID, quit), tea.WithoutSignalHandler()),
	}
}

// Run blocks until the user quits or ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			d.program.Quit()
		case <-done:
		}
	}()

	_, err := d.program.Run()
	return err
}

// Observe is an engine observer.
func (d *Dashboard) Observe(r report.Cycle) {
	d.program.Send(CycleMsg{Report: r})
}

// Halted marks the run as finished.
func (d *Dashboard) Halted(err error) {
	d.program.Send(haltMsg{Err: err})
}

// LogWriter returns an io.Writer that turns complete log lines into LogMsg.
func (d *Dashboard) LogWriter() *LogWriter {
	return NewLogWriter(func(line string) { d.program.Send(LogMsg{Line: line}) })
}

// LogWriter splits written bytes on newlines and forwards each line.
type LogWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	send func(string)
}

func NewLogWriter(send func(string)) *LogWriter {
	return &LogWriter{send: send}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			w.send(line)
		}
	}
	return len(p), nil
}
