// Package console is the operator's local console: a scrolling output pane
// and a command line feeding the dispatch table.
package console

import (
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"qlbridge/internal/command"
	"qlbridge/internal/log"
)

const (
	maxHistory = 100
	queueSize  = 64
)

// Executor runs a console line
type Executor interface {
	Execute(line string, source command.Source) bool
}

// Console is a tview application that also serves as the io.Writer for host
// console output
type Console struct {
	app    *tview.Application
	output *tview.TextView
	input  *tview.InputField

	exec  Executor
	lines chan string

	mu        sync.Mutex
	colorizer Colorizer
	history   []string
	cursor    int
}

// New builds the console UI. Lines entered are run through exec.
func New(exec Executor, title string) *Console {
	c := &Console{
		app:   tview.NewApplication(),
		exec:  exec,
		lines: make(chan string, queueSize),
	}

	c.output = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(5000).
		SetChangedFunc(func() { c.app.Draw() })
	c.output.SetBorder(true).SetTitle(" " + title + " ")

	c.input = tview.NewInputField().
		SetLabel("] ").
		SetFieldBackgroundColor(tcell.ColorDefault)
	c.input.SetDoneFunc(c.handleDone)
	c.input.SetInputCapture(c.handleKey)

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.output, 0, 1, false).
		AddItem(c.input, 1, 0, true)

	c.app.SetRoot(layout, true)
	return c
}

// Write appends host output to the output pane
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	text := c.colorizer.Chunk(string(p))
	c.mu.Unlock()

	if _, err := c.output.Write([]byte(text)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Run blocks until the operator quits. Entered lines run one at a time on a
// single goroutine, the way the host's dispatch thread runs them.
func (c *Console) Run() error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range c.lines {
			if !c.exec.Execute(line, command.SourceConsole) {
				log.Debug("Console line not executed", "line", line)
			}
		}
	}()

	err := c.app.Run()
	close(c.lines)
	<-done
	return err
}

// Stop ends Run
func (c *Console) Stop() {
	c.app.Stop()
}

func (c *Console) handleDone(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		line := strings.TrimSpace(c.input.GetText())
		c.input.SetText("")
		if line == "" {
			return
		}
		c.remember(line)
		c.Write([]byte("]" + line + "\n"))

		// commands print, which redraws; they must not run on the UI goroutine
		select {
		case c.lines <- line:
		default:
			log.Warn("Console queue full, dropping line", "line", line)
		}
	case tcell.KeyEscape:
		c.app.Stop()
	}
}

func (c *Console) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyUp:
		c.input.SetText(c.step(-1))
		return nil
	case tcell.KeyDown:
		c.input.SetText(c.step(1))
		return nil
	}
	return event
}

func (c *Console) remember(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.history); n == 0 || c.history[n-1] != line {
		c.history = append(c.history, line)
		if len(c.history) > maxHistory {
			c.history = c.history[1:]
		}
	}
	c.cursor = len(c.history)
}

// step moves through history. Moving past the newest entry yields "".
func (c *Console) step(delta int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor += delta
	if c.cursor < 0 {
		c.cursor = 0
	}
	if c.cursor >= len(c.history) {
		c.cursor = len(c.history)
		return ""
	}
	return c.history[c.cursor]
}
