// Command zgrue runs a Z-Machine story file, either headless (plain text to
// stdout) or in an interactive terminal UI. Grounded on the teacher's
// main.go: stdlib flag for the ROM path, bubbletea for the interactive
// front end, muesli/reflow/wordwrap for laying out the transcript.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/mvisser/zgrue/zmachine"
)

func main() {
	romPath := flag.String("rom", "", "path to a z-machine story file (.z3/.z5)")
	headless := flag.Bool("headless", false, "run without the interactive terminal UI, writing transcript to stdout")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: zgrue -rom <path> [-headless]")
		os.Exit(2)
	}

	storyBytes, err := os.ReadFile(*romPath)
	if err != nil {
		reportAndExit(err)
	}

	if *headless {
		runHeadless(storyBytes)
		return
	}
	runInteractive(storyBytes)
}

func reportAndExit(err error) {
	fmt.Fprintf(os.Stderr, "zgrue: %s\n", err)
	os.Exit(1)
}

// writerSink is the headless OutputSink: decoded text goes straight to an
// io.Writer, no buffering or styling.
type writerSink struct {
	w io.Writer
}

func (s writerSink) WriteString(text string) { fmt.Fprint(s.w, text) }
func (s writerSink) NewLine()                { fmt.Fprintln(s.w) }

func runHeadless(storyBytes []byte) {
	interp, err := zmachine.Load(storyBytes, writerSink{w: os.Stdout})
	if err != nil {
		reportAndExit(err)
	}

	switch err := interp.Run().(type) {
	case nil:
	case zmachine.Halt:
	case zmachine.InputRequested:
		fmt.Fprintf(os.Stderr, "\nzgrue: story requested %s, which headless mode does not support; exiting\n", err.Opcode)
	default:
		reportAndExit(err)
	}
}

// textChunk is one piece of decoded story text delivered to the interactive
// model. runFinishedMsg marks the interpreter goroutine's completion.
type textChunk string
type runFinishedMsg struct{ err error }

// outputSink is the interactive OutputSink: it forwards every write onto a
// channel the bubbletea program drains, mirroring the teacher's
// outputChannel chan<- any field.
type outputSink struct {
	ch chan<- tea.Msg
}

func (s outputSink) WriteString(text string) { s.ch <- textChunk(text) }
func (s outputSink) NewLine()                { s.ch <- textChunk("\n") }

func waitForOutput(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

// transcriptModel's input field is not wired to sread/read yet — this
// interpreter halts on InputRequested rather than resuming the story — but
// it keeps the command line visible under the scroll-back the way a real
// Z-Machine terminal would, ready for the day `read` joins the opcode set.
type transcriptModel struct {
	ch            <-chan tea.Msg
	input         textinput.Model
	content       []byte
	width, height int
	done          bool
	runErr        error
}

func newTranscriptModel(ch <-chan tea.Msg) transcriptModel {
	ti := textinput.New()
	ti.Placeholder = "(input not yet supported)"
	ti.Focus()
	return transcriptModel{ch: ch, input: ti}
}

func (m transcriptModel) Init() tea.Cmd {
	return waitForOutput(m.ch)
}

func (m transcriptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if m.done || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	case textChunk:
		m.content = append(m.content, []byte(msg)...)
		return m, waitForOutput(m.ch)
	case runFinishedMsg:
		m.done = true
		m.runErr = msg.err
		return m, nil
	}
	return m, nil
}

func (m transcriptModel) View() string {
	width := m.width
	if width < 20 {
		width = 20
	}
	body := wordwrap.String(string(m.content), width)

	if m.done {
		footer := "\n\n[story finished — press any key to exit]"
		if m.runErr != nil {
			footer = "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(m.runErr.Error())
		}
		body += footer
	} else {
		body += "\n\n> " + m.input.View()
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(body)
}

func runInteractive(storyBytes []byte) {
	ch := make(chan tea.Msg)

	interp, err := zmachine.Load(storyBytes, outputSink{ch: ch})
	if err != nil {
		reportAndExit(err)
	}

	go func() {
		runErr := interp.Run()
		switch runErr.(type) {
		case zmachine.Halt, zmachine.InputRequested:
			runErr = nil
		}
		ch <- runFinishedMsg{err: runErr}
	}()

	if _, err := tea.NewProgram(newTranscriptModel(ch)).Run(); err != nil {
		reportAndExit(err)
	}
}
