package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/lanprobe/internal/discovery"
)

// ErrInterrupted is returned by RunProbe when the user quits the display
// before the probe finishes.
var ErrInterrupted = errors.New("probe interrupted")

// EventMsg carries an endpoint event into the Bubble Tea loop.
type EventMsg discovery.Event

type probeDoneMsg struct {
	result *discovery.Result
	err    error
}

// ProbeOperation runs the probe, reporting progress through observe.
type ProbeOperation func(observe discovery.Observer) (*discovery.Result, error)

// ProbeModel is the Bubble Tea model behind `probe --tui`: a header, a
// spinner while the endpoint works, then a result box.
type ProbeModel struct {
	header   *Header
	progress *Progress
	spinner  spinner.Model
	width    int
	started  time.Time

	done   bool
	result *discovery.Result
	err    error
}

// NewProbeModel creates the model. maxAttempts sizes the progress bar.
func NewProbeModel(header *Header, maxAttempts int) ProbeModel {
	width := GetTerminalWidth()
	if header != nil {
		header.SetWidth(width)
	}
	return ProbeModel{
		header:   header,
		progress: NewProgress("Waiting for an announcement...", maxAttempts).SetWidth(width),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
		),
		width:   width,
		started: time.Now(),
	}
}

// Init implements tea.Model
func (m ProbeModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m ProbeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.progress.Apply(discovery.Event(msg))
		return m, nil

	case probeDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.done = true
			m.err = ErrInterrupted
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.progress.SetWidth(m.width)
		if m.header != nil {
			m.header.SetWidth(m.width)
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m ProbeModel) View() string {
	var b strings.Builder

	if m.header != nil {
		b.WriteString(m.header.Render())
		b.WriteString("\n\n")
	}

	if !m.done {
		b.WriteString(m.spinner.View())
		b.WriteString(m.progress.Render())
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.progress.Render())
	b.WriteString("\n\n")
	b.WriteString(m.resultBox().Render())
	b.WriteString("\n")
	return b.String()
}

func (m ProbeModel) resultBox() *Result {
	if m.err != nil {
		return NewFailureResult("No responder found", m.err, ProbeTroubleshooting(m.err)).SetWidth(m.width)
	}
	return NewSuccessResult("Responder found", ProbeDetails(m.result, time.Since(m.started))...).SetWidth(m.width)
}

// Result returns the probe outcome once the model is done.
func (m ProbeModel) Result() (*discovery.Result, error) {
	return m.result, m.err
}

// RunProbe runs op on its own goroutine while a Bubble Tea program renders
// its events. It returns when op finishes, ctx is cancelled, or the user
// quits.
func RunProbe(ctx context.Context, out io.Writer, header *Header, maxAttempts int, op ProbeOperation) (*discovery.Result, error) {
	if out == nil {
		out = os.Stdout
	}

	p := tea.NewProgram(NewProbeModel(header, maxAttempts),
		tea.WithContext(ctx),
		tea.WithOutput(out))

	go func() {
		res, err := op(func(ev discovery.Event) {
			p.Send(EventMsg(ev))
		})
		p.Send(probeDoneMsg{result: res, err: err})
	}()

	final, err := p.Run()
	if m, ok := final.(ProbeModel); ok && m.done {
		return m.Result()
	}
	if err == nil {
		err = ErrInterrupted
	}
	return nil, err
}

// Printer writes UI components as plain sequential output. It is the
// fallback when stdout is not a terminal or --tui is off.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(h *Header) {
	p.Println(h.SetWidth(p.width).Render())
	p.Println("")
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	p.Println("")
	p.Println(r.SetWidth(p.width).Render())
}

// PrintDatagram prints a hex dump box
func (p *Printer) PrintDatagram(title string, data []byte) {
	p.Println("")
	p.Println(NewDatagramBox(title, data).SetWidth(p.width).Render())
}

// Observer returns an endpoint observer that prints one step line per
// event.
func (p *Printer) Observer(maxAttempts int) discovery.Observer {
	prog := NewProgress("", maxAttempts).SetWidth(p.width)
	return func(ev discovery.Event) {
		prog.Apply(ev)
		if n := stepFor(ev.Kind); n > 0 {
			p.Println(prog.renderStepLine(prog.Steps[n-1]))
		}
	}
}

func stepFor(kind discovery.EventKind) int {
	switch kind {
	case discovery.EventBindFailed, discovery.EventBound:
		return StepBind
	case discovery.EventBroadcast:
		return StepBroadcast
	case discovery.EventWaitTimeout, discovery.EventReadError, discovery.EventReceived, discovery.EventExhausted:
		return StepWait
	}
	return 0
}
