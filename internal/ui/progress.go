package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/lanprobe/internal/discovery"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// Step represents a single step in a multi-step operation
type Step struct {
	Number  int        // Step number (1-based)
	Name    string     // Step description
	Status  StepStatus // Current status
	Message string     // Optional status message (e.g., "timeout 3/15")
}

// Probe steps, in the order an endpoint goes through them
const (
	StepBind = iota + 1
	StepBroadcast
	StepWait
)

var probeStepNames = []string{
	"Bind reply listener",
	"Broadcast query",
	"Wait for announcement",
}

// Progress is a progress bar plus step list. The bar tracks how much of
// the receive timeout budget has been used.
type Progress struct {
	Label   string
	Steps   []Step
	Attempt int     // Timed-out waits so far
	Max     int     // Attempt ceiling
	Percent float64 // 0.0 - 1.0
	Width   int
	bar     progress.Model
}

// NewProgress creates a progress display for the probe steps. maxAttempts
// is the endpoint's receive ceiling.
func NewProgress(label string, maxAttempts int) *Progress {
	steps := make([]Step, len(probeStepNames))
	for i, name := range probeStepNames {
		steps[i] = Step{Number: i + 1, Name: name, Status: StepPending}
	}
	if maxAttempts <= 0 {
		maxAttempts = discovery.DefaultMaxAttempts
	}

	p := &Progress{
		Label: label,
		Steps: steps,
		Max:   maxAttempts,
	}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 24 // Leave room for percentage and attempt count
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// UpdateStep updates a specific step's status and optional message
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	p.Steps[stepNumber-1].Status = status
	p.Steps[stepNumber-1].Message = message
}

// Apply folds one endpoint event into the display.
func (p *Progress) Apply(ev discovery.Event) {
	switch ev.Kind {
	case discovery.EventBindFailed:
		status := StepRunning
		if ev.Attempt >= ev.MaxAttempts {
			status = StepFailed
		}
		p.UpdateStep(StepBind, status, fmt.Sprintf("attempt %d/%d: %v", ev.Attempt, ev.MaxAttempts, ev.Err))

	case discovery.EventBound:
		p.UpdateStep(StepBind, StepComplete, ev.Addr.String())

	case discovery.EventBroadcast:
		p.UpdateStep(StepBroadcast, StepComplete, fmt.Sprintf("%d bytes to %s", ev.Bytes, ev.Addr))
		p.UpdateStep(StepWait, StepRunning, "")

	case discovery.EventWaitTimeout:
		p.setAttempt(ev.Attempt, ev.MaxAttempts)
		p.UpdateStep(StepWait, StepRunning, fmt.Sprintf("timeout %d/%d", ev.Attempt, ev.MaxAttempts))

	case discovery.EventReadError:
		p.UpdateStep(StepWait, StepRunning, fmt.Sprintf("read error: %v", ev.Err))

	case discovery.EventReceived:
		p.UpdateStep(StepWait, StepComplete, fmt.Sprintf("%d bytes from %s", ev.Bytes, ev.Addr))
		p.Percent = 1

	case discovery.EventExhausted:
		p.setAttempt(ev.Attempt, ev.MaxAttempts)
		p.UpdateStep(StepWait, StepFailed, fmt.Sprintf("no reply after %d waits", ev.Attempt))
		p.Percent = 1
	}
}

func (p *Progress) setAttempt(attempt, max int) {
	if max > 0 {
		p.Max = max
	}
	p.Attempt = attempt
	// The ceiling allows Max timeouts; the one after that is fatal.
	p.Percent = float64(attempt) / float64(p.Max+1)
	if p.Percent > 1 {
		p.Percent = 1
	}
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	b.WriteString(p.renderProgressBar())
	b.WriteString("\n\n")

	lines := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		lines = append(lines, p.renderStepLine(step))
	}
	b.WriteString(strings.Join(lines, "\n"))

	return b.String()
}

func (p *Progress) renderProgressBar() string {
	barView := p.bar.ViewAs(p.Percent)
	percentStr := fmt.Sprintf("%3.0f%%", p.Percent*100)
	attemptStr := fmt.Sprintf("[%d/%d]", p.Attempt, p.Max)

	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %s  %s", barView, percentStr, attemptStr))
}

func (p *Progress) renderStepLine(step Step) string {
	prefix := fmt.Sprintf("  [%d/%d]", step.Number, len(p.Steps))

	var (
		marker string
		style  lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(" ")
	b.WriteString(style.Render(step.Name))

	// Keep markers in one column
	padding := 30 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}

	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
