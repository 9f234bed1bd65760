package ui

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/lanprobe/internal/discovery"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType
	Title           string   // e.g., "Responder found"
	Details         []Param  // Key-value details to display
	Error           error    // Error (for failure results)
	Troubleshooting []string // Troubleshooting tips (for failure results)
	Width           int      // Terminal width
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Param) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details ...Param) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Param{Key: key, Value: value})
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var (
		title string
		color lipgloss.Color
	)
	switch r.Type {
	case ResultFailure:
		title = ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title))
		color = ErrorColor
	case ResultWarning:
		title = WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, r.Title))
		color = WarningColor
	default:
		title = SuccessTitleStyle.Render(fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, r.Title))
		color = SuccessColor
	}

	lines := []string{"", title, ""}

	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshootingBox(width), "")
	}

	return ResultBoxStyle(width, color).Render(strings.Join(lines, "\n"))
}

func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}
	return TroubleshootingBoxStyle(width).Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// ProbeDetails lists what a successful probe learned about the responder.
func ProbeDetails(res *discovery.Result, elapsed time.Duration) []Param {
	ann := res.Announcement
	details := []Param{
		{Key: "Component", Value: fmt.Sprintf("%s #%d", ann.ComponentType, ann.ComponentID)},
		{Key: "Host", Value: ann.Hostname},
		{Key: "Serves", Value: servesAddr(ann.Addr, res.From)},
		{Key: "PID", Value: fmt.Sprintf("%d", ann.PID)},
		{Key: "Reply from", Value: res.From.String()},
		{Key: "Probe ID", Value: res.Query.ProbeID.String()},
	}
	if res.Skipped > 0 {
		details = append(details, Param{Key: "Skipped", Value: fmt.Sprintf("%d stale replies", res.Skipped)})
	}
	return append(details, Param{Key: "Duration", Value: elapsed.Round(time.Millisecond).String()})
}

// servesAddr substitutes the reply source for an unspecified announced host.
func servesAddr(announced, from netip.AddrPort) string {
	if announced.Addr().IsValid() && !announced.Addr().IsUnspecified() {
		return announced.String()
	}
	if announced.Port() == 0 {
		return from.Addr().String()
	}
	return netip.AddrPortFrom(from.Addr(), announced.Port()).String()
}

// ProbeTroubleshooting picks tips that fit the way a probe failed.
func ProbeTroubleshooting(err error) []string {
	tips := probeTips(err)
	if discovery.IsRetryable(err) {
		tips = append(tips, "This failure is usually transient; running the probe again may succeed")
	}
	return tips
}

func probeTips(err error) []string {
	var (
		bindErr *discovery.BindError
		sendErr *discovery.SendError
		fatal   *discovery.FatalError
	)
	switch {
	case errors.As(err, &bindErr), errors.Is(err, discovery.ErrNotBound):
		return []string{
			"Another process holds the reply port; try --bind-port",
			"Check for a second lanprobe probe still waiting",
		}
	case errors.Is(err, discovery.ErrAttemptsExhausted):
		return []string{
			"Make sure a responder runs: lanprobe respond",
			"Check that the firewall passes UDP broadcast on the broadcast port",
			"Broadcasts do not cross routers; probe from the same subnet",
			"Try: lanprobe scan to look for responders over mDNS",
		}
	case errors.As(err, &sendErr):
		return []string{
			"Check the interface has an IPv4 address and is up",
			"Pick another interface with --interface",
		}
	case errors.Is(err, discovery.ErrTooManyStale):
		return []string{
			"Other probes are answered on this port; retry in a moment",
		}
	case errors.As(err, &fatal):
		return []string{
			"The host refused to open or configure UDP sockets",
			"Run with --log-level debug for socket errors",
		}
	}
	return nil
}
