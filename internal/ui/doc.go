// Package ui provides terminal output components for the lanprobe CLI.
//
// Lipgloss renders every box. The probe command has two output modes, and
// both are driven by the same discovery.Event stream:
//
//   - RunProbe runs a Bubble Tea program (spinner, progress bar, step list)
//     while the probe executes on another goroutine. Used by `probe --tui`
//     when stdout is a terminal.
//   - Printer writes the same components sequentially, one step line per
//     event. Used when output is piped or --tui is off.
//
// # Components
//
//   - Header: command banner with ordered parameters
//   - Progress: receive budget bar plus the bind, broadcast and wait steps
//   - Result: success, failure or warning box; failures carry
//     troubleshooting tips chosen by ProbeTroubleshooting
//   - DatagramBox: hex dump of a datagram for --verbose
//
// Example:
//
//	header := ui.NewHeader("Discovery probe", "lanprobe probe",
//	    ui.Param{Key: "Broadcast", Value: "255.255.255.255:20086"})
//
//	res, err := ui.RunProbe(ctx, os.Stdout, header, cfg.MaxAttempts,
//	    func(observe discovery.Observer) (*discovery.Result, error) {
//	        ep, err := discovery.New(cfg, discovery.WithObserver(observe))
//	        ...
//	    })
//
// # Logging Integration
//
// Zap output goes to stderr and is silent unless LANPROBE_LOG_LEVEL or
// --log-level enables it, so the rendered UI stays clean by default.
package ui
