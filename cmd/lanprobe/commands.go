package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/lanprobe/internal/config"
	"github.com/muurk/lanprobe/internal/discovery"
	"github.com/muurk/lanprobe/internal/logging"
	"github.com/muurk/lanprobe/internal/mdns"
	"github.com/muurk/lanprobe/internal/protocol"
	"github.com/muurk/lanprobe/internal/responder"
	"github.com/muurk/lanprobe/internal/ui"
)

// Exit codes
const (
	exitFatal       = 1   // endpoint asked the process to stop
	exitNoReply     = 2   // probe failed without a fatal endpoint error
	exitInterrupted = 130 // SIGINT or SIGTERM, or the user quit the display
)

// endpointOptions are appended to every probe endpoint. Tests use it to swap
// in scripted sockets.
var endpointOptions []discovery.Option

// Probe and respond flags
var (
	ifaceName     string
	bindPort      uint16
	broadcastPort uint16
	timeoutSecs   int
	maxAttempts   int
	useTUI        bool
	verbose       bool

	componentName string
	componentID   uint64
	hostname      string
	serveAddr     string
	advertise     bool
	matchUID      bool

	scanTimeout int
	force       bool
)

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	for _, cmd := range []*cobra.Command{probeCmd, respondCmd} {
		cmd.Flags().Uint16Var(&broadcastPort, "port", discovery.DefaultBroadcastPort, "Discovery port queries are sent to")
		cmd.Flags().StringVar(&componentName, "component", "", "Component type (machine, cellapp, bots, ...)")
	}

	probeCmd.Flags().StringVarP(&ifaceName, "interface", "i", "", "Interface whose directed broadcast address is used")
	probeCmd.Flags().Uint16Var(&bindPort, "bind-port", discovery.DefaultBindPort, "Port replies are received on")
	probeCmd.Flags().IntVar(&timeoutSecs, "timeout", 10, "Seconds per receive wait")
	probeCmd.Flags().IntVar(&maxAttempts, "max-attempts", discovery.DefaultMaxAttempts, "Timed-out waits tolerated before giving up")
	probeCmd.Flags().BoolVar(&useTUI, "tui", false, "Live progress display (needs a terminal)")
	probeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the announcement as a hex dump")

	respondCmd.Flags().Uint64Var(&componentID, "id", 0, "Component id to announce")
	respondCmd.Flags().StringVar(&hostname, "hostname", "", "Hostname to announce (default: system hostname)")
	respondCmd.Flags().StringVar(&serveAddr, "serve-addr", "", "IPv4 address:port the component serves on")
	respondCmd.Flags().BoolVar(&advertise, "mdns", false, "Also advertise over mDNS")
	respondCmd.Flags().BoolVar(&matchUID, "match-uid", false, "Only answer queries from the same user id")

	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Scan timeout in seconds")
	scanCmd.Flags().StringVar(&componentName, "component", "", "Stop at the first responder of this component type")

	configInitCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
}

// applyFlags copies explicitly set flags over the file settings. The
// --component flag names the responder's type when asResponder is set and
// the probe's identity otherwise.
func applyFlags(cmd *cobra.Command, cfg *config.Config, asResponder bool) error {
	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Network.Interface = ifaceName
	}
	if flags.Changed("bind-port") {
		cfg.Network.BindPort = bindPort
	}
	if flags.Changed("port") {
		cfg.Network.BroadcastPort = broadcastPort
	}
	if flags.Changed("timeout") {
		cfg.Receive.TimeoutSeconds = timeoutSecs
	}
	if flags.Changed("max-attempts") {
		cfg.Receive.MaxAttempts = maxAttempts
	}
	if flags.Changed("component") {
		if asResponder {
			cfg.Responder.ComponentType = componentName
		} else {
			cfg.Identity.ComponentType = componentName
		}
	}
	if flags.Changed("id") {
		cfg.Responder.ComponentID = componentID
	}
	if flags.Changed("hostname") {
		cfg.Responder.Hostname = hostname
	}
	if flags.Changed("mdns") {
		cfg.Responder.AdvertiseMDNS = advertise
	}
	if flags.Changed("match-uid") {
		cfg.Responder.MatchUID = matchUID
	}
	return cfg.Validate()
}

// breakDispatcher records that the endpoint asked the process to stop.
type breakDispatcher struct {
	broke atomic.Bool
}

func (d *breakDispatcher) BreakProcessing() {
	if d.broke.CompareAndSwap(false, true) {
		logging.Error("Discovery endpoint requested shutdown")
	}
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Broadcast a query and wait for a responder",
	Long: `Broadcast a discovery query and wait for the announcement that answers it.

The reply port is bound first, retrying while another process holds it.
Each wait lasts --timeout seconds; after --max-attempts timed-out waits the
next timeout ends the probe with exit status 1.`,
	Example: `  # Probe with settings from the config file
  lanprobe probe

  # Live progress display
  lanprobe probe --tui

  # Directed broadcast on eth0, short waits
  lanprobe probe -i eth0 --timeout 2 --max-attempts 3`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg, false); err != nil {
		return err
	}
	component, err := cfg.ProbeComponent()
	if err != nil {
		return err
	}

	epCfg := cfg.EndpointConfig()
	dispatcher := &breakDispatcher{}

	header := ui.NewHeader("Discovery probe", "lanprobe probe",
		ui.Param{Key: "Listen", Value: netip.AddrPortFrom(netip.IPv4Unspecified(), epCfg.BindPort).String()},
		ui.Param{Key: "Port", Value: strconv.Itoa(int(cfg.Network.BroadcastPort))},
		ui.Param{Key: "Identity", Value: fmt.Sprintf("%s uid=%d %s", component, cfg.Identity.UID, cfg.Identity.Username)},
		ui.Param{Key: "Budget", Value: fmt.Sprintf("%d x %s", epCfg.MaxAttempts+1, epCfg.ReceiveTimeout)},
	)
	if epCfg.Interface != "" {
		header.Add("Interface", epCfg.Interface)
	}

	probe := func(observe discovery.Observer) (*discovery.Result, error) {
		opts := append([]discovery.Option{
			discovery.WithDispatcher(dispatcher),
			discovery.WithObserver(observe),
		}, endpointOptions...)
		ep, err := discovery.New(epCfg, opts...)
		defer ep.Close()
		if err != nil {
			return nil, err
		}

		p := discovery.NewProber(ep, component, cfg.Identity.UID, cfg.Identity.Username)
		p.Port = cfg.Network.BroadcastPort
		return p.Probe()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	var res *discovery.Result
	if useTUI && ui.IsTerminal(os.Stdout) {
		res, err = ui.RunProbe(ctx, cmd.OutOrStdout(), header, epCfg.MaxAttempts, probe)
		if err != nil && (errors.Is(err, ui.ErrInterrupted) || ctx.Err() != nil) {
			return &exitError{code: exitInterrupted, err: ui.ErrInterrupted}
		}
	} else {
		if useTUI {
			logging.Warn("stdout is not a terminal, using plain output")
		}
		printer := ui.NewPrinter(cmd.OutOrStdout())
		printer.PrintHeader(header)
		res, err = awaitProbe(ctx, func() (*discovery.Result, error) {
			return probe(printer.Observer(epCfg.MaxAttempts))
		})
		var ee *exitError
		if errors.As(err, &ee) {
			return err
		}
		if err != nil {
			printer.PrintResult(ui.NewFailureResult("No responder found", err, ui.ProbeTroubleshooting(err)))
		} else {
			printer.PrintResult(ui.NewSuccessResult("Responder found", ui.ProbeDetails(res, time.Since(started))...))
		}
	}

	if err != nil {
		code := exitNoReply
		if dispatcher.broke.Load() || discovery.IsFatal(err) {
			code = exitFatal
		}
		return &exitError{code: code, err: err}
	}

	if verbose {
		data, encErr := protocol.Encode(res.Announcement)
		if encErr == nil {
			ui.NewPrinter(cmd.OutOrStdout()).PrintDatagram("Announcement", data)
		}
	}
	return nil
}

// awaitProbe runs op until it finishes or ctx is done. The endpoint blocks
// inside its receive loop without watching ctx, so an interrupted probe is
// left running and its sockets are released when the process exits.
func awaitProbe(ctx context.Context, op func() (*discovery.Result, error)) (*discovery.Result, error) {
	type outcome struct {
		res *discovery.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := op()
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		logging.Warn("Probe interrupted", zap.Error(ctx.Err()))
		return nil, &exitError{code: exitInterrupted, err: ui.ErrInterrupted}
	}
}

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Answer discovery queries until interrupted",
	Long: `Listen on the discovery port and answer every query with an announcement.

The announcement echoes the query's probe id and is sent to the querying
host at the reply port named in the query. With --mdns the responder is
also registered as ` + mdns.ServiceType + `, so 'lanprobe scan' finds it.`,
	Example: `  # Answer as machine #1
  lanprobe respond

  # Announce a cellapp that serves on 10.0.0.5:7000, visible over mDNS
  lanprobe respond --component cellapp --id 3 --serve-addr 10.0.0.5:7000 --mdns`,
	RunE: runRespond,
}

func runRespond(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg, true); err != nil {
		return err
	}
	component, err := cfg.ResponderComponent()
	if err != nil {
		return err
	}

	var serve netip.AddrPort
	if serveAddr != "" {
		if serve, err = netip.ParseAddrPort(serveAddr); err != nil {
			return fmt.Errorf("invalid --serve-addr: %w", err)
		}
		if !serve.Addr().Unmap().Is4() {
			return fmt.Errorf("invalid --serve-addr: %s is not IPv4", serve.Addr())
		}
	}

	r := responder.New(responder.Config{
		Port:          cfg.Network.BroadcastPort,
		Component:     component,
		ComponentID:   cfg.Responder.ComponentID,
		Hostname:      cfg.ResponderHostname(),
		ServeAddr:     serve,
		MatchUID:      cfg.Responder.MatchUID,
		UID:           cfg.Identity.UID,
		AdvertiseMDNS: cfg.Responder.AdvertiseMDNS,
		RecvWindow:    cfg.Network.RecvWindow,
	})
	if err := r.Listen(); err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader(ui.NewHeader("Responder", "lanprobe respond",
		ui.Param{Key: "Listen", Value: r.LocalAddr().String()},
		ui.Param{Key: "Component", Value: fmt.Sprintf("%s #%d", component, cfg.Responder.ComponentID)},
		ui.Param{Key: "Hostname", Value: cfg.ResponderHostname()},
		ui.Param{Key: "mDNS", Value: strconv.FormatBool(cfg.Responder.AdvertiseMDNS)},
		ui.Param{Key: "Match UID", Value: strconv.FormatBool(cfg.Responder.MatchUID)},
	))
	printer.Println("  Answering queries, press Ctrl+C to stop.")

	err = r.Serve(cmd.Context())

	st := r.Stats()
	summary := ui.NewSuccessResult("Responder stopped",
		ui.Param{Key: "Received", Value: strconv.FormatUint(st.Received, 10)},
		ui.Param{Key: "Answered", Value: strconv.FormatUint(st.Answered, 10)},
		ui.Param{Key: "Ignored", Value: strconv.FormatUint(st.Ignored, 10)},
		ui.Param{Key: "Dropped", Value: strconv.FormatUint(st.Dropped, 10)},
		ui.Param{Key: "Send errors", Value: strconv.FormatUint(st.Failed, 10)},
	)
	if err != nil {
		summary = ui.NewFailureResult("Responder failed", err, []string{
			"Run with --log-level debug for socket errors",
		})
	}
	printer.PrintResult(summary)
	return err
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Look for responders over mDNS",
	Long: `Browse for responders started with 'lanprobe respond --mdns'.

mDNS crosses more network setups than raw broadcast, so a scan helps tell a
missing responder apart from a blocked broadcast.`,
	Example: `  # Scan for 5 seconds (default)
  lanprobe scan

  # Stop at the first cellapp
  lanprobe scan --component cellapp --timeout 15`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	scanner := mdns.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning for %s responders (timeout: %ds)...\n\n", mdns.ServiceType, scanTimeout)

	var services []*mdns.Service
	if componentName != "" {
		component, err := protocol.ParseComponentType(componentName)
		if err != nil {
			return err
		}
		svc, err := scanner.WaitFor(cmd.Context(), component)
		if err != nil {
			return err
		}
		services = append(services, svc)
	} else {
		var err error
		if services, err = scanner.Scan(cmd.Context()); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
	}

	printer := ui.NewPrinter(out)
	if len(services) == 0 {
		printer.PrintResult(ui.NewWarningResult("No responders found").
			AddDetail("Hint", "start one with: lanprobe respond --mdns").
			AddDetail("Hint", "try a longer --timeout"))
		return nil
	}

	fmt.Fprintf(out, "Found %d responder(s):\n\n", len(services))
	for i, svc := range services {
		fmt.Fprintf(out, "%d. %s\n", i+1, svc.Instance)
		fmt.Fprintf(out, "   Component: %s #%d\n", svc.Component, svc.ComponentID)
		fmt.Fprintf(out, "   Address:   %s\n", svc.Addr)
		if v := svc.GetMetadata(mdns.TXTVersion); v != "" {
			fmt.Fprintf(out, "   Version:   %s\n", v)
		}
		fmt.Fprintln(out)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteDefault(configPath, force)
		if errors.Is(err, config.ErrExists) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.GetConfigPath(); err != nil {
				return err
			}
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if _, statErr := os.Stat(path); statErr != nil {
			fmt.Fprintf(out, "# %s does not exist; showing defaults\n", path)
		} else {
			fmt.Fprintf(out, "# %s\n", path)
		}
		_, err = out.Write(data)
		logging.Debug("Config shown", zap.String("path", path))
		return err
	},
}
