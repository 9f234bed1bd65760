package mdns

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/lanprobe/internal/discovery"
	"github.com/muurk/lanprobe/internal/logging"
	"github.com/muurk/lanprobe/internal/protocol"
)

const (
	// ServiceType is the mDNS service type lanprobe responders register
	ServiceType = "_lanprobe._udp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default browse duration
	DefaultScanTimeout = 5 * time.Second
)

// Scanner browses for lanprobe responders
type Scanner struct {
	// Timeout is the maximum time to browse
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan collects every responder seen before the timeout or ctx ends.
func (s *Scanner) Scan(ctx context.Context) ([]*Service, error) {
	var (
		mu       sync.Mutex
		services []*Service
	)
	err := s.browse(ctx, func(svc *Service) bool {
		mu.Lock()
		services = append(services, svc)
		mu.Unlock()
		return false
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return services, nil
}

// WaitFor returns the first responder of the given component type.
func (s *Scanner) WaitFor(ctx context.Context, component protocol.ComponentType) (*Service, error) {
	var found *Service
	err := s.browse(ctx, func(svc *Service) bool {
		if svc.Component != component {
			return false
		}
		found = svc
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("no %s responder found within %v", component, s.Timeout)
	}
	return found, nil
}

// browse feeds parsed services to fn until fn returns true, the timeout
// elapses, or ctx is cancelled. fn runs on a single goroutine that has
// finished by the time browse returns.
func (s *Scanner) browse(ctx context.Context, fn func(*Service) bool) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := parseServiceEntry(entry)
				if svc == nil {
					continue
				}
				logging.Debug("mDNS responder seen",
					zap.String("instance", svc.Instance),
					zap.Stringer("addr", svc.Addr))
				if fn(svc) {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		<-done
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Service.
// Returns nil when the entry has no usable IPv4 address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Service {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	// Discovery datagrams are IPv4 only
	var addr netip.Addr
	for _, ip := range entry.AddrIPv4 {
		if a, ok := netip.AddrFromSlice(ip.To4()); ok {
			addr = a
			break
		}
	}
	if !addr.IsValid() {
		return nil
	}

	port := entry.Port
	if port <= 0 || port > 65535 {
		port = discovery.DefaultBroadcastPort
	}

	metadata := parseTXT(entry.Text)
	svc := &Service{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		Addr:         netip.AddrPortFrom(addr, uint16(port)),
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
	if name, ok := metadata[TXTComponent]; ok {
		if c, err := protocol.ParseComponentType(name); err == nil {
			svc.Component = c
		}
	}
	if id, ok := metadata[TXTComponentID]; ok {
		if v, err := strconv.ParseUint(id, 10, 64); err == nil {
			svc.ComponentID = v
		}
	}
	return svc
}
