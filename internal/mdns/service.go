package mdns

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/lanprobe/internal/protocol"
)

// TXT record keys published by a responder
const (
	TXTComponent   = "component"
	TXTComponentID = "component_id"
	TXTVersion     = "version"
)

// Service is a lanprobe responder found over mDNS
type Service struct {
	// Instance is the mDNS instance name (e.g., "node-a")
	Instance string

	// Hostname is the mDNS hostname (e.g., "node-a.local.")
	Hostname string

	// Addr is where the responder receives discovery queries
	Addr netip.AddrPort

	// Component and ComponentID come from TXT records, when present
	Component   protocol.ComponentType
	ComponentID uint64

	// Metadata contains every TXT record, parsed as key=value
	Metadata map[string]string

	// DiscoveredAt is when the service was seen
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("%s %s (%s) at %s", s.Component, s.Instance, s.Hostname, s.Addr)
}

// GetMetadata retrieves a TXT value by key, or returns empty string if not found
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// TXTRecords builds the TXT records a responder advertises.
func TXTRecords(component protocol.ComponentType, componentID uint64, version string) []string {
	txt := []string{
		TXTComponent + "=" + component.String(),
		TXTComponentID + "=" + strconv.FormatUint(componentID, 10),
	}
	if version != "" {
		txt = append(txt, TXTVersion+"="+version)
	}
	return txt
}

// parseTXT splits "key=value" records. A record without '=' maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		if key == "" {
			continue
		}
		metadata[key] = value
	}
	return metadata
}
