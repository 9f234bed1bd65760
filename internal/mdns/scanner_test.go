package mdns

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/lanprobe/internal/protocol"
)

func entry(instance, host string, port int, v4 []string, v6 []string, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.Text = txt
	for _, a := range v4 {
		e.AddrIPv4 = append(e.AddrIPv4, net.ParseIP(a))
	}
	for _, a := range v6 {
		e.AddrIPv6 = append(e.AddrIPv6, net.ParseIP(a))
	}
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name          string
		entry         *zeroconf.ServiceEntry
		wantNil       bool
		wantAddr      string
		wantComponent protocol.ComponentType
		wantID        uint64
	}{
		{
			name:          "responder with TXT",
			entry:         entry("node-a", "node-a.local.", 20086, []string{"192.168.4.16"}, nil, "component=machine", "component_id=42", "version=v0.3.0"),
			wantAddr:      "192.168.4.16:20086",
			wantComponent: protocol.ComponentMachine,
			wantID:        42,
		},
		{
			name:          "custom port",
			entry:         entry("node-b", "node-b.local.", 30000, []string{"10.0.0.5"}, nil, "component=logger"),
			wantAddr:      "10.0.0.5:30000",
			wantComponent: protocol.ComponentLogger,
		},
		{
			name:     "no port specified (should default to 20086)",
			entry:    entry("node-c", "node-c.local.", 0, []string{"172.16.0.1"}, nil),
			wantAddr: "172.16.0.1:20086",
		},
		{
			name:     "prefers first IPv4 when both families present",
			entry:    entry("node-d", "node-d.local.", 20086, []string{"192.168.1.50", "192.168.1.51"}, []string{"fe80::2"}),
			wantAddr: "192.168.1.50:20086",
		},
		{
			name:     "unknown component name is ignored",
			entry:    entry("node-e", "node-e.local.", 20086, []string{"192.168.1.9"}, nil, "component=toaster", "component_id=nope"),
			wantAddr: "192.168.1.9:20086",
		},
		{
			name:    "IPv6 only",
			entry:   entry("node-f", "node-f.local.", 20086, nil, []string{"fe80::1"}),
			wantNil: true,
		},
		{
			name:    "no addresses",
			entry:   entry("node-g", "node-g.local.", 20086, nil, nil),
			wantNil: true,
		},
		{
			name:    "empty instance",
			entry:   entry("", "x.local.", 20086, []string{"192.168.1.1"}, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if svc != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", svc)
				}
				return
			}
			if svc == nil {
				t.Fatal("parseServiceEntry() = nil, want service")
			}

			if svc.Addr != netip.MustParseAddrPort(tt.wantAddr) {
				t.Errorf("svc.Addr = %s, want %s", svc.Addr, tt.wantAddr)
			}
			if svc.Component != tt.wantComponent {
				t.Errorf("svc.Component = %s, want %s", svc.Component, tt.wantComponent)
			}
			if svc.ComponentID != tt.wantID {
				t.Errorf("svc.ComponentID = %d, want %d", svc.ComponentID, tt.wantID)
			}
			if svc.Instance != tt.entry.Instance || svc.Hostname != tt.entry.HostName {
				t.Errorf("svc = %s, want instance %q host %q", svc, tt.entry.Instance, tt.entry.HostName)
			}
			if time.Since(svc.DiscoveredAt) > time.Second {
				t.Errorf("svc.DiscoveredAt is not recent: %v", svc.DiscoveredAt)
			}
		})
	}
}

func TestTXTRecords_RoundTrip(t *testing.T) {
	txt := TXTRecords(protocol.ComponentDBMgr, 9001, "v1.0.0")
	e := entry("db", "db.local.", 20086, []string{"192.168.0.2"}, nil, txt...)

	svc := parseServiceEntry(e)
	if svc == nil {
		t.Fatal("parseServiceEntry() = nil")
	}
	if svc.Component != protocol.ComponentDBMgr || svc.ComponentID != 9001 {
		t.Errorf("parsed %s id %d", svc.Component, svc.ComponentID)
	}
	if got := svc.GetMetadata(TXTVersion); got != "v1.0.0" {
		t.Errorf("version = %q, want v1.0.0", got)
	}
}

func TestTXTRecords_NoVersion(t *testing.T) {
	for _, r := range TXTRecords(protocol.ComponentBots, 1, "") {
		if strings.HasPrefix(r, TXTVersion+"=") {
			t.Errorf("unexpected version record %q", r)
		}
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"path=/", "flag", "k=v=w", "=orphan"})
	want := map[string]string{
		"path": "/",
		"flag": "", // Key without value
		"k":    "v=w",
	}

	if len(got) != len(want) {
		t.Errorf("parseTXT has %d entries, want %d: %v", len(got), len(want), got)
	}
	for key, expected := range want {
		if actual, ok := got[key]; !ok {
			t.Errorf("missing key %q", key)
		} else if actual != expected {
			t.Errorf("parseTXT[%q] = %q, want %q", key, actual, expected)
		}
	}
}

func TestService_GetMetadata_Nil(t *testing.T) {
	var s Service
	if got := s.GetMetadata("anything"); got != "" {
		t.Errorf("GetMetadata() on empty service = %q", got)
	}
}

func TestAdvertise_Validation(t *testing.T) {
	tests := []struct {
		name string
		ad   Advertisement
	}{
		{name: "missing instance", ad: Advertisement{Port: 20086}},
		{name: "zero port", ad: Advertisement{Instance: "node-a"}},
		{name: "port too large", ad: Advertisement{Instance: "node-a", Port: 70000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := Advertise(ctx, tt.ad); err == nil {
				t.Error("Advertise() accepted an invalid advertisement")
			}
		})
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}
