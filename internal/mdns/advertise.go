package mdns

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/lanprobe/internal/logging"
	"github.com/muurk/lanprobe/internal/protocol"
	"github.com/muurk/lanprobe/internal/version"
)

// Advertisement describes the responder being registered.
type Advertisement struct {
	Instance    string
	Port        int
	Component   protocol.ComponentType
	ComponentID uint64
	// Interfaces restricts the announcement; nil means all multicast
	// capable interfaces.
	Interfaces []net.Interface
}

func (a Advertisement) validate() error {
	if a.Instance == "" {
		return errors.New("mdns: instance name is required")
	}
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("mdns: invalid port %d", a.Port)
	}
	return nil
}

// Advertise registers the responder and keeps it registered until ctx is
// done. It returns nil on cancellation.
func Advertise(ctx context.Context, ad Advertisement) error {
	if err := ad.validate(); err != nil {
		return err
	}

	txt := TXTRecords(ad.Component, ad.ComponentID, version.Version)
	server, err := zeroconf.Register(ad.Instance, ServiceType, ServiceDomain, ad.Port, txt, ad.Interfaces)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	defer server.Shutdown()

	logging.Info("mDNS service registered",
		zap.String("instance", ad.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", ad.Port),
		zap.Strings("txt", txt))

	<-ctx.Done()
	logging.Debug("mDNS service withdrawn", zap.String("instance", ad.Instance))
	return nil
}
