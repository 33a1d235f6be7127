// Package mdns announces the agent's REST API on the local network so
// front-ends can find burn-capable hosts without configuration.
package mdns

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_discburn._tcp"

// Service represents an mDNS service announcer
type Service struct {
	server   *zeroconf.Server
	logger   *slog.Logger
	port     int
	hostname string
	ifaces   []net.Interface
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewService creates a new mDNS service announcer
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Register announces the agent service via mDNS
func (s *Service) Register(ctx context.Context, port int) error {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}

	ifaces, err := usableInterfaces()
	if err != nil {
		return err
	}

	server, err := zeroconf.Register(
		hostname,
		serviceType,
		"local.",
		port,
		[]string{"api=rest"},
		ifaces,
	)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	s.server = server
	s.port = port
	s.hostname = hostname
	s.ifaces = ifaces

	ifaceNames := make([]string, len(ifaces))
	for i, iface := range ifaces {
		ifaceNames[i] = iface.Name
	}
	s.logger.Info("registered mDNS service",
		"hostname", hostname,
		"service", serviceType,
		"port", port,
		"interfaces", ifaceNames,
	)

	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.supervise()

	return nil
}

// usableInterfaces picks the up, non-loopback interfaces carrying an IPv4
// address. DISCBURN_INTERFACE forces a specific one.
func usableInterfaces() ([]net.Interface, error) {
	if name := os.Getenv("DISCBURN_INTERFACE"); name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get interface %s: %w", name, err)
		}
		return []net.Interface{*iface}, nil
	}

	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var ifaces []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				ifaces = append(ifaces, iface)
				break
			}
		}
	}

	if len(ifaces) == 0 {
		return nil, fmt.Errorf("no suitable network interfaces found")
	}
	return ifaces, nil
}

// Shutdown stops the mDNS service announcement
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server != nil {
		s.server.Shutdown()
		s.logger.Info("mDNS service shutdown")
	}
}

// supervise refreshes the registration periodically so the TTL never lapses
func (s *Service) supervise() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh re-registers without downtime: the old announcement is torn down
// only once the new one is live
func (s *Service) refresh() {
	oldServer := s.server

	newServer, err := zeroconf.Register(
		s.hostname,
		serviceType,
		"local.",
		s.port,
		[]string{"api=rest"},
		s.ifaces,
	)
	if err != nil {
		s.logger.Error("failed to refresh mDNS service", "error", err)
		return
	}

	s.server = newServer
	if oldServer != nil {
		oldServer.Shutdown()
	}
}

// Discover finds agent instances on the local network
func Discover(ctx context.Context, timeout time.Duration) ([]*zeroconf.ServiceEntry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var results []*zeroconf.ServiceEntry

	go func() {
		for entry := range entries {
			results = append(results, entry)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := resolver.Browse(ctx, serviceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("failed to browse services: %w", err)
	}

	<-ctx.Done()
	return results, nil
}
