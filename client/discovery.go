package client

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service a bridge server advertises.
const ServiceType = "_hostbridge._tcp"

// DiscoveredService is a bridge server found on the local network.
type DiscoveredService struct {
	ServiceName string
	Address     string
	Port        int
	TXTRecords  []string
}

// HostPort returns the dialable address of the service.
func (s *DiscoveredService) HostPort() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// Discover returns the first bridge server answering on the local network.
func Discover(timeout time.Duration) (*DiscoveredService, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entriesCh
	params.Timeout = timeout
	params.DisableIPv6 = true

	go func() {
		defer close(entriesCh)
		if err := mdns.Query(params); err != nil {
			slog.Warn("mDNS query failed", "service", ServiceType, "error", err)
		}
	}()

	for entry := range entriesCh {
		service, err := serviceFromEntry(entry)
		if err != nil {
			slog.Debug("Ignoring mDNS entry", "name", entry.Name, "error", err)
			continue
		}
		slog.Info("Discovered bridge server",
			"service_name", service.ServiceName,
			"address", service.Address,
			"port", service.Port,
		)
		// Drain the rest so the query goroutine can finish.
		go func() {
			for range entriesCh {
			}
		}()
		return service, nil
	}
	return nil, fmt.Errorf("mDNS discovery timeout for %s", ServiceType)
}

func serviceFromEntry(entry *mdns.ServiceEntry) (*DiscoveredService, error) {
	if entry == nil {
		return nil, fmt.Errorf("no %s service found", ServiceType)
	}

	var address string
	switch {
	case entry.AddrV4 != nil:
		address = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		address = entry.AddrV6.String()
	default:
		return nil, fmt.Errorf("no valid address found for service")
	}

	return &DiscoveredService{
		ServiceName: entry.Name,
		Address:     address,
		Port:        entry.Port,
		TXTRecords:  entry.InfoFields,
	}, nil
}
