package server

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/hashicorp/mdns"
)

// MDNSServiceType is the service the bridge announces on the local network.
const MDNSServiceType = "_hostbridge._tcp"

// Advertiser announces a running bridge over mDNS until Shutdown.
type Advertiser struct {
	server *mdns.Server
}

// Advertise announces addr under instance. Unspecified listen addresses
// advertise every local address.
func Advertise(instance string, addr net.Addr, txt []string) (*Advertiser, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot advertise %s address %s", addr.Network(), addr)
	}

	host, _ := os.Hostname()
	var ips []net.IP
	if !tcpAddr.IP.IsUnspecified() && tcpAddr.IP != nil {
		ips = []net.IP{tcpAddr.IP}
	}

	service, err := mdns.NewMDNSService(instance, MDNSServiceType, "", "", tcpAddr.Port, ips, txt)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}

	slog.Info("Advertising bridge over mDNS", "instance", instance, "service", MDNSServiceType, "port", tcpAddr.Port, "host", host)
	return &Advertiser{server: srv}, nil
}

func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}
