// Package dnssd contains the DNS-SD advertisement of the receiver.
package dnssd

import (
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	serviceType = "_raop._tcp"
	domain      = "local."
)

// InstanceName returns the name of the service instance,
// made of the hardware address in hexadecimal and the receiver name.
func InstanceName(name string, hwaddr net.HardwareAddr) string {
	return strings.ToUpper(fmt.Sprintf("%x", []byte(hwaddr))) + "@" + name
}

// TXTRecords returns the TXT records of the service.
func TXTRecords(password bool) []string {
	return []string{
		"txtvers=1",
		"ch=2",
		"cn=0,1",
		"et=0,1",
		"sv=false",
		"da=true",
		"sr=44100",
		"ss=16",
		fmt.Sprintf("pw=%t", password),
		"vn=3",
		"tp=TCP,UDP",
		"md=0,1,2",
		"vs=130.14",
		"sm=false",
		"ek=1",
	}
}

// Publisher advertises a receiver through multicast DNS.
type Publisher struct {
	Name         string
	Port         int
	HardwareAddr net.HardwareAddr
	Password     bool

	// interfaces on which the service is published. It defaults to all.
	Interfaces []net.Interface

	server *zeroconf.Server
}

// Start starts the advertisement.
func (p *Publisher) Start() error {
	if p.Name == "" {
		return fmt.Errorf("name not provided")
	}
	if len(p.HardwareAddr) == 0 {
		return fmt.Errorf("hardware address not provided")
	}

	var err error
	p.server, err = zeroconf.Register(
		InstanceName(p.Name, p.HardwareAddr),
		serviceType,
		domain,
		p.Port,
		TXTRecords(p.Password),
		p.Interfaces)
	if err != nil {
		return fmt.Errorf("unable to publish service: %w", err)
	}

	return nil
}

// Close stops the advertisement.
func (p *Publisher) Close() {
	if p.server != nil {
		p.server.Shutdown()
		p.server = nil
	}
}
