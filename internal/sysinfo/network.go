// Package sysinfo reads host state reported by the network, space and ls
// commands.
package sysinfo

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultRouteFile  = "/proc/net/route"
	DefaultResolvConf = "/etc/resolv.conf"
)

type Address struct {
	IP   string `json:"ip"`
	Mask string `json:"mask"`
}

type Interface struct {
	Name      string    `json:"name"`
	MAC       string    `json:"MAC"`
	Up        bool      `json:"up"`
	Addresses []Address `json:"addresses,omitempty"`
}

type Route struct {
	Interface   string `json:"interface"`
	Destination string `json:"destination"`
	Gateway     string `json:"gateway"`
	Mask        string `json:"mask"`
}

// Host locates the files network state is read from. Zero values select
// the Linux defaults.
type Host struct {
	RouteFile  string
	ResolvConf string
	// WLAN is the interface whose address and gateway are reported as the
	// device's primary uplink.
	WLAN string
}

func (h Host) routeFile() string {
	if h.RouteFile == "" {
		return DefaultRouteFile
	}
	return h.RouteFile
}

func (h Host) resolvConf() string {
	if h.ResolvConf == "" {
		return DefaultResolvConf
	}
	return h.ResolvConf
}

// Interfaces lists every network interface. Addresses are only reported
// for interfaces that are up.
func (h Host) Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	out := make([]Interface, 0, len(ifaces))
	for _, ifc := range ifaces {
		i := Interface{
			Name: ifc.Name,
			MAC:  strings.ToUpper(ifc.HardwareAddr.String()),
			Up:   ifc.Flags&net.FlagUp != 0,
		}
		if i.Up {
			i.Addresses = addresses(ifc)
		}
		out = append(out, i)
	}
	return out, nil
}

func addresses(ifc net.Interface) []Address {
	addrs, err := ifc.Addrs()
	if err != nil {
		return []Address{}
	}
	out := []Address{}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		out = append(out, Address{IP: ipn.IP.String(), Mask: maskString(ipn.Mask)})
	}
	return out
}

func maskString(m net.IPMask) string {
	if len(m) == net.IPv4len {
		return net.IP(m).String()
	}
	ones, _ := m.Size()
	return strconv.Itoa(ones)
}

// WLANAddress returns the first IPv4 address and mask of the WLAN
// interface, or empty strings when it has none.
func (h Host) WLANAddress() (ip, mask string) {
	if h.WLAN == "" {
		return "", ""
	}
	ifc, err := net.InterfaceByName(h.WLAN)
	if err != nil {
		return "", ""
	}
	for _, a := range addresses(*ifc) {
		if v4 := net.ParseIP(a.IP).To4(); v4 != nil {
			return a.IP, a.Mask
		}
	}
	return "", ""
}

// Routes reads the IPv4 routing table.
func (h Host) Routes() ([]Route, error) {
	f, err := os.Open(h.routeFile())
	if err != nil {
		return nil, fmt.Errorf("opening route table: %w", err)
	}
	defer f.Close()
	return ParseRoutes(f)
}

// ParseRoutes parses the /proc/net/route format. Addresses are stored as
// hex in host byte order, which is little-endian on every supported
// target.
func ParseRoutes(r io.Reader) ([]Route, error) {
	routes := []Route{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 8 || fields[0] == "Iface" {
			continue
		}
		routes = append(routes, Route{
			Interface:   fields[0],
			Destination: hexToIPv4(fields[1]),
			Gateway:     hexToIPv4(fields[2]),
			Mask:        hexToIPv4(fields[7]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading route table: %w", err)
	}
	return routes, nil
}

func hexToIPv4(s string) string {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return "0.0.0.0"
	}
	return net.IPv4(byte(v), byte(v>>8), byte(v>>16), byte(v>>24)).String()
}

// Gateway returns the default gateway of the WLAN interface, or "" when
// the routing table has none.
func (h Host) Gateway() string {
	routes, err := h.Routes()
	if err != nil {
		return ""
	}
	return DefaultGateway(routes, h.WLAN)
}

// DefaultGateway picks the gateway of the default route on iface. An empty
// iface matches any interface.
func DefaultGateway(routes []Route, iface string) string {
	for _, r := range routes {
		if r.Destination != "0.0.0.0" {
			continue
		}
		if iface != "" && r.Interface != iface {
			continue
		}
		return r.Gateway
	}
	return ""
}

// Nameservers lists the resolvers configured in resolv.conf.
func (h Host) Nameservers() []string {
	f, err := os.Open(h.resolvConf())
	if err != nil {
		return []string{}
	}
	defer f.Close()
	return ParseResolvConf(f)
}

func ParseResolvConf(r io.Reader) []string {
	out := []string{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "nameserver" {
			out = append(out, fields[1])
		}
	}
	return out
}
