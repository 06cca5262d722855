package netutil

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// NetAddr2IpPort Golang内置网络地址转为常用的ip端口形式
func NetAddr2IpPort(addr net.Addr) (ip string, port int) {
	switch addr := addr.(type) {
	case *net.UDPAddr:
		ip = addr.IP.String()
		port = addr.Port
	case *net.TCPAddr:
		ip = addr.IP.String()
		port = addr.Port
	}
	return
}

// ParseIPv4 严格解析点分十进制的IPv4地址，只接受4段，每段0-255
// 不接受域名、IPv6以及IPv4-mapped IPv6
func ParseIPv4(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid ipv4 address %q: %w", s, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("invalid ipv4 address %q: not an ipv4 address", s)
	}
	return addr, nil
}

// TCPAddr 把ip和端口组合成可以直接拨号的地址，端口必须在1-65535之间
func TCPAddr(ip netip.Addr, port int) (*net.TCPAddr, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	return net.TCPAddrFromAddrPort(netip.AddrPortFrom(ip, uint16(port))), nil
}
