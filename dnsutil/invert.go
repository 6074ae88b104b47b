package dnsutil

import (
	"fmt"
	"net"
	"strings"
)

// InvertPtrToIPv6 takes the first part of a reverse query name, less the "ip6.arpa."
// suffix, and converts it back into an ipv6 address, if possible. Expected input looks
// something like:
// 3.f.6.d.4.d.3.b.c.4.3.0.1.3.8.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.e.f
//
// Like any name in the DNS, a reverse qName does not *have* to represent an IP address,
// as a rogue query can come in with anything at all in qName, thus all the checking and
// potential error return if the string doesn't parse. Exactly 32 single-nibble labels
// are required; anything shorter, longer or non-hex is an error. Upper-case hex is
// accepted as qNames are matched case-insensitively in the DNS, tho our callers
// normally lower-case the name first.
func InvertPtrToIPv6(qName string) (net.IP, error) {
	if len(qName) == 0 {
		return nil, fmt.Errorf("empty reverse ipv6 address qName")
	}
	var hex [V6NibbleCount]byte
	reverse := strings.Split(qName, ".")
	if len(reverse) != V6NibbleCount {
		return nil, fmt.Errorf("malformed reverse ipv6 address '%s'", qName)
	}
	for ix, hStr := range reverse {
		if len(hStr) != 1 {
			return nil, fmt.Errorf("malformed reverse ipv6 address '%s'", qName)
		}
		h := hStr[0]
		switch {
		case h >= '0' && h <= '9':
			hex[ix] = h - '0'
		case h >= 'a' && h <= 'f':
			hex[ix] = h - 'a' + 10
		case h >= 'A' && h <= 'F':
			hex[ix] = h - 'A' + 10
		default:
			return nil, fmt.Errorf("malformed reverse ipv6 address '%s'", qName)
		}
	}

	ip := make(net.IP, net.IPv6len) // Create an allocated net.IP
	ix := 15
	for rx := 0; rx < V6NibbleCount; rx += 2 {
		ip[ix] = hex[rx+1]<<4 + hex[rx]
		ix--
	}

	return ip, nil
}
