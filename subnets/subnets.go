/*

Package subnets holds the configured set of IPv6 networks that ptr6d answers for. The
set is built once at startup and is immutable thereafter, so Match is safe for
unsynchronized concurrent use by query workers.

*/
package subnets

import (
	"fmt"
	"net"
	"strings"
)

// Set is an ordered list of IPv6 networks. Order matters: when networks overlap, the
// first containing network wins, matching the order the operator wrote them in.
type Set struct {
	nets []*net.IPNet
}

// Parse converts the configured CIDR strings into a Set. Any string that doesn't parse
// as an IPv6 CIDR is an error; the caller treats that as fatal at startup so that a typo
// never degenerates into silent per-query misses.
func Parse(cidrs []string) (*Set, error) {
	t := &Set{}
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("subnet %s: %w", cidr, err)
		}
		if _, bits := ipNet.Mask.Size(); bits != 8*net.IPv6len {
			return nil, fmt.Errorf("subnet %s is not ipv6", cidr)
		}
		t.nets = append(t.nets, ipNet)
	}

	return t, nil
}

// Match returns the first network containing ip, or nil if no network contains it.
func (t *Set) Match(ip net.IP) *net.IPNet {
	for _, n := range t.nets {
		if n.Contains(ip) {
			return n
		}
	}

	return nil
}

// Len returns the number of networks in the set.
func (t *Set) Len() int {
	return len(t.nets)
}

func (t *Set) String() string {
	s := make([]string, 0, len(t.nets))
	for _, n := range t.nets {
		s = append(s, n.String())
	}

	return strings.Join(s, ",")
}
