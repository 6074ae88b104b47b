package dnsutil

import (
	"encoding/hex"
	"net"

	"github.com/miekg/dns"
)

// DigestName returns the hostname synthesized for an address for which no override
// exists: the 32 hex nibbles of the address in regular (most significant first) order as
// a single label, under the configured suffix. This is exactly the reverse qName with
// its labels inverted and the dots squeezed out, so the name remains recognizable to
// anyone staring at a dig of the original query.
//
// The suffix parameter is assumed to be canonical.
func DigestName(ip net.IP, suffix string) string {
	s := hex.EncodeToString(ip.To16())
	if len(suffix) > 0 { // The normal use-case
		s += "." + suffix
	}

	return s
}

// SynthesizePTR builds the PTR RR answering qName with the supplied hostname. The TTL
// is left at zero for the caller to fill in from config.
func SynthesizePTR(qName, hostname string) *dns.PTR {
	ptr := new(dns.PTR)
	ptr.Hdr.Name = qName
	ptr.Hdr.Class = dns.ClassINET
	ptr.Hdr.Rrtype = dns.TypePTR
	ptr.Ptr = hostname

	return ptr
}
