package dnsutil

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

func TestDigestName(t *testing.T) {
	testCases := []struct{ ip, suffix, expect string }{
		{"2001:db8:1::1", "ip6.example.com.",
			"20010db8000100000000000000000001.ip6.example.com."},
		{"::1", "ip6.example.com.",
			"00000000000000000000000000000001.ip6.example.com."},
		{"fd2d:e363:95de:fe30:881:7bc5:cad2:50d7", "",
			"fd2de36395defe3008817bc5cad250d7"},
	}

	for ix, tc := range testCases {
		got := DigestName(net.ParseIP(tc.ip), tc.suffix)
		if got != tc.expect {
			t.Error(ix, "Mismatch. Got", got, "want", tc.expect)
		}
	}
}

func TestSynthesizePTR(t *testing.T) {
	qName := "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.1.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa."
	ptr := SynthesizePTR(qName, "host1.example.net.")
	if ptr.Hdr.Name != qName {
		t.Error("Wrong name", ptr.Hdr.Name)
	}
	if ptr.Hdr.Rrtype != dns.TypePTR {
		t.Error("Wrong type", ptr.Hdr.Rrtype)
	}
	if ptr.Hdr.Class != dns.ClassINET {
		t.Error("Wrong class", ptr.Hdr.Class)
	}
	if ptr.Ptr != "host1.example.net." {
		t.Error("Wrong target", ptr.Ptr)
	}
	if ptr.Hdr.Ttl != 0 {
		t.Error("TTL should be left for the caller, got", ptr.Hdr.Ttl)
	}
}
