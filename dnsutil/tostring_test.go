package dnsutil

import (
	"testing"

	"github.com/miekg/dns"
)

func TestToString(t *testing.T) {
	if s := TypeToString(dns.TypePTR); s != "PTR" {
		t.Error("TypeToString broke", s)
	}
	if s := TypeToString(62999); s != "T-62999" {
		t.Error("Numeric fallback broke", s)
	}
	if s := ClassToString(dns.ClassINET); s != "IN" {
		t.Error("ClassToString broke", s)
	}
	if s := ClassToString(dns.Class(62999)); s != "C-62999" {
		t.Error("Numeric fallback broke", s)
	}
	if s := RcodeToString(dns.RcodeNameError); s != "NXDOMAIN" {
		t.Error("RcodeToString broke", s)
	}
	if s := RcodeToString(62999); s != "r-62999" {
		t.Error("Numeric fallback broke", s)
	}
}
