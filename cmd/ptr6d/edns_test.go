package main

import (
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/cpjudd/ptr6d/dnsutil"
)

const (
	testClientAddr   = "[fd00::2]:4056"
	testClientCookie = "0102030405060708" // 8 bytes of hex as miekg presents it
)

var testSecrets = [2]uint64{0x0123456789abcdef, 0xfedcba9876543210}

func addCookieOpt(m *dns.Msg, cookie string) {
	opt := new(dns.OPT)
	opt.Hdr.Name = "."
	opt.Hdr.Rrtype = dns.TypeOPT
	opt.SetUDPSize(1400)
	e := new(dns.EDNS0_COOKIE)
	e.Code = dns.EDNS0COOKIE
	e.Cookie = cookie
	opt.Option = append(opt.Option, e)
	m.Extra = append(m.Extra, opt)
}

func respCookie(t *testing.T, resp *dns.Msg) string {
	t.Helper()
	opt := resp.IsEdns0()
	if opt == nil {
		t.Fatal("Expected an OPT in the reply")
	}
	for _, subopt := range opt.Option {
		if so, ok := subopt.(*dns.EDNS0_COOKIE); ok {
			return so.Cookie
		}
	}
	t.Fatal("Expected a COOKIE sub-opt in the reply")

	return ""
}

func TestGenServerCookie(t *testing.T) {
	now := time.Now()
	c1 := genServerCookie(testSecrets, testClientAddr, testClientCookie, now)
	if len(c1) != sCookieMinLength {
		t.Fatal("Server cookie should be 32 hex characters, not", len(c1))
	}
	if !strings.HasPrefix(c1, "01000000") { // Version 1, zero reserved
		t.Error("Cookie should lead with version and reserved bytes", c1)
	}

	c2 := genServerCookie(testSecrets, testClientAddr, testClientCookie, now)
	if c1 != c2 {
		t.Error("Same inputs should mint the same cookie", c1, c2)
	}

	c3 := genServerCookie(testSecrets, "[fd00::3]:4056", testClientCookie, now)
	if c1 == c3 {
		t.Error("Different client address should mint a different cookie")
	}
}

func TestServerCookieValid(t *testing.T) {
	fresh := genServerCookie(testSecrets, testClientAddr, testClientCookie, time.Now())
	if !serverCookieValid(testSecrets, testClientAddr, testClientCookie, fresh) {
		t.Error("Freshly minted cookie should validate")
	}

	wrongSecrets := [2]uint64{1, 2}
	if serverCookieValid(wrongSecrets, testClientAddr, testClientCookie, fresh) {
		t.Error("Cookie should not validate against different secrets")
	}

	if serverCookieValid(testSecrets, "[fd00::3]:4056", testClientCookie, fresh) {
		t.Error("Cookie should not validate for a different client address")
	}

	stale := genServerCookie(testSecrets, testClientAddr, testClientCookie,
		time.Now().Add(-2*time.Hour))
	if serverCookieValid(testSecrets, testClientAddr, testClientCookie, stale) {
		t.Error("Cookie past the age limit should not validate")
	}

	future := genServerCookie(testSecrets, testClientAddr, testClientCookie,
		time.Now().Add(time.Hour))
	if serverCookieValid(testSecrets, testClientAddr, testClientCookie, future) {
		t.Error("Cookie too far in the future should not validate")
	}

	if serverCookieValid(testSecrets, testClientAddr, testClientCookie, "01feedbeef") {
		t.Error("Truncated cookie should not validate")
	}
}

func TestDNSCookieExchange(t *testing.T) {
	srv := newTestServer(t, dnsutil.UDPNetwork)
	srv.cookieSecrets = testSecrets

	m := setQuestion(dns.ClassINET, dns.TypePTR, nibbleQName("2001:db8:1::1"))
	addCookieOpt(m, testClientCookie)
	resp := resolveWire(t, srv, m)
	if resp == nil || resp.Rcode != dns.RcodeSuccess {
		t.Fatal("Expected success", resp)
	}
	full := respCookie(t, resp)
	if !strings.HasPrefix(full, testClientCookie) {
		t.Error("Reply cookie should echo the client cookie", full)
	}
	sCookie := full[cCookieLength:]
	if !serverCookieValid(srv.cookieSecrets, "127.0.0.2:4056", testClientCookie, sCookie) {
		t.Error("Minted server cookie should validate", sCookie)
	}
	if srv.stats.gen.cookie != 1 || srv.stats.gen.wrongCookie != 0 {
		t.Error("Cookie counters wrong", srv.stats.gen.String())
	}

	// A stale-but-well-formed server cookie still gets an answer plus a fresh cookie
	stale := genServerCookie(srv.cookieSecrets, "127.0.0.2:4056", testClientCookie,
		time.Now().Add(-2*time.Hour))
	m = setQuestion(dns.ClassINET, dns.TypePTR, nibbleQName("2001:db8:1::1"))
	addCookieOpt(m, testClientCookie+stale)
	resp = resolveWire(t, srv, m)
	if resp == nil || resp.Rcode != dns.RcodeSuccess {
		t.Fatal("Expected success with a stale cookie", resp)
	}
	full = respCookie(t, resp)
	if full[cCookieLength:] == stale {
		t.Error("Stale cookie should have been reissued")
	}
	if srv.stats.gen.wrongCookie != 1 {
		t.Error("wrongCookie should be 1, not", srv.stats.gen.wrongCookie)
	}
}

func TestDNSCookieOnly(t *testing.T) {
	srv := newTestServer(t, dnsutil.UDPNetwork)
	srv.cookieSecrets = testSecrets

	m := new(dns.Msg)
	m.Id = 9
	addCookieOpt(m, testClientCookie)
	resp := resolveWire(t, srv, m)
	if resp == nil {
		t.Fatal("Cookie-only query deserves a reply")
	}
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 0 {
		t.Error("Cookie-only reply should be an empty success", resp)
	}
	full := respCookie(t, resp)
	if !strings.HasPrefix(full, testClientCookie) {
		t.Error("Reply cookie should echo the client cookie", full)
	}
	if srv.stats.gen.cookieOnly != 1 {
		t.Error("cookieOnly should be 1, not", srv.stats.gen.cookieOnly)
	}
}

func TestDNSCookieMalformed(t *testing.T) {
	srv := newTestServer(t, dnsutil.UDPNetwork)

	m := setQuestion(dns.ClassINET, dns.TypePTR, nibbleQName("2001:db8:1::1"))
	addCookieOpt(m, "01020304") // Client cookie too short
	resp := resolveWire(t, srv, m)
	if resp == nil {
		t.Fatal("Malformed cookie deserves a FORMERR reply")
	}
	if resp.Rcode != dns.RcodeFormatError {
		t.Error("Expected FORMERR, not", dnsutil.RcodeToString(resp.Rcode))
	}
	if srv.stats.gen.formatError != 1 {
		t.Error("formatError should be 1, not", srv.stats.gen.formatError)
	}
}

// A reply carrying an OPT advertises our own maximum, never echoes the client's.
func TestDNSAdvertisedSize(t *testing.T) {
	srv := newTestServer(t, dnsutil.UDPNetwork)
	srv.cookieSecrets = testSecrets

	m := setQuestion(dns.ClassINET, dns.TypePTR, nibbleQName("2001:db8:1::1"))
	addCookieOpt(m, testClientCookie)
	resp := resolveWire(t, srv, m)
	opt := resp.IsEdns0()
	if opt == nil {
		t.Fatal("Expected an OPT in the reply")
	}
	if opt.UDPSize() != dnsutil.MaxUDPSize {
		t.Error("Reply should advertise", dnsutil.MaxUDPSize, "not", opt.UDPSize())
	}

	// No OPT in the query, no cookie - no OPT in the reply
	m = setQuestion(dns.ClassINET, dns.TypePTR, nibbleQName("2001:db8:1::1"))
	resp = resolveWire(t, srv, m)
	if resp.IsEdns0() != nil {
		t.Error("Reply should not carry an unsolicited OPT")
	}
}
