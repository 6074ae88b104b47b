package main

import (
	"encoding/hex"
	"net"
	"time"

	"github.com/dchest/siphash"
	"github.com/miekg/dns"

	"github.com/cpjudd/ptr6d/dnsutil"
)

const (
	cCookieLength    = 8 * 2  // Cookie lengths and limits in terms of hex strings
	sCookieMinLength = 16 * 2 // as miekg presents and expects cookies that way.
	sCookieMaxLength = 32 * 2

	// Validity window for the timestamp embedded in a presented server cookie,
	// expressed in seconds of serial-number arithmetic. rfc7873 recommends accepting
	// cookies up to an hour old and tolerating modest clock skew into the future.
	sCookieMaxAge  = 60 * 60
	sCookieMaxSkew = 60 * 5
)

// findCookies searches the OPT RR for rfc7873 cookies. It sets all the cookie-related
// variables in the request.
//
// Regardless of the validity of the cookie data, whatever cookie material is present is
// set in the request as it may be of use for logging or debug purposes.
func (t *request) findCookies() {
	if t.opt == nil {
		return
	}

	var so *dns.EDNS0_COOKIE
	for _, subopt := range t.opt.Option {
		var ok bool
		if so, ok = subopt.(*dns.EDNS0_COOKIE); ok {
			break
		}
	}
	if so == nil {
		return
	}
	t.cookiesPresent = true

	if len(so.Cookie) == 0 { // If the sub-opt is present so should the client cookie
		return
	}

	if len(so.Cookie) < cCookieLength { // If present, must be exactly 8 bytes - 16 hex
		t.clientCookie = so.Cookie // Provide potential logging material
		return
	}

	t.clientCookie = so.Cookie[:cCookieLength]
	t.serverCookie = so.Cookie[cCookieLength:]

	if len(t.serverCookie) == 0 {
		t.cookiesValid = true
	} else if len(t.serverCookie) >= sCookieMinLength && len(t.serverCookie) <= sCookieMaxLength {
		t.cookiesValid = true
	}
}

// exchangeCookie completes the server side of the rfc7873 exchange: note whether the
// presented server cookie still verifies, then place a freshly minted cookie in the
// request for the reply. Minting on every exchange means a stale but once-valid cookie
// is transparently reissued.
//
// Only call with a well-formed client cookie.
func (t *server) exchangeCookie(req *request) {
	req.stats.gen.cookie++
	if len(req.serverCookie) > 0 &&
		!serverCookieValid(t.cookieSecrets, req.src.String(),
			req.clientCookie, req.serverCookie) {
		req.stats.gen.wrongCookie++
	}
	req.cookieOut = req.clientCookie +
		genServerCookie(t.cookieSecrets, req.src.String(), req.clientCookie, time.Now())
}

// genOpt creates an OPT RR with all the required sub-opt values. Return the populated
// *dns.OPT if there is at least one sub-opt value or size to advertise, otherwise
// return nil.
func (t *request) genOpt() *dns.OPT {
	if t.opt == nil && len(t.cookieOut) == 0 { // Nothing to respond to
		return nil
	}

	opt := new(dns.OPT)
	opt.Hdr.Name = "."
	opt.Hdr.Rrtype = dns.TypeOPT
	opt.Hdr.Ttl = 0 // extended RCODE and flags
	opt.SetUDPSize(dnsutil.MaxUDPSize)

	if len(t.cookieOut) > 0 {
		e := new(dns.EDNS0_COOKIE)
		e.Code = dns.EDNS0COOKIE
		e.Cookie = t.cookieOut
		opt.Option = append(opt.Option, e)
	}

	return opt
}

// genServerCookie generates the server cookie. Originally the cookie was just an
// arbitrary array of bytes, but as of rfc9018, a 128 bit server cookie has
// structure. This function always generates an rfc9018 128 bit server cookie as:
//
// [0:1] Version - currently 0x1
// [1:4] Reserved - must be 0x0
// [4:8] Timestamp - serial number arithmetic unsigned unix time
// [8:16] Hash
//
// The recommended hash is SipHash-2-4 by good ol' DJB et al.
//
// The input into SipHash-2-4 MUST be either precisely 20 bytes in case of an IPv4
// Client-IP or precisely 32 bytes in case of an IPv6 Client-IP.
//
// Returned as a hex string, thus 32 bytes long.
func genServerCookie(secrets [2]uint64, clientAddr, clientCookieHex string, now time.Time) string {
	h, _, _ := net.SplitHostPort(clientAddr)
	ip := net.ParseIP(h)                            // Convert everything back to binary
	cCookie, _ := hex.DecodeString(clientCookieHex) // byte slices

	// Construct the first part of the server cookie as that's input to the hash
	sCookie := make([]byte, 16)
	sCookie[0] = 1
	now32 := uint32(now.Unix())
	sCookie[4] = byte(now32 >> 24)
	sCookie[5] = byte(now32 & 0x00FF0000 >> 16)
	sCookie[6] = byte(now32 & 0x0000FF00 >> 8)
	sCookie[7] = byte(now32 & 0x000000FF)

	sum64 := cookieHash(secrets, cCookie, sCookie[:8], ip)

	// Complete construction of the server cookie

	for ix := 8; ix < 16; ix++ {
		sCookie[ix] = byte(sum64 & 0xFF)
		sum64 >>= 8
	}

	return hex.EncodeToString(sCookie)
}

// serverCookieValid re-derives the hash of a presented server cookie and checks that
// its timestamp is inside the acceptance window. Only rfc9018 version 1 cookies can
// ever validate since that's all we mint.
func serverCookieValid(secrets [2]uint64, clientAddr, clientCookieHex, serverCookieHex string) bool {
	sCookie, err := hex.DecodeString(serverCookieHex)
	if err != nil || len(sCookie) != 16 {
		return false
	}
	if sCookie[0] != 1 {
		return false
	}

	ts := uint32(sCookie[4])<<24 | uint32(sCookie[5])<<16 |
		uint32(sCookie[6])<<8 | uint32(sCookie[7])

	// Serial number arithmetic (rfc1982) so a wrap of unix time doesn't invalidate
	// the world for an hour.
	age := int32(uint32(time.Now().Unix()) - ts)
	if age > sCookieMaxAge || age < -sCookieMaxSkew {
		return false
	}

	h, _, _ := net.SplitHostPort(clientAddr)
	ip := net.ParseIP(h)
	cCookie, err := hex.DecodeString(clientCookieHex)
	if err != nil {
		return false
	}

	sum64 := cookieHash(secrets, cCookie, sCookie[:8], ip)
	for ix := 8; ix < 16; ix++ {
		if sCookie[ix] != byte(sum64&0xFF) {
			return false
		}
		sum64 >>= 8
	}

	return true
}

// cookieHash computes the rfc9018 hash:
// ( Client Cookie | Version | Reserved | Timestamp | Client-IP, Server Secret )
//
// hashInput ends up being either 20 or 32 bytes long for ipv4 and ipv6 respectively.
func cookieHash(secrets [2]uint64, cCookie, sCookiePrefix []byte, ip net.IP) uint64 {
	hashInput := make([]byte, 0, 32)
	hashInput = append(hashInput, cCookie...)       // Client Cookie
	hashInput = append(hashInput, sCookiePrefix...) // Version | Reserved | Timestamp
	if ipv4 := ip.To4(); ipv4 != nil {
		hashInput = append(hashInput, ipv4[:4]...) // Client-IP
	} else {
		hashInput = append(hashInput, ip.To16()[:16]...) // Client-IP
	}

	return siphash.Hash(secrets[0], secrets[1], hashInput)
}
