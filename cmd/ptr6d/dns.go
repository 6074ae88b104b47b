package main

import (
	"fmt"
	"net"
	"strings"

	"github.com/markdingo/miekgrrl"
	"github.com/markdingo/rrl"
	"github.com/miekg/dns"

	"github.com/cpjudd/ptr6d/dnsutil"
	"github.com/cpjudd/ptr6d/log"
	"github.com/cpjudd/ptr6d/overrides"
)

// resolve handles one unit of work: unpack the wire bytes, run the query thru the
// engine and pack the reply into u.reply. All query logic is embedded in this one
// rather large function so the progression from received bytes to reply bytes can be
// read top to bottom. A nil/empty u.reply means no reply is sent, which is the contract
// for malformed wire payloads.
//
// Every failure is contained here: nothing that arrives in u.raw may panic a worker or
// leak an error beyond this unit.
func (t *server) resolve(u *unit) {
	req := &request{response: new(dns.Msg), src: u.src, network: t.network}
	req.stats.gen.queries++
	defer t.addStats(&req.stats) // Add req.stats to t.stats

	query := new(dns.Msg)
	if err := query.Unpack(u.raw); err != nil {
		// Not a DNS message. No reply is possible as there's nothing coherent
		// to reply to; client timeout is the correct outcome.
		req.stats.gen.parseErrors++
		log.Minorf("Unpackable query from %s (%d bytes): %s",
			u.src.String(), len(u.raw), err.Error())
		return
	}
	req.query = query

	if t.cfg.logQueriesFlag.Load() {
		defer req.log()
	}

	// Validate query. Extra can have EDNS options so don't length check that slice.
	// As of rfc7873 a query with no questions and a COOKIE OPT is valid, so the
	// question count check comes after the cookie handling.
	if len(query.Question) > 0 {
		req.question = query.Question[0]           // Populate early for logger
		req.qName = strings.ToLower(req.question.Name) // Normalize
		req.logQName = req.qName                   // Can override with compact qName
	}

	req.opt = query.IsEdns0()
	req.findCookies()

	// If the query contains a UDP size value, use it if it's reasonable. TCP never
	// truncates so maxSize stays zero there.
	if t.network == dnsutil.UDPNetwork {
		req.maxSize = dnsutil.MinUDPSize // Default unless advertised higher
		if req.opt != nil {
			mz := req.opt.UDPSize()
			if mz > dnsutil.MaxUDPSize {
				mz = dnsutil.MaxUDPSize
			}
			if mz > req.maxSize {
				req.maxSize = mz
			}
		}
	}

	if req.cookiesPresent && !req.cookiesValid {
		// rfc7873#5.2.2 - a malformed COOKIE opt gets FORMERR, the one place a
		// bogus query earns more than silence or NXDomain.
		req.response.SetRcodeFormatError(query)
		req.stats.gen.formatError++
		req.logNote = "Malformed cookie"
		u.reply = t.packResponse(req)
		return
	}

	if req.cookiesPresent && len(req.clientCookie) == cCookieLength {
		t.exchangeCookie(req)
	}

	if len(query.Question) == 0 && req.cookiesPresent {
		// rfc7873#5.4 - a cookie-only query is answered with just the cookie
		// exchange.
		req.response.SetReply(query)
		req.stats.gen.cookieOnly++
		req.logNote = "Cookie-only"
		u.reply = t.packResponse(req)
		return
	}

	if len(query.Question) != 1 ||
		len(query.Answer) != 0 ||
		len(query.Ns) != 0 ||
		query.Opcode != dns.OpcodeQuery {
		req.stats.gen.formatError++
		req.logNote = "Malformed query"
		log.Minorf("Malformed query from %s: qd=%d an=%d ns=%d op=%d",
			u.src.String(), len(query.Question), len(query.Answer),
			len(query.Ns), query.Opcode)
		return
	}

	// Pre-processing is complete. Time to dispatch on the query. This server
	// understands exactly one question shape - IN PTR under ip6.arpa - and answers
	// NXDomain for everything else rather than pretending to broader authority.

	if req.question.Qclass != dns.ClassINET {
		req.stats.gen.wrongClass++
		req.logNote = "Wrong class " + dnsutil.ClassToString(dns.Class(req.question.Qclass))
		t.serveNXDomain(u, req)
		return
	}

	if !strings.HasSuffix(req.qName, dnsutil.V6Suffix) {
		req.stats.gen.notReverse++
		req.logNote = "Not ip6.arpa"
		t.serveNXDomain(u, req)
		return
	}

	if req.question.Qtype != dns.TypePTR {
		req.stats.gen.wrongType++
		req.logNote = "Not PTR"
		t.serveNXDomain(u, req)
		return
	}

	statsp := &req.stats.ptr
	statsp.queries++

	ip, err := dnsutil.InvertPtrToIPv6(strings.TrimSuffix(req.qName, dnsutil.V6Suffix))
	if err != nil { // Reverse IP address could not be parsed from qName
		statsp.malformed++
		req.logNote = "Malformed"
		t.serveNXDomain(u, req)
		return
	}
	req.logQName = ip.String() // Log a more compact variant

	if t.cfg.subnets.Match(ip) == nil {
		statsp.noSubnet++
		req.logNote = "No subnet"
		t.serveNXDomain(u, req)
		return
	}

	// The address is one of ours. The override file gets first say; a subnet match
	// with no override entry still answers, with the synthesized digest name.
	hostname, fromOverride := t.answerFor(req.qName, ip)
	if fromOverride {
		statsp.override++
		req.logNote = "Override"
	} else {
		statsp.synth++
		req.logNote = "Synth"
	}

	req.response.SetReply(query)
	ptr := dnsutil.SynthesizePTR(req.question.Name, hostname)
	ptr.Hdr.Ttl = t.cfg.TTLAsSecs
	req.response.Answer = append(req.response.Answer, ptr)

	u.reply = t.packResponse(req)
	if len(u.reply) > 0 {
		statsp.good++
		statsp.answers += len(req.response.Answer)
	}
}

// answerFor resolves the PTR value for an in-subnet address: the first matching
// override entry verbatim, else the digest fallback. The override file is re-read on
// every call so operators can edit it live; an unreadable file degrades to "no
// override" with a warning rather than failing the query.
func (t *server) answerFor(qName string, ip net.IP) (hostname string, fromOverride bool) {
	if t.cfg.overridesEnabled {
		tbl, err := overrides.Load(t.cfg.overridesFile)
		if err != nil {
			warning(err)
		} else if v, ok := tbl.Lookup(qName); ok {
			return v, true
		}
	}

	return dnsutil.DigestName(ip, t.cfg.domainSuffix), false
}

func (t *server) serveNXDomain(u *unit, req *request) {
	req.response.SetRcode(req.query, dns.RcodeNameError)
	req.stats.gen.nxDomain++
	u.reply = t.packResponse(req)
}

// packResponse finalizes the response and serializes it to wire bytes: attach the OPT,
// set the authoritative bit, truncate to the datagram size, consult the rate limiter
// and pack. Returns nil when the response should not be sent at all.
func (t *server) packResponse(req *request) []byte {
	if opt := req.genOpt(); opt != nil {
		req.response.Extra = append(req.response.Extra, opt)
	}

	req.response.Authoritative = true

	if req.maxSize > 0 {
		req.response.Truncate(int(req.maxSize)) // Removes excess RRs, sets TC=1 if needed
		if req.response.MsgHdr.Truncated {
			req.stats.gen.truncated++
		}
	}

	// Response Rate Limiting. Only ever applies to UDP; TCP clients already proved
	// they aren't spoofed.
	if t.rrlHandler != nil && t.network == dnsutil.UDPNetwork {
		action, _, _ := t.rrlHandler.Debit(req.src,
			miekgrrl.Derive(req.response, req.question.Name))
		req.rrlAction = action
		if !t.cfg.rrlDryRun {
			switch action {
			case rrl.Drop:
				req.stats.gen.rrlDrop++
				return nil
			case rrl.Slip:
				// Steer the client to TCP with an answerless truncated
				// reply.
				req.stats.gen.rrlSlip++
				req.response.Answer = nil
				req.response.Ns = nil
				req.response.MsgHdr.Truncated = true
			}
		}
	}

	req.compressed = req.response.Compress

	b, err := req.response.Pack()
	if err != nil {
		// A reply we built ourselves failed to serialize. Suppress the send
		// entirely - a corrupt reply must never reach the wire.
		req.stats.gen.packErrors++
		req.logError = fmt.Errorf("response pack failed: %w", err)
		return nil
	}
	req.msgSize = len(b)
	req.truncated = req.response.MsgHdr.Truncated

	return b
}
