package main

import (
	"fmt"
)

// ptrStats counts the reverse lookups, which is the only query shape this server
// actually answers.
type ptrStats struct {
	queries   int // PTR/ip6.arpa queries reaching the engine
	good      int // Good replies sent back to client
	answers   int // Total answers sent in all good replies
	override  int // Replies answered from the override file
	synth     int // Replies answered with the synthesized digest name
	malformed int // qName does not decode to an ipv6 address
	noSubnet  int // Decoded address not covered by any configured subnet
}

func (t *ptrStats) add(from *ptrStats) {
	t.queries += from.queries
	t.good += from.good
	t.answers += from.answers
	t.override += from.override
	t.synth += from.synth
	t.malformed += from.malformed
	t.noSubnet += from.noSubnet
}

func (t *ptrStats) String() string {
	return fmt.Sprintf("q=%d good=%d(%d) ov=%d syn=%d mal=%d nosub=%d",
		t.queries, t.good, t.answers, t.override, t.synth, t.malformed, t.noSubnet)
}

type generalStats struct {
	queries     int // Total units of work entering the engine
	parseErrors int // Wire bytes that didn't unpack to a query
	formatError int // Structurally bogus queries (qdcount, opcode, bad cookie)

	cookie      int // EDNS sub-opts
	cookieOnly  int
	wrongCookie int // Server cookie mismatch

	wrongClass int // Dispatch rejections
	wrongType  int
	notReverse int

	nxDomain  int
	truncated int

	rrlDrop int // UDP Response Rate Limiting actions
	rrlSlip int

	packErrors     int // Reply failed to serialize - should never happen
	framingErrors  int // TCP length prefix violations
	deliveryErrors int // Reply writes that failed
}

func (t *generalStats) add(from *generalStats) {
	t.queries += from.queries
	t.parseErrors += from.parseErrors
	t.formatError += from.formatError
	t.cookie += from.cookie
	t.cookieOnly += from.cookieOnly
	t.wrongCookie += from.wrongCookie
	t.wrongClass += from.wrongClass
	t.wrongType += from.wrongType
	t.notReverse += from.notReverse
	t.nxDomain += from.nxDomain
	t.truncated += from.truncated
	t.rrlDrop += from.rrlDrop
	t.rrlSlip += from.rrlSlip
	t.packErrors += from.packErrors
	t.framingErrors += from.framingErrors
	t.deliveryErrors += from.deliveryErrors
}

func (t *generalStats) String() string {
	return fmt.Sprintf("q=%d pe=%d fe=%d cookie=%d/%d/%d wc=%d wt=%d nr=%d nx=%d tc=%d rrl=%d/%d pack=%d frame=%d dev=%d",
		t.queries, t.parseErrors, t.formatError,
		t.cookie, t.cookieOnly, t.wrongCookie,
		t.wrongClass, t.wrongType, t.notReverse,
		t.nxDomain, t.truncated,
		t.rrlDrop, t.rrlSlip,
		t.packErrors, t.framingErrors, t.deliveryErrors)
}

type serverStats struct {
	gen generalStats
	ptr ptrStats
}

func (t *serverStats) add(from *serverStats) {
	t.gen.add(&from.gen)
	t.ptr.add(&from.ptr)
}

func (t *serverStats) String() string {
	return "Gen: " + t.gen.String() + " Ptr: " + t.ptr.String()
}
