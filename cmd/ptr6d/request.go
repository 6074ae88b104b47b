package main

import (
	"fmt"
	"net"
	"strings"

	"github.com/markdingo/rrl"
	"github.com/miekg/dns"

	"github.com/cpjudd/ptr6d/dnsutil"
	"github.com/cpjudd/ptr6d/log"
)

// There is a whole bunch of info about a query and the response that is gradually
// extracted and accumulated as a unit of work progresses thru the engine. Rather than
// pass this around as a fleet of function parameters it all gets accumulated into a
// request struct. The main purpose is readability and simplicity of adding variables as
// needed. The other main purpose is to accumulate values for log reporting. A request is
// only ever accessed by a single go-routine and only lives for the life of one query.
type request struct {
	query    *dns.Msg
	response *dns.Msg
	question dns.Question
	qName    string // Lower-cased question name

	opt            *dns.OPT
	cookiesPresent bool
	cookiesValid   bool
	clientCookie   string // hex as presented by miekg
	serverCookie   string // hex
	cookieOut      string // hex client+server cookie destined for the reply

	src        net.Addr // From here on down is log data
	network    string
	logQName   string // Short but recognizable qName to keep log entries shorter
	logNote    string // Mixed in with log message, if set
	logError   error  // Appended to log message, if set
	msgSize    int
	maxSize    uint16 // EDNS0 or zero which causes Pack to default
	compressed bool
	truncated  bool
	rrlAction  rrl.Action

	// To avoid holding a lock for the whole query, stats are accumulated in a
	// separate copy and added back into the aggregate server stats at the end. This
	// means that most of the query runs lock free at the expense of a chunk of
	// memory and a churn thru all the stats counters per request.

	stats serverStats
}

func (t *request) log() {
	var note []string
	if len(t.logNote) > 0 {
		note = append(note, t.logNote)
	}
	if t.logError != nil {
		note = append(note, t.logError.Error())
	}
	var noteStr string
	if len(note) > 0 {
		noteStr = " " + strings.Join(note, ":")
	}
	rcodeStr := "ok"
	if t.response.MsgHdr.Rcode != dns.RcodeSuccess {
		rcodeStr = dnsutil.RcodeToString(t.response.MsgHdr.Rcode)
	}

	hFlags := make([]byte, 0, 10)
	if t.network == dnsutil.TCPNetwork {
		hFlags = append(hFlags, 'T')
	} else {
		hFlags = append(hFlags, 'U') // Superfluous but ensures h= doesn't dangle
	}
	if t.cookiesPresent {
		hFlags = append(hFlags, 'C')
	}
	if len(t.serverCookie) > 0 {
		hFlags = append(hFlags, 'S')
	}
	if t.compressed {
		hFlags = append(hFlags, 'c')
	}
	if t.truncated {
		hFlags = append(hFlags, 'Z')
	}
	switch t.rrlAction {
	case rrl.Drop:
		hFlags = append(hFlags, 'D')
	case rrl.Slip:
		hFlags = append(hFlags, 's')
	}

	fmt.Fprintf(log.Out(), "ru=%s q=%s/%s s=%s id=%d h=%s sz=%d/%d C=%d/%d/%d%s\n",
		rcodeStr, dnsutil.TypeToString(t.question.Qtype), t.logQName,
		t.src.String(),
		t.response.MsgHdr.Id, string(hFlags), t.msgSize, t.maxSize,
		len(t.response.Answer), len(t.response.Ns), len(t.response.Extra), noteStr)
}
