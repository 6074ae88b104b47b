package main

import (
	"os"
	"testing"

	"github.com/markdingo/rrl"
	"github.com/miekg/dns"

	"github.com/cpjudd/ptr6d/dnsutil"
	"github.com/cpjudd/ptr6d/log"
	"github.com/cpjudd/ptr6d/mock"
)

func TestRequestLog(t *testing.T) {
	out := &mock.IOWriter{}
	log.SetOut(out)
	defer log.SetOut(os.Stdout)

	req := &request{
		query:    new(dns.Msg),
		response: new(dns.Msg),
		question: dns.Question{Name: "example.", Qtype: dns.TypePTR},
		src:      mock.NewNetAddr("tcp", "[2001:db8::1]:4056"),
		network:  dnsutil.TCPNetwork,
		logQName: "2001:db8:1::1",
	}
	req.response.Id = 99
	req.response.Answer = append(req.response.Answer, new(dns.PTR))
	req.cookiesPresent = true
	req.serverCookie = "deadbeef"
	req.truncated = true
	req.rrlAction = rrl.Slip
	req.msgSize = 120
	req.maxSize = 512
	req.logNote = "Synth"

	req.log()

	exp := "ru=ok q=PTR/2001:db8:1::1 s=[2001:db8::1]:4056 id=99 h=TCSZs sz=120/512 C=1/0/0 Synth\n"
	got := out.String()
	if got != exp {
		t.Error("Log line differs. Got:", got, "Exp:", exp)
	}

	out.Reset()
	req.response.Rcode = dns.RcodeNameError
	req.logNote = ""
	req.log()
	got = out.String()
	exp = "ru=NXDOMAIN q=PTR/2001:db8:1::1 s=[2001:db8::1]:4056 id=99 h=TCSZs sz=120/512 C=1/0/0\n"
	if got != exp {
		t.Error("Log line differs. Got:", got, "Exp:", exp)
	}
}
