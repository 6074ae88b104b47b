package main

import (
	"strings"
	"testing"
	"time"
)

func newValidPTR6D() *ptr6d {
	p6 := newPTR6D(nil)
	p6.cfg.subnetStrings = []string{"2001:db8:1::/48"}

	return p6
}

func TestValidateGood(t *testing.T) {
	p6 := newValidPTR6D()
	err := p6.validate()
	if err != nil {
		t.Fatal("Canonical config should validate", err)
	}

	cfg := p6.cfg
	if cfg.TTLAsSecs != uint32(defaultTTL.Seconds()) {
		t.Error("TTLAsSecs wrong", cfg.TTLAsSecs)
	}
	if cfg.listenAddr != "[::]:5353" {
		t.Error("listenAddr wrong", cfg.listenAddr)
	}
	if cfg.subnets == nil || cfg.subnets.Len() != 1 {
		t.Error("subnets should have been parsed")
	}
}

func TestValidateSuffixCanonical(t *testing.T) {
	p6 := newValidPTR6D()
	p6.cfg.domainSuffix = "Ip6.Example.Com" // No trailing dot, mixed case
	err := p6.validate()
	if err != nil {
		t.Fatal("Suffix should validate", err)
	}
	if p6.cfg.domainSuffix != "ip6.example.com." {
		t.Error("Suffix should be canonical, not", p6.cfg.domainSuffix)
	}
}

func TestValidateBad(t *testing.T) {
	testCases := []struct {
		modify func(cfg *config)
		expect string
	}{
		{func(cfg *config) { cfg.TTL = time.Millisecond }, "ttl"},
		{func(cfg *config) { cfg.maxWorkers = 0 }, "max_workers"},
		{func(cfg *config) { cfg.port = 70000 }, "port"},
		{func(cfg *config) { cfg.bindAddress = "not-an-ip" }, "bind_address"},
		{func(cfg *config) { cfg.domainSuffix = "." }, "domain_suffix"},
		{func(cfg *config) { cfg.subnetStrings = []string{"10.0.0.0/8"} }, "subnet"},
		{func(cfg *config) { cfg.subnetStrings = []string{"2001:db8::/200"} }, "subnet"},
		{func(cfg *config) { cfg.enableUDP = false; cfg.enableTCP = false }, "transport"},
		{func(cfg *config) { cfg.logLevel = "chatty" }, "log level"},
		{func(cfg *config) { cfg.reportInterval = time.Millisecond }, "stats_interval"},
		{func(cfg *config) { cfg.rrlDryRun = true }, "rate_limit"},
		{func(cfg *config) { cfg.rrlOptions.window = "15" }, "rate_limit"},
	}

	for ix, tc := range testCases {
		p6 := newValidPTR6D()
		tc.modify(p6.cfg)
		err := p6.validate()
		if err == nil {
			t.Error(ix, "Expected a validation error mentioning", tc.expect)
			continue
		}
		if !strings.Contains(err.Error(), tc.expect) {
			t.Error(ix, "Error should mention", tc.expect, "got", err.Error())
		}
	}
}

func TestValidateRRLActive(t *testing.T) {
	p6 := newValidPTR6D()
	p6.cfg.rrlOptions.responsesInterval = "10"
	p6.cfg.rrlOptions.window = "15"
	err := p6.validate()
	if err != nil {
		t.Fatal("RRL options should validate", err)
	}
	if !p6.cfg.rrlConfig.IsActive() {
		t.Error("RRL config should be active with a responses-per-second value")
	}
}
