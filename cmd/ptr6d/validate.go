package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"

	"github.com/cpjudd/ptr6d/subnets"
)

// validate checks everything that could likely be a typo or usage error and fills in
// the derived values (parsed subnets, canonical suffix, joined listen address). Any
// error here is fatal at startup: a server that comes up with a misread config answers
// wrongly for hours before anyone notices, which is far worse than not coming up.
func (t *ptr6d) validate() error {
	cfg := t.cfg

	if cfg.TTL < time.Second {
		return fmt.Errorf("ttl must be at least 1 second")
	}
	cfg.TTLAsSecs = uint32(cfg.TTL.Seconds() + 0.5) // Round up to next second

	if cfg.maxWorkers < 1 {
		return fmt.Errorf("max_workers %d must be at least 1", cfg.maxWorkers)
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.port)
	}

	if net.ParseIP(cfg.bindAddress) == nil {
		return fmt.Errorf("invalid bind_address '%s'", cfg.bindAddress)
	}
	cfg.listenAddr = net.JoinHostPort(cfg.bindAddress, strconv.Itoa(cfg.port))

	labs, ok := dns.IsDomainName(cfg.domainSuffix)
	if !ok || labs < 2 {
		return fmt.Errorf("invalid domain_suffix '%s'", cfg.domainSuffix)
	}
	cfg.domainSuffix = dns.CanonicalName(cfg.domainSuffix)

	var err error
	cfg.subnets, err = subnets.Parse(cfg.subnetStrings)
	if err != nil {
		return err
	}
	if cfg.subnets.Len() == 0 {
		warning(nil, "no subnets configured - every query will earn NXDomain")
	}

	if !cfg.enableUDP && !cfg.enableTCP {
		return fmt.Errorf("no transport enabled - use --udp or --tcp, or enable one in %s",
			cfg.configFile)
	}

	switch cfg.logLevel {
	case "silent", "major", "minor", "debug":
	default:
		return fmt.Errorf("invalid log level '%s' - want silent, major, minor or debug",
			cfg.logLevel)
	}

	if cfg.reportInterval != 0 && cfg.reportInterval < time.Second {
		return fmt.Errorf("stats_interval must be at least 1 second (or 0 to disable)")
	}

	return t.convertRRLOptions()
}

// RRL options are carried as strings because we're adhering to the interface of the
// imported rrl package: it does all the conversion to ints and floats and returns
// errors as necessary.
//
// Since the rrl config starts life as a no-op config, at least one of the *_per_second
// values has to be set otherwise rrl does nothing in the Debit() call. That may not be
// obvious, so as soon as any rate_limit option is set we presume the operator wants a
// functional rrl and insist on a *_per_second value too.
func (t *ptr6d) convertRRLOptions() error {
	cfg := t.cfg
	set := func(name, value string) error {
		if len(value) == 0 {
			return nil
		}
		cfg.rrlOptionSet = true
		return cfg.rrlConfig.SetValue(name, value)
	}

	type pair struct{ name, value string }
	for _, p := range []pair{
		{"responses-per-second", cfg.rrlOptions.responsesInterval},
		{"nxdomains-per-second", cfg.rrlOptions.nxdomainsInterval},
		{"errors-per-second", cfg.rrlOptions.errorsInterval},
		{"window", cfg.rrlOptions.window},
		{"slip-ratio", cfg.rrlOptions.slipRatio},
		{"ipv6-CIDR", cfg.rrlOptions.ipv6PrefixLength},
		{"max-table-size", cfg.rrlOptions.maxTableSize},
	} {
		if err := set(p.name, p.value); err != nil {
			return fmt.Errorf("rate_limit: %w", err)
		}
	}

	if (cfg.rrlOptionSet || cfg.rrlDryRun) && !cfg.rrlConfig.IsActive() {
		return fmt.Errorf("rate_limit requires at least one *_per_second value to activate")
	}

	return nil
}
