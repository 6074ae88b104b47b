package main

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/cpjudd/ptr6d/log"
)

type parseResult int // This is a ternary variable
const (
	parseStop     parseResult = iota // No error, but don't continue
	parseContinue                    // No errors and continue
	parseFailed                      // Errors, do not continue
)

const usageText = `NAME
  ptr6d - answer IPv6 reverse (PTR) queries for your own subnets

SYNOPSIS
  ptr6d [--config file] [--port port] [--tcp] [--udp] [-v...] [options]

DESCRIPTION
  ptr6d serves PTR queries under ip6.arpa for a configured list of IPv6
  subnets. Addresses inside a subnet are answered with either an entry from
  the override file or a synthesized hostname derived from the address;
  everything else is answered NXDomain.

  Most configuration lives in the YAML config file; see the distributed
  ptr6d.yaml for the full surface. Layering from lowest to highest: built-in
  defaults, the config file, PTR6D_* environment variables, command-line
  options.

OPTIONS
`

// Parsing command line options is an, er, interesting process as there is very little
// control over the formatting and output that the various "flags" packages offer. The
// bulk of configuration deliberately lives in the YAML file so the flag surface stays
// small: just the file location, the handful of settings someone overrides in a hurry
// and the usual help/version exits.
//
// The layering means flags can only be applied to the config *after* the file and
// environment layers have loaded, which is why changed flag values are transferred in a
// second pass via fs.Changed() rather than bound directly into the config struct.
func (t *ptr6d) parseOptions(args []string) parseResult {
	var helpFlag, versionFlag bool
	var tcpFlag, udpFlag, logQueriesFlag bool
	var verboseCount int
	var portFlag int
	configFile := defaultConfigFile

	name := programName
	if len(args) > 0 {
		name = args[0]
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Consider '-h' for command-line usage")
	}

	fs.SetOutput(log.Out())

	// Non-config flags

	fs.BoolVarP(&helpFlag, "help", "h", false, "Print command-line usage")
	fs.BoolVar(&versionFlag, "version", false, "Print version and origin URL")

	// Config flags

	fs.StringVarP(&configFile, "config", "c", defaultConfigFile,
		"Location of the YAML configuration file")
	fs.IntVarP(&portFlag, "port", "p", defaultPort, "Listen port for all transports")
	fs.BoolVar(&tcpFlag, "tcp", false, "Listen for TCP connections")
	fs.BoolVar(&udpFlag, "udp", false, "Listen for UDP datagrams")
	fs.CountVarP(&verboseCount, "verbose", "v",
		`Raise the log level one step per occurrence above the
configured level.`)
	fs.BoolVar(&logQueriesFlag, "log-queries", true,
		`Log each DNS query exchanged. This setting can be toggled
with SIGUSR2.`)

	err := fs.Parse(args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return parseStop
		}
		return parseFailed
	}

	if helpFlag {
		fmt.Fprint(log.Out(), usageText)
		fmt.Fprintln(log.Out(), fs.FlagUsages())
		return parseStop
	}

	if versionFlag {
		t.cfg.printVersion()
		return parseStop
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(log.Out(), "Error:Unexpected goop on command line: '%s'\n",
			strings.Join(fs.Args(), " "))
		return parseFailed
	}

	// Layer the config: file under environment under changed flags.

	t.cfg.configFile = configFile
	err = t.cfg.loadConfigFile(configFile, fs.Changed("config"))
	if err != nil {
		fmt.Fprintln(log.Out(), "Error:", err.Error())
		return parseFailed
	}
	t.cfg.applyEnvOverrides()

	if fs.Changed("port") {
		t.cfg.port = portFlag
	}
	if tcpFlag { // Presence enables; absence leaves the layer below standing
		t.cfg.enableTCP = true
	}
	if udpFlag {
		t.cfg.enableUDP = true
	}
	if fs.Changed("log-queries") {
		t.cfg.logQueriesFlag.Store(logQueriesFlag)
	}
	t.verboseCount = verboseCount

	return parseContinue
}
