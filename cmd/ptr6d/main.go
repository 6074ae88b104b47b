package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cpjudd/ptr6d/log"
	"github.com/cpjudd/ptr6d/pregen"
)

func reportError(severity string, err error, messages ...string) {
	msg := severity
	if len(messages) > 0 {
		msg += ": " + strings.Join(messages, " ")
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(log.Out(), msg)
}

func fatal(err error, messages ...string) {
	reportError("Fatal", err, messages...)
	os.Exit(1)
}

func warning(err error, messages ...string) {
	reportError("Warning", err, messages...)
}

//////////////////////////////////////////////////////////////////////

func main() {
	p6 := newPTR6D(nil)
	switch p6.parseOptions(os.Args) {
	case parseStop:
		return
	case parseFailed:
		os.Exit(1)
	case parseContinue:
	}

	// Transfer logging options to the log package. Each -v raises the configured
	// level by one step, capped at debug.

	level := log.MajorLevel
	switch p6.cfg.logLevel {
	case "silent":
		level = log.SilentLevel
	case "major":
		level = log.MajorLevel
	case "minor":
		level = log.MinorLevel
	case "debug":
		level = log.DebugLevel
	}
	for ix := 0; ix < p6.verboseCount && level < log.DebugLevel; ix++ {
		level++
	}
	log.SetLevel(level)
	log.SetTimestamps(p6.cfg.logTimestamps)

	if p6.cfg.logSyslog {
		err := log.Syslog("", "", programName)
		if err != nil {
			fatal(err, "syslog connect failed")
		}
	} else if err := p6.openLogFile(); err != nil {
		fatal(err)
	}

	fmt.Fprintln(log.Out(),
		programName, pregen.Version, "Starting with Log Level:", log.Level())

	// Validate everything that is likely a typo or usage error
	err := p6.validate()
	if err != nil {
		fatal(err)
	}

	p6.startTime = time.Now()
	p6.statsTime = p6.startTime

	p6.startServers() // Only returns if listens succeed

	p6.Constrain() // setuid/setgid/chroot

	p6.Run()

	p6.stopServers() // Drain in-flight queries before the final stats

	p6.statsReport(false) // Final stats - depending on log level

	fmt.Fprintln(log.Out(), programName, pregen.Version, "Exiting after",
		time.Now().Sub(p6.startTime).Round(time.Second))
}
