package main

import (
	"time"

	"github.com/cpjudd/ptr6d/log"
	"github.com/cpjudd/ptr6d/osutil"
)

// Run watches for signals and the periodic stats timer until the process is told to
// exit. The servers and dispatcher are already up; this go-routine owns nothing but
// the event loop.
//
// SIGTERM/SIGINT initiate a clean shutdown. SIGHUP re-opens the log file for rotation.
// SIGUSR1 reports and resets stats. SIGUSR2 toggles per-query logging.
func (t *ptr6d) Run() {
	osutil.SignalNotify(t.sig)

	var reportCh <-chan time.Time // nil channel blocks forever when reports are off
	if t.cfg.reportInterval > 0 {
		ticker := time.NewTicker(t.cfg.reportInterval)
		defer ticker.Stop()
		reportCh = ticker.C
	}

	for {
		select {
		case s := <-t.sig:
			switch {
			case osutil.IsSignalTERM(s), osutil.IsSignalINT(s):
				log.Major("Signal: ", s.String(), " - shutting down")
				close(t.done)
				return

			case osutil.IsSignalUSR1(s):
				t.statsReport(false)

			case osutil.IsSignalUSR2(s):
				lq := !t.cfg.logQueriesFlag.Load()
				t.cfg.logQueriesFlag.Store(lq)
				log.Major("Signal: ", s.String(), " - log queries=", lq)

			case osutil.IsSignalHUP(s):
				err := t.openLogFile()
				if err != nil {
					warning(err, "log file re-open failed")
				} else {
					log.Major("Signal: ", s.String(), " - log file re-opened")
				}
			}

		case <-reportCh:
			t.statsReport(true)
		}
	}
}

// statsReport aggregates the counters of all servers into a single log line. Each
// server accumulates under its own mutex so the snapshot is consistent per-server
// rather than globally, which is plenty for operator eyeballs.
func (t *ptr6d) statsReport(resetCounters bool) {
	var totals serverStats
	for _, srv := range t.servers {
		srv.statsMu.Lock()
		totals.add(&srv.stats)
		if resetCounters {
			srv.stats = serverStats{}
		}
		srv.statsMu.Unlock()
	}

	now := time.Now()
	log.Majorf("Stats: %s Uptime %s Interval %s",
		totals.String(),
		now.Sub(t.startTime).Round(time.Second).String(),
		now.Sub(t.statsTime).Round(time.Second).String())
	if resetCounters {
		t.statsTime = now
	}
}
