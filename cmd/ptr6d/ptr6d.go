package main

import (
	"crypto/rand"
	"os"
	"sync"
	"time"

	"github.com/markdingo/rrl"

	"github.com/cpjudd/ptr6d/dnsutil"
	"github.com/cpjudd/ptr6d/log"
	"github.com/cpjudd/ptr6d/osutil"
)

// The ptr6d container exists so that most of the "main" functionality can be delegated
// to support functions and help keep the flow of main() nice and clean.
type ptr6d struct {
	cfg *config

	verboseCount int // -v occurrences, applied on top of the configured log level

	done chan struct{} // All collaborative go-routines should monitor - see Done()
	sig  chan os.Signal

	dispatcher *dispatcher
	servers    []*server

	startTime time.Time
	statsTime time.Time // Last time stats were reset

	logFileMu sync.Mutex // Protects the open log file across SIGHUP re-opens
	logFile   *os.File
}

func newPTR6D(cfg *config) *ptr6d {
	t := &ptr6d{
		cfg:  cfg,
		done: make(chan struct{}),
		sig:  make(chan os.Signal),
	}
	if t.cfg == nil {
		t.cfg = newConfig()
	}

	return t
}

// Done is the go idiomatic way to tell collaborative go-routines to exit. All such
// go-routines should include a "case <-t.Done(): return" in their select loop.
func (t *ptr6d) Done() <-chan struct{} {
	return t.done
}

// startServers opens all listen sockets, creates the shared resolution pool and starts
// the accept loops. Does not return unless every enabled transport is listening; any
// listen failure is fatal.
//
// The server secrets for cookie generation are set here. Strictly the secret should be
// configurable so that anycast deployments can all generate the same cookie, but it's
// extremely unlikely that ptr6d will be used in that scenario, so for now we just use a
// cryptographically strong random value.
func (t *ptr6d) startServers() {
	var cookieSecrets [2]uint64
	b := make([]byte, 16) // Effectively two uint64s
	rand.Read(b)          // as needed by siphash-2-4
	for ix := 0; ix < 16; ix = ix + 2 {
		cookieSecrets[0] <<= 8
		cookieSecrets[1] <<= 8
		cookieSecrets[0] |= uint64(b[ix])
		cookieSecrets[1] |= uint64(b[ix+1])
	}

	t.dispatcher = newDispatcher(t.cfg.maxWorkers)

	var networks []string
	if t.cfg.enableUDP {
		networks = append(networks, dnsutil.UDPNetwork)
	}
	if t.cfg.enableTCP {
		networks = append(networks, dnsutil.TCPNetwork)
	}

	for _, network := range networks {
		srv := newServer(t.cfg, t.dispatcher, network, t.cfg.listenAddr)
		srv.cookieSecrets = cookieSecrets // All servers get the same secret
		if network == dnsutil.UDPNetwork && t.cfg.rrlConfig.IsActive() {
			srv.rrlHandler = rrl.NewRRL(t.cfg.rrlConfig)
		}
		err := srv.listen()
		if err != nil {
			fatal(err)
		}
		t.servers = append(t.servers, srv)
		srv.start()
		log.Major("Listen on: ", srv.network, " ", srv.address)
	}
}

// stopServers stops the accept tier first, then lets the resolution and delivery tiers
// drain. Only returns when every in-flight unit has been resolved and delivered or
// discarded.
func (t *ptr6d) stopServers() {
	for _, srv := range t.servers {
		srv.stop()
	}
	t.dispatcher.stop()
}

// Constrain process via setuid, setgid and chroot, after the listen sockets are bound.
//
// Security Note: Prior to go1.16.2 or thereabouts, osutil.Constrain() did not work
// properly on Linux due to syscall.Setuid()/syscall.Setgid() not being correctly
// applied to all threads in a process.
func (t *ptr6d) Constrain() {
	if len(t.cfg.user) > 0 || len(t.cfg.group) > 0 || len(t.cfg.chroot) > 0 {
		err := osutil.Constrain(t.cfg.user, t.cfg.group, t.cfg.chroot)
		if err != nil {
			fatal(err)
		}
		log.Major("Process Constraint: ", osutil.ConstraintReport())
	}
}

// openLogFile points the log package at the configured log file, closing any
// previously open one. Called at startup and again on SIGHUP so the file can be
// rotated out from under us.
func (t *ptr6d) openLogFile() error {
	if len(t.cfg.logFile) == 0 {
		return nil
	}
	f, err := os.OpenFile(t.cfg.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	log.SetOut(f)

	t.logFileMu.Lock()
	old := t.logFile
	t.logFile = f
	t.logFileMu.Unlock()
	if old != nil {
		old.Close()
	}

	return nil
}
