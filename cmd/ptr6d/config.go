package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/markdingo/rrl"
	"gopkg.in/yaml.v3"

	"github.com/cpjudd/ptr6d/log"
	"github.com/cpjudd/ptr6d/pregen"
	"github.com/cpjudd/ptr6d/subnets"
)

const (
	programName = "ptr6d"

	defaultProjectURL = "https://github.com/cpjudd/ptr6d"

	defaultConfigFile     = "ptr6d.yaml"
	defaultPort           = 5353
	defaultBindAddress    = "::"
	defaultTTL            = time.Hour * 24
	defaultDomainSuffix   = "ip6.example.com."
	defaultMaxWorkers     = 32
	defaultOverridesFile  = "ptr6d.overrides"
	defaultReportInterval = time.Hour

	envPrefix = "PTR6D_"
)

var defaultSubnets = []string{"2001:db8:1::/48", "2001:db8:2::/64"}

// rrlConfigStrings separates out the RRL options from all the rest for easy management
// and identification. The rrl package does all the conversion to ints and floats so at
// this level all values are carried as strings without any validation.
type rrlConfigStrings struct {
	responsesInterval string
	nxdomainsInterval string
	errorsInterval    string
	window            string
	slipRatio         string
	ipv6PrefixLength  string
	maxTableSize      string
}

// config defines the configuration settings used by ptr6d. It is populated once during
// startup - defaults, then config file, then environment, then command line - and never
// changed after validate(), as it is shared amongst go-routines without any lock
// protections. The one exception is logQueriesFlag which SIGUSR2 toggles while workers
// are reading it, thus the atomic.
type config struct {
	projectURL string
	configFile string

	bindAddress string
	port        int
	enableUDP   bool
	enableTCP   bool
	listenAddr  string // Joined bindAddress/port, set by validate()

	TTL          time.Duration // TTL for PTR answers
	TTLAsSecs    uint32        // Converted and rounded from TTL
	domainSuffix string        // Appended to synthesized names, canonical after validate()
	maxWorkers   int           // Resolution worker pool size

	subnetStrings []string
	subnets       *subnets.Set // Parsed by validate()

	overridesFile    string
	overridesEnabled bool

	logLevel       string // silent|major|minor|debug
	logFile        string // Empty means stdout
	logSyslog      bool
	logTimestamps  bool
	logQueriesFlag atomic.Bool // Each DNS query exchanged. Toggled by SIGUSR2.
	reportInterval time.Duration

	user, group, chroot string // Privilege constraints

	rrlOptions   rrlConfigStrings // Carried as strings for the rrl package to parse
	rrlDryRun    bool
	rrlOptionSet bool        // True if at least one rrl option was set
	rrlConfig    *rrl.Config // Populated by validate() if RRL is active
}

func newConfig() *config {
	t := &config{
		projectURL:       defaultProjectURL,
		configFile:       defaultConfigFile,
		bindAddress:      defaultBindAddress,
		port:             defaultPort,
		enableUDP:        true,
		enableTCP:        false,
		TTL:              defaultTTL,
		domainSuffix:     defaultDomainSuffix,
		maxWorkers:       defaultMaxWorkers,
		subnetStrings:    defaultSubnets,
		overridesFile:    defaultOverridesFile,
		overridesEnabled: true,
		logLevel:         "major",
		reportInterval:   defaultReportInterval,
	}
	t.logQueriesFlag.Store(true)
	info, ok := debug.ReadBuildInfo()
	if ok && len(info.Main.Path) > 0 {
		t.projectURL = info.Main.Path // Override with embedded if present
	}

	t.rrlConfig = rrl.NewConfig() // This default config is a no-op

	return t
}

// fileConfig mirrors the YAML config surface. Every scalar is a pointer so that an
// absent key can be told apart from an explicit zero value and leave the layer below
// standing.
type fileConfig struct {
	Server struct {
		BindAddress *string `yaml:"bind_address"`
		Port        *int    `yaml:"port"`
		EnableUDP   *bool   `yaml:"enable_udp"`
		EnableTCP   *bool   `yaml:"enable_tcp"`
	} `yaml:"server"`

	DNS struct {
		TTL          *int    `yaml:"ttl"` // Seconds
		DomainSuffix *string `yaml:"domain_suffix"`
		MaxWorkers   *int    `yaml:"max_workers"`
	} `yaml:"dns"`

	IPv6 struct {
		Subnets []string `yaml:"subnets"`
	} `yaml:"ipv6"`

	Overrides struct {
		File    *string `yaml:"file"`
		Enabled *bool   `yaml:"enabled"`
	} `yaml:"overrides"`

	Logging struct {
		Level         *string `yaml:"level"`
		File          *string `yaml:"file"`
		Syslog        *bool   `yaml:"syslog"`
		Timestamps    *bool   `yaml:"timestamps"`
		LogQueries    *bool   `yaml:"log_queries"`
		StatsInterval *string `yaml:"stats_interval"` // Duration string, "0" disables
	} `yaml:"logging"`

	Security struct {
		User   *string `yaml:"user"`
		Group  *string `yaml:"group"`
		Chroot *string `yaml:"chroot"`
	} `yaml:"security"`

	RateLimit struct {
		ResponsesPerSecond string `yaml:"responses_per_second"`
		NXDomainsPerSecond string `yaml:"nxdomains_per_second"`
		ErrorsPerSecond    string `yaml:"errors_per_second"`
		Window             string `yaml:"window"`
		SlipRatio          string `yaml:"slip_ratio"`
		IPv6PrefixLength   string `yaml:"ipv6_prefix_length"`
		MaxTableSize       string `yaml:"max_table_size"`
		DryRun             bool   `yaml:"dry_run"`
	} `yaml:"rate_limit"`
}

// loadConfigFile overlays values from the YAML config file onto the defaults. A missing
// file is fine unless the operator explicitly named one; a file that exists but doesn't
// parse is always an error as silently running on defaults would be a nasty surprise.
func (t *config) loadConfigFile(path string, explicit bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}

	var fc fileConfig
	err = yaml.Unmarshal(b, &fc)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if fc.Server.BindAddress != nil {
		t.bindAddress = *fc.Server.BindAddress
	}
	if fc.Server.Port != nil {
		t.port = *fc.Server.Port
	}
	if fc.Server.EnableUDP != nil {
		t.enableUDP = *fc.Server.EnableUDP
	}
	if fc.Server.EnableTCP != nil {
		t.enableTCP = *fc.Server.EnableTCP
	}

	if fc.DNS.TTL != nil {
		t.TTL = time.Duration(*fc.DNS.TTL) * time.Second
	}
	if fc.DNS.DomainSuffix != nil {
		t.domainSuffix = *fc.DNS.DomainSuffix
	}
	if fc.DNS.MaxWorkers != nil {
		t.maxWorkers = *fc.DNS.MaxWorkers
	}

	if fc.IPv6.Subnets != nil {
		t.subnetStrings = fc.IPv6.Subnets
	}

	if fc.Overrides.File != nil {
		t.overridesFile = *fc.Overrides.File
	}
	if fc.Overrides.Enabled != nil {
		t.overridesEnabled = *fc.Overrides.Enabled
	}

	if fc.Logging.Level != nil {
		t.logLevel = *fc.Logging.Level
	}
	if fc.Logging.File != nil {
		t.logFile = *fc.Logging.File
	}
	if fc.Logging.Syslog != nil {
		t.logSyslog = *fc.Logging.Syslog
	}
	if fc.Logging.Timestamps != nil {
		t.logTimestamps = *fc.Logging.Timestamps
	}
	if fc.Logging.LogQueries != nil {
		t.logQueriesFlag.Store(*fc.Logging.LogQueries)
	}
	if fc.Logging.StatsInterval != nil {
		d, err := time.ParseDuration(*fc.Logging.StatsInterval)
		if err != nil {
			return fmt.Errorf("config file %s: stats_interval: %w", path, err)
		}
		t.reportInterval = d
	}

	if fc.Security.User != nil {
		t.user = *fc.Security.User
	}
	if fc.Security.Group != nil {
		t.group = *fc.Security.Group
	}
	if fc.Security.Chroot != nil {
		t.chroot = *fc.Security.Chroot
	}

	t.rrlOptions.responsesInterval = fc.RateLimit.ResponsesPerSecond
	t.rrlOptions.nxdomainsInterval = fc.RateLimit.NXDomainsPerSecond
	t.rrlOptions.errorsInterval = fc.RateLimit.ErrorsPerSecond
	t.rrlOptions.window = fc.RateLimit.Window
	t.rrlOptions.slipRatio = fc.RateLimit.SlipRatio
	t.rrlOptions.ipv6PrefixLength = fc.RateLimit.IPv6PrefixLength
	t.rrlOptions.maxTableSize = fc.RateLimit.MaxTableSize
	t.rrlDryRun = fc.RateLimit.DryRun

	return nil
}

// applyEnvOverrides overlays PTR6D_* environment variables onto the file layer. An
// unparsable value warns and is ignored so that a fat-fingered variable degrades to
// the layer below rather than killing the daemon from afar.
func (t *config) applyEnvOverrides() {
	str := func(name string, dest *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dest = v
		}
	}
	integer := func(name string, dest *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				warning(err, "ignoring "+envPrefix+name)
				return
			}
			*dest = i
		}
	}
	boolean := func(name string, dest *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			switch strings.ToLower(v) {
			case "true", "yes", "1", "on", "enable":
				*dest = true
			case "false", "no", "0", "off", "disable":
				*dest = false
			default:
				warning(nil, "ignoring "+envPrefix+name, "unrecognized value", v)
			}
		}
	}

	str("BIND_ADDRESS", &t.bindAddress)
	integer("PORT", &t.port)
	boolean("ENABLE_UDP", &t.enableUDP)
	boolean("ENABLE_TCP", &t.enableTCP)

	if v, ok := os.LookupEnv(envPrefix + "TTL"); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			warning(err, "ignoring "+envPrefix+"TTL")
		} else {
			t.TTL = time.Duration(i) * time.Second
		}
	}
	str("DOMAIN_SUFFIX", &t.domainSuffix)
	integer("MAX_WORKERS", &t.maxWorkers)

	if v, ok := os.LookupEnv(envPrefix + "SUBNETS"); ok {
		var list []string
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if len(s) > 0 {
				list = append(list, s)
			}
		}
		t.subnetStrings = list
	}

	str("OVERRIDES_FILE", &t.overridesFile)
	boolean("OVERRIDES_ENABLED", &t.overridesEnabled)
	str("LOG_LEVEL", &t.logLevel)
	str("LOG_FILE", &t.logFile)
}

func (t *config) printVersion() {
	fmt.Fprintf(log.Out(), "Program:     %s %s (%s)\n",
		programName, pregen.Version, pregen.ReleaseDate)
	fmt.Fprintf(log.Out(), "Project:     %s\n", t.projectURL)
	fmt.Fprintf(log.Out(), "Inspiration: %s\n",
		"https://datatracker.ietf.org/doc/html/rfc8501#section-2.5")
}
