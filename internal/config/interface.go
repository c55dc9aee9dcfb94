package config

import "time"

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
	args       []string
	argsSet    bool
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "HWSNAP"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithArgs parses args instead of os.Args[1:]
func WithArgs(args []string) Option {
	return func(o *options) error {
		o.args = args
		o.argsSet = true
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// RemoteConfig holds settings for snapshots taken over SSH.
type RemoteConfig struct {
	// Host, User and IP select a one-shot remote target from the command line.
	Host string `mapstructure:"host"`
	User string `mapstructure:"user"`
	IP   string `mapstructure:"ip"`

	Port                  int           `mapstructure:"port"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	ProbeTimeout          time.Duration `mapstructure:"probe_timeout"`
	IdentityFiles         []string      `mapstructure:"identity_files"`
	KnownHosts            string        `mapstructure:"known_hosts"`
	InsecureIgnoreHostKey bool          `mapstructure:"insecure_ignore_host_key"`
	UseAgent              bool          `mapstructure:"use_agent"`
}

// ExporterConfig holds settings for the metrics endpoint.
type ExporterConfig struct {
	Listen        string        `mapstructure:"listen"`
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout"`
}
