package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel       = string(LogLevelWarning)
	DefaultRoot           = "/"
	DefaultProbeTimeout   = 3 * time.Second
	DefaultPort           = 22
	DefaultConnectTimeout = 5 * time.Second
	DefaultRemoteTimeout  = 10 * time.Second
	DefaultScrapeTimeout  = 15 * time.Second

	defaultEnvPrefix  = "HWSNAP"
	defaultConfigName = "hwsnap"
)

type Config struct {
	LogLevel       string         `mapstructure:"log_level"`
	Root           string         `mapstructure:"root"`
	ProbeTimeout   time.Duration  `mapstructure:"probe_timeout"`
	DisabledProbes []string       `mapstructure:"disabled_probes"`
	Remote         RemoteConfig   `mapstructure:"remote"`
	Exporter       ExporterConfig `mapstructure:"exporter"`
}

// Load reads configuration from defaults, the config file, environment
// and command line flags, later sources overriding earlier ones.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o, fs); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("root", DefaultRoot)
	v.SetDefault("probe_timeout", DefaultProbeTimeout)
	v.SetDefault("disabled_probes", []string{})
	v.SetDefault("remote.port", DefaultPort)
	v.SetDefault("remote.connect_timeout", DefaultConnectTimeout)
	v.SetDefault("remote.probe_timeout", DefaultRemoteTimeout)
	v.SetDefault("remote.use_agent", true)
	v.SetDefault("exporter.scrape_timeout", DefaultScrapeTimeout)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(defaultConfigName, pflag.ContinueOnError)

	fs.String("config", "", "Path to configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("root", DefaultRoot, "Filesystem root to read /sys and /proc from")
	fs.Duration("probe-timeout", DefaultProbeTimeout, "Timeout for each local probe")
	fs.StringSlice("disable", nil, "Probes to skip, e.g. sensors,dmi")

	fs.String("remote", "", "Take the snapshot on this host over SSH")
	fs.String("user", "", "SSH user for --remote")
	fs.String("ip", "", "Dial this address instead of resolving --remote")
	fs.Int("port", DefaultPort, "SSH port")
	fs.Duration("connect-timeout", DefaultConnectTimeout, "SSH connect timeout")
	fs.StringSlice("identity", nil, "SSH private key files")
	fs.String("known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	fs.Bool("insecure", false, "Skip SSH host key verification")

	fs.String("listen", "", "Serve Prometheus metrics on this address instead of printing")

	return fs
}

var flagKeys = map[string]string{
	"log-level":       "log_level",
	"root":            "root",
	"probe-timeout":   "probe_timeout",
	"disable":         "disabled_probes",
	"remote":          "remote.host",
	"user":            "remote.user",
	"ip":              "remote.ip",
	"port":            "remote.port",
	"connect-timeout": "remote.connect_timeout",
	"identity":        "remote.identity_files",
	"known-hosts":     "remote.known_hosts",
	"insecure":        "remote.insecure_ignore_host_key",
	"listen":          "exporter.listen",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return errors.New().Wrap(errors.ErrBindFlags, err).WithData(name)
		}
	}

	return nil
}

func readConfigFile(v *viper.Viper, o *options, fs *pflag.FlagSet) error {
	errFactory := errors.New()

	path := o.configPath
	if f := fs.Lookup("config"); path == "" && f != nil && f.Changed {
		path = f.Value.String()
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(filepath.Join("/etc", defaultConfigName))
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", defaultConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}

		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.ProbeTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidTimeout, c.ProbeTimeout)
	}
	if c.Remote.ConnectTimeout <= 0 || c.Remote.ProbeTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidTimeout, "remote")
	}
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return errFactory.WithData(errors.ErrInvalidConfig, "remote.port")
	}

	for _, name := range c.DisabledProbes {
		if !knownProbe(name) {
			return errFactory.WithData(errors.ErrInvalidProbe, name)
		}
	}

	return nil
}

func knownProbe(name string) bool {
	for _, id := range telemetry.Sources {
		if string(id) == name {
			return true
		}
	}

	return false
}
