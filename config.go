package tally

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gissleh/tally/metric"
)

// ErrMissingServer is returned by Config.Validate if no server host is set.
var ErrMissingServer = errors.New("tally: missing server host")

// ErrMissingNick is returned by Config.Validate if no nick is set.
var ErrMissingNick = errors.New("tally: missing nick")

// The Config for a bot client.
type Config struct {
	// Server is the host name or address of the server, without the port.
	Server string `yaml:"server"`

	// Port is the server port. By default it's 6667.
	Port int `yaml:"port"`

	// Nick is the name the bot registers and listens to. Messages whose
	// target equals this nick are treated as private messages.
	Nick string `yaml:"nick"`

	// Channels are joined, in order, after every successful registration.
	// An empty list is legal; the bot then idles on the server.
	Channels []string `yaml:"channels"`

	// SSL selects a TLS connection instead of a plaintext one.
	SSL bool `yaml:"ssl"`

	// SkipSSLVerification disables SSL certificate verification. Do not do this
	// in production.
	SkipSSLVerification bool `yaml:"skip_ssl_verification"`

	// RateBucket is the key of the shared outbound rate bucket. Clients with
	// the same key throttle jointly. By default it's "tally.send".
	RateBucket string `yaml:"rate_bucket"`

	// SendInterval is the rate bucket's window: one message may be sent per
	// interval. By default it's 1 second.
	SendInterval time.Duration `yaml:"send_interval"`

	// PacingInterval is the delay between a granted send and the next look at
	// the queue. By default it's 100 milliseconds.
	PacingInterval time.Duration `yaml:"pacing_interval"`

	// KeepaliveInterval is the quiet period after which a PING is sent to the
	// server. By default it's 60 seconds.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`

	// ReconnectInterval is the fixed backoff between connection attempts.
	// By default it's 5 seconds.
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`

	// DialTimeout bounds a single connection attempt. By default it's 10 seconds.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Database is the path of the karma database file. It is only read by the
	// bootstrap, not by the client itself.
	Database string `yaml:"database"`

	// MetricsAddr is the listen address for the /metrics endpoint. Empty
	// disables the listener. Only read by the bootstrap.
	MetricsAddr string `yaml:"metrics_addr"`

	// Logger receives the client's structured log output. By default it's
	// slog.Default().
	Logger *slog.Logger `yaml:"-"`

	// Metrics receives the client's counters and gauges. By default an
	// unregistered set is created so the client never has to nil-check.
	Metrics *metric.Metrics `yaml:"-"`
}

// LoadConfig reads and parses a yaml config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// WithDefaults returns the config with the default values
func (config Config) WithDefaults() Config {
	if config.Port == 0 {
		config.Port = 6667
	}
	if config.RateBucket == "" {
		config.RateBucket = "tally.send"
	}
	if config.SendInterval == 0 {
		config.SendInterval = time.Second
	}
	if config.PacingInterval == 0 {
		config.PacingInterval = 100 * time.Millisecond
	}
	if config.KeepaliveInterval == 0 {
		config.KeepaliveInterval = 60 * time.Second
	}
	if config.ReconnectInterval == 0 {
		config.ReconnectInterval = 5 * time.Second
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}
	if config.Database == "" {
		config.Database = "tally.db"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = metric.New()
	}

	return config
}

// Validate returns an error if a required field is missing. A client cannot
// be constructed from an invalid config.
func (config Config) Validate() error {
	if config.Server == "" {
		return ErrMissingServer
	}
	if config.Nick == "" {
		return ErrMissingNick
	}

	return nil
}

// Addr returns the host:port dial address for the config.
func (config Config) Addr() string {
	return net.JoinHostPort(config.Server, strconv.Itoa(config.Port))
}
