// Package config loads the server configuration.
//
// Values come from, in increasing precedence: built-in defaults, a YAML file
// named by --config or FROST_CONFIG, environment variables, and command-line
// flags. The ledger seed is only ever read from the SEED environment
// variable so it never lands in a file or a process listing.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	fstrings "frost/pkg/platform/strings"
)

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerNode   = "node"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Node      NodeConfig      `yaml:"node"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Policy    PolicyConfig    `yaml:"policy"`
	Log       LogConfig       `yaml:"log"`

	// Seed is the ledger account every bundle is attached from.
	Seed string `yaml:"-"`
}

type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
	TCP  TCPConfig  `yaml:"tcp"`
	Auth AuthConfig `yaml:"auth"`
}

// HTTPConfig configures the REST listener. TrustProxyHeaders makes the
// client address come from X-Forwarded-For and X-Real-IP, which is only
// safe behind a proxy that overwrites them.
type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	TrustProxyHeaders bool          `yaml:"trustProxyHeaders"`
}

// TCPConfig configures the command protocol listener. Port 0 disables it.
type TCPConfig struct {
	ListeningPort int `yaml:"listeningPort"`
}

// AuthConfig enables device bearer tokens on the HTTP API when
// JWTSigningKey is set.
type AuthConfig struct {
	JWTSigningKey string `yaml:"jwtSigningKey"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// NodeConfig locates the ledger node.
type NodeConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	// Path is appended to the node address, e.g. "/ledger" when the node
	// API is served by another frost instance.
	Path string `yaml:"path"`
}

func (n NodeConfig) URL() string {
	return "http://" + n.Host + ":" + strconv.Itoa(n.Port) + n.Path
}

type LedgerConfig struct {
	Backend        string `yaml:"backend"`
	PaddingRecords int    `yaml:"paddingRecords"`
	// ServeNode exposes the in-memory ledger's node API under /ledger,
	// guarded by Node.Token.
	ServeNode bool `yaml:"serveNode"`
}

// DatabaseConfig selects the Postgres index. An empty URL keeps the index
// in memory.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig enables the bundle cache when URL is set.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"poolSize"`
	MinIdleConns int           `yaml:"minIdleConns"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	BundleTTL    time.Duration `yaml:"bundleTTL"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RateLimitConfig limits requests per client address on both transports.
// Requests 0 disables limiting. Counters live in Redis when it is configured.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type PolicyConfig struct {
	FoldMode          string        `yaml:"foldMode"`
	ReconcileInterval time.Duration `yaml:"reconcileInterval"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTP: HTTPConfig{Addr: ":8080", ShutdownTimeout: 15 * time.Second},
			Auth: AuthConfig{Issuer: "frost", Audience: "frost-devices"},
		},
		Node:   NodeConfig{Timeout: 30 * time.Second},
		Ledger: LedgerConfig{Backend: LedgerMemory},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			BundleTTL:    24 * time.Hour,
		},
		Kafka:     KafkaConfig{Topic: "frost.policy-events"},
		RateLimit: RateLimitConfig{Window: time.Minute},
		Policy:    PolicyConfig{FoldMode: "legacy", ReconcileInterval: time.Minute},
		Log:       LogConfig{Format: "json", Level: "info"},
	}
}

// Load builds the configuration from args (without the program name) and
// the environment as seen through lookup.
func Load(args []string, lookup func(string) (string, bool)) (*Config, error) {
	fs := pflag.NewFlagSet("frost", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML config file (or FROST_CONFIG)")
	httpAddr := fs.String("http-addr", "", "HTTP listen address")
	tcpPort := fs.Int("tcp-port", 0, "TCP command protocol port")
	ledgerBackend := fs.String("ledger", "", "ledger backend: memory or node")
	foldMode := fs.String("fold-mode", "", "policy store id fold mode: legacy or canonical")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	path := *configPath
	if path == "" {
		path, _ = lookup("FROST_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if fs.Changed("http-addr") {
		cfg.Server.HTTP.Addr = *httpAddr
	}
	if fs.Changed("tcp-port") {
		cfg.Server.TCP.ListeningPort = *tcpPort
	}
	if fs.Changed("ledger") {
		cfg.Ledger.Backend = *ledgerBackend
	}
	if fs.Changed("fold-mode") {
		cfg.Policy.FoldMode = *foldMode
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads the configuration for a process.
func FromEnv(args []string) (*Config, error) {
	return Load(args, os.LookupEnv)
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.Kafka.Brokers = fstrings.DedupeAndTrim(c.Kafka.Brokers)
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("SEED", &c.Seed)
	str("FROST_HTTP_ADDR", &c.Server.HTTP.Addr)
	str("FROST_LEDGER", &c.Ledger.Backend)
	str("DATABASE_URL", &c.Database.URL)
	str("REDIS_URL", &c.Redis.URL)
	str("JWT_SIGNING_KEY", &c.Server.Auth.JWTSigningKey)
	str("NODE_HOST", &c.Node.Host)
	str("NODE_TOKEN", &c.Node.Token)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("FROST_TRUST_PROXY_HEADERS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FROST_TRUST_PROXY_HEADERS: %w", err)
		}
		c.Server.HTTP.TrustProxyHeaders = b
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = fstrings.SplitList(v)
	}
	for key, dst := range map[string]*int{
		"NODE_PORT":        &c.Node.Port,
		"FROST_TCP_PORT":   &c.Server.TCP.ListeningPort,
		"FROST_RATE_LIMIT": &c.RateLimit.Requests,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Seed == "" {
		errs = append(errs, errors.New("SEED environment variable is required"))
	}
	switch c.Ledger.Backend {
	case LedgerMemory:
		if c.Ledger.ServeNode && c.Node.Token == "" {
			errs = append(errs, errors.New("node.token is required when ledger.serveNode is set"))
		}
	case LedgerNode:
		if c.Node.Host == "" {
			errs = append(errs, errors.New("node.host is required for the node ledger"))
		}
		if c.Node.Port <= 0 {
			errs = append(errs, errors.New("node.port is required for the node ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend))
	}
	if p := c.Server.TCP.ListeningPort; p < 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("server.tcp.listeningPort %d out of range", p))
	}
	if c.RateLimit.Requests < 0 {
		errs = append(errs, errors.New("rateLimit.requests must not be negative"))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rateLimit.window must be positive"))
	}
	if c.Ledger.PaddingRecords < 0 {
		errs = append(errs, errors.New("ledger.paddingRecords must not be negative"))
	}
	return errors.Join(errs...)
}
