// Package config handles configuration for the eardogger server and admin
// tool: defaults, an optional JSON overlay, and command-line flags, applied in
// that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"time"
)

const (
	ModeHTTP = "http"
	ModeFCGI = "fcgi"
)

// fcgiDefaultInFlight is the admission limit used in fcgi mode when none is
// configured. Gateway front-ends hand us a bounded number of connections.
const fcgiDefaultInFlight = 16

// Config holds runtime settings for the eardogger server.
//
// Fields:
//   - ListenAddr / Mode: where and how requests arrive (plain HTTP or FastCGI).
//   - DatabaseFile: path of the SQLite database.
//   - ReaderPoolSize / WriterQueueDepth / WorkerBudget: access scheduler sizing.
//   - Threads: GOMAXPROCS override, 0 keeps the runtime default.
//   - MaxInFlight: admission limit on concurrently served requests, 0 disables.
//   - SessionLifetime: absolute lifetime of a login session.
//   - SecretKey: HMAC key for the login form guard (HS256). Do not use test defaults in prod.
//   - PublicURL: externally visible origin, used for CORS and bookmarklets.
//   - Production: marks cookies Secure.
//   - TrustProxyHeaders: key login throttling on X-Forwarded-For, only behind a proxy that sets it.
//   - ValidateMigrations: refuse to start on a stale schema instead of migrating.
//   - S3*: optional destination for admin database snapshots.
type Config struct {
	ListenAddr         string
	Mode               string
	DatabaseFile       string
	ReaderPoolSize     int
	WriterQueueDepth   int
	WorkerBudget       int
	Threads            int
	MaxInFlight        int
	SessionLifetime    time.Duration
	SecretKey          string
	PublicURL          string
	Production         bool
	ValidateMigrations bool
	LogLevel           string
	LoginRatePerMinute int
	LoginBurst         int
	TrustProxyHeaders  bool
	S3Bucket           string
	S3Region           string
	S3BaseEndpoint     string
	S3AccessKey        string
	S3SecretKey        string
}

// defaultReaders mirrors the sizing rule for shared hosts: leave a couple of
// cores for the writer and request handling, but never go below two readers.
func defaultReaders() int {
	n := runtime.NumCPU() - 2
	if n < 2 {
		n = 2
	}
	return n
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey must be overridden in production.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8000"
	c.Mode = ModeHTTP
	c.DatabaseFile = "eardogger.db"
	c.ReaderPoolSize = defaultReaders()
	c.WriterQueueDepth = 64
	c.WorkerBudget = 4
	c.Threads = 0
	c.MaxInFlight = 0
	c.SessionLifetime = 90 * 24 * time.Hour
	c.SecretKey = "secretKey"
	c.PublicURL = "http://localhost:8000"
	c.Production = false
	c.ValidateMigrations = false
	c.LogLevel = "info"
	c.LoginRatePerMinute = 10
	c.LoginBurst = 5
	c.TrustProxyHeaders = false
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// EffectiveMaxInFlight is the admission limit actually enforced.
func (c *Config) EffectiveMaxInFlight() int {
	if c.MaxInFlight == 0 && c.Mode == ModeFCGI {
		return fcgiDefaultInFlight
	}
	return c.MaxInFlight
}

// PublicOrigin returns scheme://host[:port] of PublicURL.
func (c *Config) PublicOrigin() string {
	u, err := url.Parse(c.PublicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Validate reports the first setting that would make the server misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Mode != ModeHTTP && c.Mode != ModeFCGI {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeHTTP, ModeFCGI, c.Mode))
	}
	if c.DatabaseFile == "" {
		errs = append(errs, errors.New("database file is required"))
	}
	if c.ReaderPoolSize < 1 {
		errs = append(errs, errors.New("reader pool size must be at least 1"))
	}
	if c.WriterQueueDepth < 1 {
		errs = append(errs, errors.New("writer queue depth must be at least 1"))
	}
	if c.WorkerBudget < 1 {
		errs = append(errs, errors.New("worker budget must be at least 1"))
	}
	if c.Threads < 0 || c.MaxInFlight < 0 {
		errs = append(errs, errors.New("threads and max in-flight must not be negative"))
	}
	if c.SessionLifetime <= 0 {
		errs = append(errs, errors.New("session lifetime must be positive"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.PublicOrigin() == "" {
		errs = append(errs, fmt.Errorf("public url %q is not an absolute url", c.PublicURL))
	}
	return errors.Join(errs...)
}
