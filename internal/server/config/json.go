package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/eardogger/internal/flagx"
	"github.com/dmitrijs2005/eardogger/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from a zero value, so a file only overrides the keys
// it mentions.
type JsonConfig struct {
	ListenAddr         string          `json:"listen_addr"`
	Mode               string          `json:"mode"`
	DatabaseFile       string          `json:"database_file"`
	ReaderPoolSize     *int            `json:"reader_pool_size"`
	WriterQueueDepth   *int            `json:"writer_queue_depth"`
	WorkerBudget       *int            `json:"worker_budget"`
	Threads            *int            `json:"threads"`
	MaxInFlight        *int            `json:"max_in_flight"`
	SessionLifetime    *timex.Duration `json:"session_lifetime"`
	SecretKey          string          `json:"secret_key"`
	PublicURL          string          `json:"public_url"`
	Production         *bool           `json:"production"`
	ValidateMigrations *bool           `json:"validate_migrations"`
	LogLevel           string          `json:"log_level"`
	LoginRatePerMinute *int            `json:"login_rate_per_minute"`
	LoginBurst         *int            `json:"login_burst"`
	TrustProxyHeaders  *bool           `json:"trust_proxy_headers"`
	S3Bucket           string          `json:"s3_bucket"`
	S3Region           string          `json:"s3_region"`
	S3BaseEndpoint     string          `json:"s3_base_endpoint"`
	S3AccessKey        string          `json:"s3_access_key"`
	S3SecretKey        string          `json:"s3_secret_key"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// parseJson loads configuration values from the file named by -c/-config.
// Without the flag nothing is loaded. An unreadable file or invalid JSON
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.Mode, c.Mode)
	setString(&config.DatabaseFile, c.DatabaseFile)
	setPtr(&config.ReaderPoolSize, c.ReaderPoolSize)
	setPtr(&config.WriterQueueDepth, c.WriterQueueDepth)
	setPtr(&config.WorkerBudget, c.WorkerBudget)
	setPtr(&config.Threads, c.Threads)
	setPtr(&config.MaxInFlight, c.MaxInFlight)
	if c.SessionLifetime != nil {
		config.SessionLifetime = c.SessionLifetime.Duration
	}
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.PublicURL, c.PublicURL)
	setPtr(&config.Production, c.Production)
	setPtr(&config.ValidateMigrations, c.ValidateMigrations)
	setString(&config.LogLevel, c.LogLevel)
	setPtr(&config.LoginRatePerMinute, c.LoginRatePerMinute)
	setPtr(&config.LoginBurst, c.LoginBurst)
	setPtr(&config.TrustProxyHeaders, c.TrustProxyHeaders)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
}
