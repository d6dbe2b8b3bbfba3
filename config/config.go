package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/marcelsud/zoom-relay/relay"
	"github.com/marcelsud/zoom-relay/relay/signature"
)

/* Config é um pacote auxiliar. Values come from .env (TOML) and are overridden by the environment */

type Config struct {
	Port                      string `mapstructure:"PORT" yaml:"port"`
	ZoomSecretToken           string `mapstructure:"ZOOM_WEBHOOK_SECRET_TOKEN" yaml:"zoom_webhook_secret_token"`
	GASEndpointURL            string `mapstructure:"GAS_ENDPOINT_URL" yaml:"gas_endpoint_url"`
	DeliveryStrategy          string `mapstructure:"DELIVERY_STRATEGY" yaml:"delivery_strategy"`
	FailurePolicy             string `mapstructure:"FAILURE_POLICY" yaml:"failure_policy"`
	SignaturePolicy           string `mapstructure:"SIGNATURE_POLICY" yaml:"signature_policy"`
	ForwardEnvelope           bool   `mapstructure:"FORWARD_ENVELOPE" yaml:"forward_envelope"`
	UserAgent                 string `mapstructure:"USER_AGENT" yaml:"user_agent"`
	ForwardTimeoutSeconds     int    `mapstructure:"FORWARD_TIMEOUT_SECONDS" yaml:"forward_timeout_seconds"`
	ServerWriteTimeoutSeconds int    `mapstructure:"SERVER_WRITE_TIMEOUT_SECONDS" yaml:"server_write_timeout_seconds"`
	PublicBaseURL             string `mapstructure:"PUBLIC_BASE_URL" yaml:"public_base_url"`
	QueueBackend              string `mapstructure:"QUEUE_BACKEND" yaml:"queue_backend"`
	QueueRetries              int    `mapstructure:"QUEUE_RETRIES" yaml:"queue_retries"`
	QStashURL                 string `mapstructure:"QSTASH_URL" yaml:"qstash_url"`
	QStashToken               string `mapstructure:"QSTASH_TOKEN" yaml:"qstash_token"`
	QStashCurrentSigningKey   string `mapstructure:"QSTASH_CURRENT_SIGNING_KEY" yaml:"qstash_current_signing_key"`
	QStashNextSigningKey      string `mapstructure:"QSTASH_NEXT_SIGNING_KEY" yaml:"qstash_next_signing_key"`
	RedisAddr                 string `mapstructure:"REDIS_ADDR" yaml:"redis_addr"`
	RedisPassword             string `mapstructure:"REDIS_PASSWORD" yaml:"redis_password"`
	RedisDB                   int    `mapstructure:"REDIS_DB" yaml:"redis_db"`
	WorkerRetryDelaySeconds   int    `mapstructure:"WORKER_RETRY_DELAY_SECONDS" yaml:"worker_retry_delay_seconds"`
	WorkerClaimIdleSeconds    int    `mapstructure:"WORKER_CLAIM_IDLE_SECONDS" yaml:"worker_claim_idle_seconds"`
	ShutdownTimeoutSeconds    int    `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS" yaml:"shutdown_timeout_seconds"`
}

const (
	BackendQStash = "qstash"
	BackendRedis  = "redis"
)

var defaults = map[string]any{
	"PORT":                         "3000",
	"ZOOM_WEBHOOK_SECRET_TOKEN":    "",
	"GAS_ENDPOINT_URL":             "",
	"DELIVERY_STRATEGY":            "queued",
	"FAILURE_POLICY":               "acknowledge",
	"SIGNATURE_POLICY":             "required",
	"FORWARD_ENVELOPE":             false,
	"USER_AGENT":                   "Zoom-GAS-Relay/1.0",
	"FORWARD_TIMEOUT_SECONDS":      360,
	"SERVER_WRITE_TIMEOUT_SECONDS": 360,
	"PUBLIC_BASE_URL":              "",
	"QUEUE_BACKEND":                BackendQStash,
	"QUEUE_RETRIES":                relay.DefaultQueueRetries,
	"QSTASH_URL":                   "https://qstash.upstash.io",
	"QSTASH_TOKEN":                 "",
	"QSTASH_CURRENT_SIGNING_KEY":   "",
	"QSTASH_NEXT_SIGNING_KEY":      "",
	"REDIS_ADDR":                   "",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"WORKER_RETRY_DELAY_SECONDS":   10,
	"WORKER_CLAIM_IDLE_SECONDS":    1800,
	"SHUTDOWN_TIMEOUT_SECONDS":     30,
}

// GetConfig reads .env from the given directories (default ".") and the environment.
// A missing .env is fine; every key has a default and can be set from the environment.
func GetConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects values the relay cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if !oneOf(c.DeliveryStrategy, "sync", "async", "queued") {
		errs = append(errs, fmt.Errorf("DELIVERY_STRATEGY must be sync, async or queued, got %q", c.DeliveryStrategy))
	}
	if !oneOf(c.FailurePolicy, "acknowledge", "propagate") {
		errs = append(errs, fmt.Errorf("FAILURE_POLICY must be acknowledge or propagate, got %q", c.FailurePolicy))
	}
	if !oneOf(c.SignaturePolicy, "required", "optional") {
		errs = append(errs, fmt.Errorf("SIGNATURE_POLICY must be required or optional, got %q", c.SignaturePolicy))
	}
	if !oneOf(c.QueueBackend, BackendQStash, BackendRedis) {
		errs = append(errs, fmt.Errorf("QUEUE_BACKEND must be qstash or redis, got %q", c.QueueBackend))
	}
	if c.QueueRetries <= 0 {
		errs = append(errs, fmt.Errorf("QUEUE_RETRIES must be positive, got %d", c.QueueRetries))
	}
	if c.ForwardTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("FORWARD_TIMEOUT_SECONDS must be positive, got %d", c.ForwardTimeoutSeconds))
	}
	if c.ServerWriteTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("SERVER_WRITE_TIMEOUT_SECONDS must be positive, got %d", c.ServerWriteTimeoutSeconds))
	}
	if c.WorkerRetryDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("WORKER_RETRY_DELAY_SECONDS must not be negative, got %d", c.WorkerRetryDelaySeconds))
	}
	if c.WorkerClaimIdleSeconds <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_CLAIM_IDLE_SECONDS must be positive, got %d", c.WorkerClaimIdleSeconds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Warnings lists missing values that will fail requests at runtime
func (c *Config) Warnings() []string {
	var w []string
	if c.ZoomSecretToken == "" {
		if c.SignaturePolicy == "optional" {
			w = append(w, "ZOOM_WEBHOOK_SECRET_TOKEN is not set: signatures are not verified and url validation will fail")
		} else {
			w = append(w, "ZOOM_WEBHOOK_SECRET_TOKEN is not set: every webhook will be rejected with 500")
		}
	}
	if c.GASEndpointURL == "" {
		w = append(w, "GAS_ENDPOINT_URL is not set: events cannot be forwarded")
	}
	if c.DeliveryStrategy == "queued" || c.QueueBackend == BackendRedis {
		if c.QueueBackend == BackendQStash && c.QStashToken == "" {
			w = append(w, "QSTASH_TOKEN is not set: queued events cannot be published")
		}
		if c.QueueBackend == BackendRedis && c.RedisAddr == "" {
			w = append(w, "REDIS_ADDR is not set: queued events cannot be published")
		}
		if c.QStashCurrentSigningKey == "" && c.QStashNextSigningKey == "" {
			w = append(w, "QSTASH_CURRENT_SIGNING_KEY is not set: /process and /failure cannot verify the queue")
		}
		if c.PublicBaseURL == "" {
			w = append(w, "PUBLIC_BASE_URL is not set: queue callbacks use the request host")
		}
	}
	if c.QueueBackend == BackendRedis && c.WorkerClaimIdle() < c.workerWorstCase() {
		w = append(w, fmt.Sprintf("WORKER_CLAIM_IDLE_SECONDS=%d is below the worst-case handling time of %s: slow tasks may be delivered twice",
			c.WorkerClaimIdleSeconds, c.workerWorstCase()))
	}
	if c.DeliveryStrategy == "async" {
		w = append(w, "DELIVERY_STRATEGY=async: failed forwards are logged only and never retried")
	}
	return w
}

// Settings builds the relay service settings
func (c *Config) Settings() relay.Settings {
	return relay.Settings{
		Secret:          c.ZoomSecretToken,
		Strategy:        relay.NewDeliveryStrategy(c.DeliveryStrategy),
		FailurePolicy:   relay.NewFailurePolicy(c.FailurePolicy),
		SignaturePolicy: signature.NewPolicy(c.SignaturePolicy),
		PublicBaseURL:   c.PublicBaseURL,
		QueueBackend:    c.QueueBackend,
		QueueRetries:    c.QueueRetries,
		ForwardEnvelope: c.ForwardEnvelope,
		ForwardTimeout:  c.ForwardTimeout(),
	}
}

// ForwardTimeout bounds one downstream forward
func (c *Config) ForwardTimeout() time.Duration {
	return time.Duration(c.ForwardTimeoutSeconds) * time.Second
}

// WriteTimeout is the HTTP server write timeout
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.ServerWriteTimeoutSeconds) * time.Second
}

// WorkerRetryDelay is the pause between Redis worker attempts
func (c *Config) WorkerRetryDelay() time.Duration {
	return time.Duration(c.WorkerRetryDelaySeconds) * time.Second
}

// WorkerClaimIdle is how long a Redis task may stay unacknowledged before another worker claims it
func (c *Config) WorkerClaimIdle() time.Duration {
	return time.Duration(c.WorkerClaimIdleSeconds) * time.Second
}

// workerWorstCase is the longest a worker can spend on one task: every attempt times out
func (c *Config) workerWorstCase() time.Duration {
	attempts := time.Duration(c.QueueRetries + 1)
	return attempts*c.ForwardTimeout() + (attempts-1)*c.WorkerRetryDelay()
}

// ShutdownTimeout bounds graceful shutdown
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Masked returns a copy safe to print
func (c Config) Masked() Config {
	c.ZoomSecretToken = mask(c.ZoomSecretToken)
	c.QStashToken = mask(c.QStashToken)
	c.QStashCurrentSigningKey = mask(c.QStashCurrentSigningKey)
	c.QStashNextSigningKey = mask(c.QStashNextSigningKey)
	c.RedisPassword = mask(c.RedisPassword)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
