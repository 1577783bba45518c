package config_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/slidewise/modelgate/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:     ":8080",
			Environment: config.EnvDev,
		},
		Logging: config.LoggingConfig{
			Level: config.LogLevelInfo,
		},
		Backends: []config.BackendConfig{
			{
				Name:             "ollama",
				URL:              "http://localhost:11434",
				Model:            "llama3",
				Priority:         10,
				MaxContextTokens: 8192,
			},
		},
		CircuitBreaker: config.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          "30s",
			MonitoringPeriod: "1m",
		},
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "200ms",
			Multiplier:  2.0,
			MaxDelay:    "5s",
		},
		RateLimit: config.RateLimitConfig{
			Max:             60,
			Window:          "1m",
			CleanupInterval: "5m",
		},
		Cache: config.CacheConfig{
			TTL:             "1h",
			CleanupInterval: "10m",
		},
		Orchestrator: config.OrchestratorConfig{
			AttemptTimeout: "60s",
			ProbeTimeout:   "3s",
		},
		HealthCheck: config.HealthCheckConfig{
			Interval: "15s",
		},
	}
}

var _ = Describe("Config validation", func() {
	It("should accept a fully populated config", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	It("should reject an unknown environment", func() {
		cfg := validConfig()
		cfg.Server.Environment = "production"

		Expect(cfg.Validate()).NotTo(Succeed())
	})

	It("should reject an address without a port", func() {
		cfg := validConfig()
		cfg.Server.Address = "localhost"

		Expect(cfg.Validate()).NotTo(Succeed())
	})

	It("should reject an unknown log level", func() {
		cfg := validConfig()
		cfg.Logging.Level = "trace"

		Expect(cfg.Validate()).NotTo(Succeed())
	})

	It("should reject an empty backend list", func() {
		cfg := validConfig()
		cfg.Backends = nil

		Expect(cfg.Validate()).NotTo(Succeed())
	})

	DescribeTable("backend entries",
		func(mutate func(*config.BackendConfig), wantErr bool) {
			cfg := validConfig()
			mutate(&cfg.Backends[0])

			if wantErr {
				Expect(cfg.Validate()).NotTo(Succeed())
			} else {
				Expect(cfg.Validate()).To(Succeed())
			}
		},
		Entry("missing name", func(b *config.BackendConfig) { b.Name = "" }, true),
		Entry("missing model", func(b *config.BackendConfig) { b.Model = "" }, true),
		Entry("missing url", func(b *config.BackendConfig) { b.URL = "" }, true),
		Entry("non-http scheme", func(b *config.BackendConfig) { b.URL = "ftp://host:21" }, true),
		Entry("url without host", func(b *config.BackendConfig) { b.URL = "http://" }, true),
		Entry("negative context window", func(b *config.BackendConfig) { b.MaxContextTokens = -1 }, true),
		Entry("https url", func(b *config.BackendConfig) { b.URL = "https://api.example.com" }, false),
		Entry("zero context window", func(b *config.BackendConfig) { b.MaxContextTokens = 0 }, false),
	)

	DescribeTable("duration fields",
		func(mutate func(*config.Config)) {
			cfg := validConfig()
			mutate(cfg)

			Expect(cfg.Validate()).NotTo(Succeed())
		},
		Entry("breaker timeout", func(c *config.Config) { c.CircuitBreaker.Timeout = "soon" }),
		Entry("monitoring period", func(c *config.Config) { c.CircuitBreaker.MonitoringPeriod = "60" }),
		Entry("retry base delay", func(c *config.Config) { c.Retry.BaseDelay = "fast" }),
		Entry("rate limit window", func(c *config.Config) { c.RateLimit.Window = "" }),
		Entry("cache ttl", func(c *config.Config) { c.Cache.TTL = "1 hour" }),
		Entry("attempt timeout", func(c *config.Config) { c.Orchestrator.AttemptTimeout = "never" }),
		Entry("health interval", func(c *config.Config) { c.HealthCheck.Interval = "15" }),
	)

	It("should reject a zero failure threshold", func() {
		cfg := validConfig()
		cfg.CircuitBreaker.FailureThreshold = 0

		Expect(cfg.Validate()).NotTo(Succeed())
	})

	It("should reject zero retry attempts", func() {
		cfg := validConfig()
		cfg.Retry.MaxAttempts = 0

		Expect(cfg.Validate()).NotTo(Succeed())
	})

	It("should reject a zero rate limit", func() {
		cfg := validConfig()
		cfg.RateLimit.Max = 0

		Expect(cfg.Validate()).NotTo(Succeed())
	})
})
