// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for struct parsing. Every service binary
// declares one config struct composed of the package-level Config types it
// needs and loads it once at startup:
//
//	type Config struct {
//		Redis   redis.Config
//		Broker  broker.Config
//		Limiter ratelimiter.Config
//	}
//
//	cfg, err := config.Load[Config]()
//
// Configs implementing Validator get a final check after parsing, so
// cross-field rules fail at startup instead of on first use.
package config
