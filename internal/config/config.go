package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	DBDriver    string
	DatabaseDSN string
	ResetDB     bool
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	SwaggerHost string
	LogMode     string

	PendingTokenTTL  time.Duration
	OTPTTL           time.Duration
	OTPMaxAttempts   int
	OTPAttemptWindow time.Duration
	OTPSweepInterval time.Duration
	OTPHashCost      int

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

const defaultMySQLDSN = "user:password@tcp(localhost:3306)/foodshare?charset=utf8mb4&parseTime=True&loc=UTC"

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DBDriver:    getEnv("DB_DRIVER", "mysql"),
		DatabaseDSN: getEnv("DATABASE_DSN", getEnv("MYSQL_DSN", defaultMySQLDSN)),
		ResetDB:     getEnvBool("RESET_DB", false),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),
		LogMode:     getEnv("LOG_MODE", "development"),

		PendingTokenTTL:  getEnvDuration("PENDING_TOKEN_TTL", 15*time.Minute),
		OTPTTL:           getEnvDuration("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPAttemptWindow: getEnvDuration("OTP_ATTEMPT_WINDOW", 15*time.Minute),
		OTPSweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", 10*time.Minute),
		OTPHashCost:      getEnvInt("OTP_HASH_COST", 10),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
	}
}

// TwilioEnabled reports whether all Twilio credentials are present.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s", "5m") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
