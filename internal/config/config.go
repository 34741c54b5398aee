// Package config loads application configuration from environment
// variables. Required values are enforced at startup; the process
// refuses to boot with an incomplete configuration.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field maps to a
// single environment variable.
type Config struct {
	Env            string // application environment ("dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string
	DBPass         string // optional
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string // secret used to sign access tokens
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	CheckInSecret string        // secret for the check-in token issuer
	CheckInTTL    time.Duration // lifetime of issued check-in tokens

	AMQPURL   string // RabbitMQ connection URL; empty disables publishing
	QueueName string // queue booking events are published to

	ExpireSweepEvery  time.Duration // expiration sweep interval
	OverdueSweepEvery time.Duration // overdue-deposit sweep interval
	NoShowSweepEvery  time.Duration // no-show sweep interval
	NoShowGrace       time.Duration // grace after slot start before NO_SHOW
}

// Load reads configuration from the environment. Missing required
// variables abort the process with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		CheckInSecret: must("CHECKIN_TOKEN_SECRET"),
		CheckInTTL:    envDur("CHECKIN_TOKEN_TTL", 48*time.Hour),

		AMQPURL:   os.Getenv("AMQP_URL"),
		QueueName: envStr("BOOKING_QUEUE", "booking_events"),

		ExpireSweepEvery:  envDur("EXPIRE_SWEEP_EVERY", 15*time.Minute),
		OverdueSweepEvery: envDur("OVERDUE_SWEEP_EVERY", 15*time.Minute),
		NoShowSweepEvery:  envDur("NOSHOW_SWEEP_EVERY", time.Hour),
		NoShowGrace:       envDur("NOSHOW_GRACE", 2*time.Hour),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must but converts the value to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
