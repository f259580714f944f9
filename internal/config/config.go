package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  The types reflect how the
// values are used in the application: strings for identifiers and
// secrets, ints for durations measured in whole units.
type Config struct {
	Env              string // application environment (e.g. "dev", "prod")
	Port             string // HTTP port to listen on
	DBUser           string // database username
	DBPass           string // database password (optional)
	DBHost           string // database host address
	DBPort           string // database port number
	DBName           string // database name
	JWTSecret        string // secret shared with the account service for verifying JWTs
	AMQPUrl          string // RabbitMQ connection URL (optional; events disabled when empty)
	PaymentWindowMin int    // minutes a pending booking holds its stock before the sweep cancels it
	HoldTTLMin       int    // minutes a seat lock stays live without being released
	SweepIntervalSec int    // seconds between expiration sweep passes
}

// Load reads configuration values from environment variables and
// returns a Config.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message;
// tunables with established defaults use intOr().
func Load() Config {
	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"), // empty allowed
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTSecret:        must("JWT_SECRET"),
		AMQPUrl:          os.Getenv("AMQP_URL"),
		PaymentWindowMin: intOr("PAYMENT_WINDOW_MIN", 10),
		HoldTTLMin:       intOr("SEAT_HOLD_TTL_MIN", 5),
		SweepIntervalSec: intOr("SWEEP_INTERVAL_SEC", 30),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intOr retrieves an optional integer variable, falling back to def
// when unset.  A set-but-unparsable value is a fatal error rather
// than a silent fallback.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
