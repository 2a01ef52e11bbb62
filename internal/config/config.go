package config // package config loads application configuration from environment variables

import (
	"log"  // log is used to report configuration errors and halt execution
	"os"   // os provides access to environment variables
	"time" // time expresses TTLs and sweep intervals
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Required values are enforced by must()
// and a missing one exits the process with a fatal log message.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	JWTSecret       string        // secret used to verify bearer tokens
	HoldTTL         time.Duration // default lifetime of a seat hold
	TTLStoreEnabled bool          // mirror holds into the expiring key-value store
	SweepInterval   time.Duration // in-process fallback sweep cadence (0 disables)
	SweepChunk      int           // ledger rows fetched per sweep scan
	OrderChunk      int           // orders fetched per cascade scan
}

// Load reads configuration values from environment variables and
// returns a Config.  The hold TTL defaults to the 15 minutes the
// checkout flow advertises to buyers; the mode flag HOLD_TTL_STORE_ENABLED
// selects whether Redis TTL expiry runs in front of the fallback
// sweeper or the sweeper is the sole expiry mechanism.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		HoldTTL:         envDur("HOLD_TTL", 15*time.Minute),
		TTLStoreEnabled: envBool("HOLD_TTL_STORE_ENABLED", true),
		SweepInterval:   envDur("HOLD_SWEEP_INTERVAL", time.Minute),
		SweepChunk:      envInt("HOLD_SWEEP_CHUNK", 100),
		OrderChunk:      envInt("ORDER_SWEEP_CHUNK", 50),
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
