// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds everything the savings daemon needs to start.
type Config struct {
	// DatabaseConnStr is the lib/pq connection string. If DB_CONN_STR is not
	// set it is assembled from the individual DB_* variables.
	DatabaseConnStr string
	// DatabaseURL is the postgres:// URL used by the migration runner.
	DatabaseURL string
	// MigrationsURL is the migration source, e.g. "file://migrations".
	MigrationsURL string

	// KafkaBrokers is empty when event publishing is disabled; events then go
	// to the structured log instead.
	KafkaBrokers []string
	KafkaTopic   string

	// AccrualSchedule and MaturitySchedule are cron expressions for the two
	// daily jobs.
	AccrualSchedule  string
	MaturitySchedule string
}

// Load reads the configuration from the environment, applying local-dev
// defaults for anything unset.
func Load() Config {
	host := getenv("DB_HOST", "localhost")
	port := getenv("DB_PORT", "5432")
	user := getenv("DB_USER", "postgres")
	password := getenv("DB_PASSWORD", "postgres")
	dbname := getenv("DB_NAME", "savings")

	connStr := os.Getenv("DB_CONN_STR")
	if connStr == "" {
		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			user, password, host, port, dbname)
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Config{
		DatabaseConnStr:  connStr,
		DatabaseURL:      databaseURL,
		MigrationsURL:    getenv("MIGRATIONS_URL", "file://migrations"),
		KafkaBrokers:     brokers,
		KafkaTopic:       getenv("KAFKA_TOPIC", "savings.events"),
		AccrualSchedule:  getenv("ACCRUAL_SCHEDULE", "0 1 * * *"),
		MaturitySchedule: getenv("MATURITY_SCHEDULE", "30 1 * * *"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
