// Package testutil provides utilities for testing
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// TestDB wraps a test database connection
type TestDB struct {
	*sql.DB
	t *testing.T
}

// getTestDSN builds the DSN from environment variables or defaults
func getTestDSN() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "test")
	password := getEnvOrDefault("DB_PASSWORD", "test")
	dbname := getEnvOrDefault("DB_NAME", "roadwatch_test")
	sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// NewTestDB opens the test database, skipping the test when it is not reachable.
// It also skips unless RUN_DB_TESTS is set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if os.Getenv("RUN_DB_TESTS") == "" {
		t.Skip("Skipping test: RUN_DB_TESTS not set")
	}

	db, err := sql.Open("postgres", getTestDSN())
	if err != nil {
		t.Skipf("Skipping test: unable to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("Skipping test: unable to connect to database: %v", err)
	}

	return &TestDB{DB: db, t: t}
}

// Close closes the test database connection
func (tdb *TestDB) Close() {
	if err := tdb.DB.Close(); err != nil {
		tdb.t.Errorf("Failed to close test database: %v", err)
	}
}

// Cleanup removes all rows written by tests
func (tdb *TestDB) Cleanup(ctx context.Context) {
	tdb.t.Helper()

	// Order matters due to foreign key constraints
	for _, table := range []string{"detections", "reports"} {
		if _, err := tdb.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			tdb.t.Logf("Warning: failed to cleanup table %s: %v", table, err)
		}
	}
}
