package db

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"qms-sync/internal/config"
	"qms-sync/pkg/db/migrations"
	"qms-sync/testutil"
)

type PostgresDatastoreTestSuite struct {
	suite.Suite
	pgHelper *testutil.PostgresHelper
	store    *PostgresDatastore
	pgConfig *config.Postgres
}

type testColumn struct {
	DataType   string
	IsNullable string
}

type brokenMigrationSource struct{}

func (brokenMigrationSource) GetSourceType() string { return "iofs" }

func (brokenMigrationSource) GetSourceDriver() (source.Driver, error) {
	return nil, errors.New("failed to create migration source: broken filesystem")
}

func TestPostgresDatastoreSuite(t *testing.T) {
	if os.Getenv("SKIP_INTEGRATION_TESTS") == "true" {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(PostgresDatastoreTestSuite))
}

func (s *PostgresDatastoreTestSuite) SetupSuite() {
	ctx := context.Background()

	helper, err := testutil.NewPostgresContainer(s.T(), ctx)
	require.NoError(s.T(), err, "Failed to start PostgreSQL container")

	s.pgHelper = helper
	s.pgConfig = helper.Config
}

func (s *PostgresDatastoreTestSuite) TearDownSuite() {
	ctx := context.Background()
	if s.store != nil {
		err := s.store.Close()
		if err != nil {
			log.Printf("Error closing datastore: %v", err)
		}
	}
	if s.pgHelper != nil {
		err := s.pgHelper.Terminate(ctx)
		if err != nil {
			log.Printf("Error terminating container: %v", err)
		}
	}
}

func (s *PostgresDatastoreTestSuite) TestNewPostgresDatastore() {

	s.T().Run("successful connection to postgres", func(t *testing.T) {
		store, err := NewPostgresDatastore(s.pgConfig, migrations.NewPostgresMigration())
		s.store = store
		require.NoError(s.T(), err, "Should create datastore without error")

		assert.NotNil(s.T(), s.store, "Expected store to be non-nil on successful connection")
		assert.NotNil(s.T(), s.store.DB, "Expected store.DB to be non-nil on successful connection")
		assert.Equal(s.T(), "pgx", s.store.DB.DriverName(), "Expected driver name to be 'pgx'")
	})

	s.T().Run("db connection failure returns error", func(t *testing.T) {
		badConfig := &config.Postgres{
			Address:  "localhost",
			Port:     9999,
			Username: "wrong",
			Password: "wrong",
			DBName:   "wrongdb",
		}

		store, err := NewPostgresDatastore(badConfig, migrations.NewPostgresMigration())

		assert.Nil(s.T(), store, "Expected store to be nil on connection failure")
		assert.Error(s.T(), err, "Expected error when connecting to invalid postgres instance")
		assert.Contains(s.T(), err.Error(), "failed to connect to postgres", "Error message should indicate connection failure")
	})

	s.T().Run("set maxConnection when it is configured", func(t *testing.T) {
		cfg := *s.pgConfig
		cfg.MaxConnections = 5
		store, err := NewPostgresDatastore(&cfg, migrations.NewPostgresMigration())
		s.store = store
		require.NoError(s.T(), err, "Should create datastore without error")

		got := s.store.DB.Stats().MaxOpenConnections

		assert.Equal(s.T(), cfg.MaxConnections, got, "MaxOpenConnections should match config.MaxConnections")
	})
}

func (s *PostgresDatastoreTestSuite) TestInitSchema_VerifyTableStructure() {

	s.T().Run("verifies sync_configurations table structure", func(t *testing.T) {
		expectedColumns := map[string]testColumn{
			"id":                      {"bigint", "NO"},
			"name":                    {"text", "NO"},
			"system_type":             {"text", "NO"},
			"entity_type":             {"text", "NO"},
			"enabled":                 {"boolean", "NO"},
			"schedule_type":           {"text", "NO"},
			"interval_minutes":        {"integer", "NO"},
			"cron_expression":         {"text", "YES"},
			"delta_enabled":           {"boolean", "NO"},
			"delta_field":             {"text", "YES"},
			"last_sync_timestamp":     {"timestamp with time zone", "YES"},
			"last_sync_record_id":     {"bigint", "YES"},
			"max_retries":             {"integer", "NO"},
			"last_run_status":         {"text", "YES"},
			"last_run_at":             {"timestamp with time zone", "YES"},
			"next_run_at":             {"timestamp with time zone", "YES"},
			"total_records_processed": {"bigint", "NO"},
			"total_records_failed":    {"bigint", "NO"},
			"created_at":              {"timestamp with time zone", "NO"},
			"updated_at":              {"timestamp with time zone", "NO"},
		}

		store, err := NewPostgresDatastore(s.pgConfig, migrations.NewPostgresMigration())
		require.NoError(s.T(), err, "Should create datastore without error")
		s.store = store

		actualColumns := s.getColumns("public", "sync_configurations")

		assert.Len(s.T(), actualColumns, len(expectedColumns), "Number of columns does not match expected")

		for col, exp := range expectedColumns {
			act, ok := actualColumns[col]
			assert.True(s.T(), ok, "Expected column '%s' not found", col)
			assert.Equal(s.T(), exp.DataType, act.DataType, "Data type mismatch for column '%s'", col)
			assert.True(s.T(), strings.EqualFold(exp.IsNullable, act.IsNullable), "Nullability mismatch for column '%s'", col)
		}
	})

	s.T().Run("verifies sync_logs run_id is unique", func(t *testing.T) {
		store, err := NewPostgresDatastore(s.pgConfig, migrations.NewPostgresMigration())
		require.NoError(s.T(), err, "Should create datastore without error")
		s.store = store

		uniqueColumns := s.getConstraintColumns("UNIQUE", "public", "sync_logs")

		assert.Contains(s.T(), uniqueColumns, "run_id", "run_id should carry a UNIQUE constraint")
	})

	s.T().Run("verifies primary key columns", func(t *testing.T) {
		store, err := NewPostgresDatastore(s.pgConfig, migrations.NewPostgresMigration())
		require.NoError(s.T(), err, "Should create datastore without error")
		s.store = store

		assert.Equal(s.T(), []string{"id"}, s.getPrimaryKeyColumns("public", "sync_configurations"))
		assert.Equal(s.T(), []string{"id"}, s.getPrimaryKeyColumns("public", "sync_logs"))
		assert.Equal(s.T(), []string{"id"}, s.getPrimaryKeyColumns("public", "sync_conflicts"))
	})

	s.T().Run("creates the qms entity tables the delta queries read", func(t *testing.T) {
		store, err := NewPostgresDatastore(s.pgConfig, migrations.NewPostgresMigration())
		require.NoError(s.T(), err, "Should create datastore without error")
		s.store = store

		for _, table := range []string{"equipment", "suppliers", "orders", "inspections", "ncr", "capa", "quality_records"} {
			columns := s.getColumns("public", table)
			assert.Contains(s.T(), columns, "id", "table %s should have an id column", table)
			assert.Contains(s.T(), columns, "updated_at", "table %s should have an updated_at column", table)
		}
	})

	s.T().Run("returns error when the migration source is broken", func(t *testing.T) {
		_, err := NewPostgresDatastore(s.pgConfig, brokenMigrationSource{})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create migration source")
	})
}

func (s *PostgresDatastoreTestSuite) TestHealthCheck() {
	s.T().Run("health check continues after database temporary outage", func(t *testing.T) {
		shortInterval := 300 * time.Millisecond
		originalHealthCheckPeriod := defaultHealthCheckPeriod
		defaultHealthCheckPeriod = shortInterval
		defer func() { defaultHealthCheckPeriod = originalHealthCheckPeriod }()

		store, err := NewPostgresDatastore(s.pgConfig, migrations.NewPostgresMigration())
		require.NoError(t, err)
		s.store = store

		// Let it run a few cycles
		time.Sleep(shortInterval * 3)

		// Pause the container to simulate a DB outage
		ctx := context.Background()
		_ = s.pgHelper.Stop(ctx, &shortInterval)

		// Wait for a few health check cycles during the outage
		time.Sleep(shortInterval * 3)

		// Resume the container
		err = s.pgHelper.Start(ctx)
		require.NoError(t, err)

		// Wait for recovery
		time.Sleep(time.Second * 3)

		var count int
		err = store.DB.Get(&count, "SELECT 1")
		assert.NoError(t, err, "Database should be working after recovery")
	})

	s.T().Run("it stops healthcheck when DB is closed", func(t *testing.T) {
		store, err := NewPostgresDatastore(s.pgConfig, migrations.NewPostgresMigration())
		s.store = store
		require.NoError(t, err, "Should create datastore without error")

		s.store.Close()

		assert.Nil(t, s.store.healthCheckInterval)
		assert.Nil(t, s.store.stopHealthCheckCh)
	})
}

func (s *PostgresDatastoreTestSuite) getColumns(schema string, table string) map[string]testColumn {
	query := `
				SELECT column_name, data_type, is_nullable
				FROM information_schema.columns
				WHERE table_schema = $1
					AND table_name   = $2
				ORDER BY ordinal_position;
		`
	rows, _ := s.store.DB.Queryx(query, schema, table)
	defer rows.Close()

	cols := make(map[string]testColumn)
	for rows.Next() {
		var name, dataType, isNullable string
		assert.NoError(s.T(), rows.Scan(&name, &dataType, &isNullable))
		cols[name] = testColumn{dataType, isNullable}
	}
	return cols
}

func (s *PostgresDatastoreTestSuite) getConstraintColumns(constraintType string, schema string, table string) []string {
	query := `
        SELECT kcu.column_name
        FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage kcu
          ON tc.constraint_name = kcu.constraint_name
          AND tc.table_schema = kcu.table_schema
        WHERE tc.constraint_type = $1
          AND tc.table_name = $3
          AND tc.table_schema = $2
        ORDER BY kcu.ordinal_position;
    `
	var columns []string
	s.store.DB.Select(&columns, query, constraintType, schema, table)
	return columns
}

func (s *PostgresDatastoreTestSuite) getPrimaryKeyColumns(schema string, table string) []string {
	query := `
        SELECT kcu.column_name
        FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage kcu
          ON tc.constraint_name = kcu.constraint_name
          AND tc.table_schema = kcu.table_schema
        WHERE tc.constraint_type = 'PRIMARY KEY'
          AND tc.table_name = $2
          AND tc.table_schema = $1
        ORDER BY kcu.ordinal_position;
    `
	var columns []string
	s.store.DB.Select(&columns, query, schema, table)
	return columns
}
