// Package database handles database connections, migrations and schema inspection.
//
// It provides a wrapper around GORM to configure connections to the PMS system
// of record. MySQL is the production driver; sqlite is supported for local runs
// and is what the test suites use (":memory:" databases).
//
// # Connect
//
// Connect opens the connection, applies pool settings and verifies it with a
// ping bounded by the configured timeout.
//
// # Migrations and Inspection
//
// Migrate wraps AutoMigrate for the engine's models. GetTableColumns and
// MissingColumns inspect the live schema so the migrate command can confirm
// that every column the engine relies on exists.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "inventory_days", "stop_sell")
package database
