// Package database provides SQLite connectivity and schema migrations.
//
// This package manages:
//   - Database connection with WAL mode for concurrent reads
//   - Embedded, versioned schema migrations
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements and the database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are additive: new columns must be NULLABLE or
// carry a DEFAULT.
package database
