// Package database provides SQLite connectivity for SchoolHub Core.
//
// It opens the database with WAL mode, a busy timeout and foreign keys
// enabled, and applies versioned migrations read from an fs.FS.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. All queries use parameterised statements.
package database
