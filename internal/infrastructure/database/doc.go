// Package database provides the SQLite store used by the Insteon bridge.
//
// The bridge keeps very little on disk: the engine version resolved for each
// Insteon device, so a restart does not have to probe every device again.
// The schema lives in the top-level migrations package, which embeds its SQL
// files and registers them here on import.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Each migration runs in its own transaction.
package database
