// Package database opens the tracker service's SQLite file and applies its
// schema migrations.
//
// The file holds geofence zones, the tracker catalogue and the operator
// audit log. It contains phone numbers, so it is created with mode 0600.
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are embedded by the migrations package and named
// YYYYMMDD_HHMMSS_description.{up,down}.sql. Migrations only add: new
// columns are nullable or carry a default.
package database
