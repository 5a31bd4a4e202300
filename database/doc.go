// Package database opens the SQLite database behind the run catalog.
//
// It wraps GORM with the imgprep logger, a connect-and-ping retry loop,
// pool settings from Config and a transaction helper. Schema changes live
// in the migration subpackage.
//
//	db, err := database.Open(ctx, database.Config{DSN: "runs.db"}, log)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// FromDatabase maps GORM errors onto imgprep error codes so callers can
// test them with errors.HasCode.
package database
