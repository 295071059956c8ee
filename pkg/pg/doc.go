// Package pg connects to PostgreSQL through pgx/v5 and applies goose
// migrations from an fs.FS.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if cfg.Migrate {
//		err = pg.Migrate(ctx, pool, users.Migrations, "migrations", cfg.MigrationsTable, log)
//	}
package pg
