// Package pg bootstraps PostgreSQL access on pgx/v5: a retrying pool
// constructor, dedicated session connections for LISTEN, a transaction helper,
// goose migrations from an embedded filesystem, a healthcheck probe and
// SQLSTATE classification helpers.
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, slog.Default()); err != nil {
//		return err
//	}
//
//	err = pg.WithTx(ctx, pool, func(tx pgx.Tx) error {
//		_, err := tx.Exec(ctx, "UPDATE skills SET version = version + 1 WHERE id = $1", id)
//		return err
//	})
package pg
