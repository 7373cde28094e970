// Package pg stores two-factor secret records in PostgreSQL.
//
// Connect opens a pgx pool with retries, Migrate applies the embedded goose
// migrations that create the twofactor_secrets and twofactor_audit_events tables, and SecretStore
// implements twofactor.Store on top of it. Each record is one row holding the
// codec blob and a version column; Update runs in a transaction that locks
// the row with SELECT ... FOR UPDATE, so concurrent updates for one identity
// serialize while different identities proceed independently.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//	store := pg.NewSecretStore(pool, twofactor.NewCodec(sealer))
//
// AuditWriter appends audit.Event batches to twofactor_audit_events with
// COPY. Healthcheck adapts the pool to a readiness check.
package pg
