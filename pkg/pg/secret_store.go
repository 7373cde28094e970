package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campusmind/twofactor/pkg/twofactor"
)

const (
	selectSecret = `SELECT version, data FROM twofactor_secrets WHERE identity = $1`

	selectSecretForUpdate = selectSecret + ` FOR UPDATE`

	upsertSecret = `INSERT INTO twofactor_secrets (identity, version, data)
VALUES ($1, 1, $2)
ON CONFLICT (identity) DO UPDATE
SET version = twofactor_secrets.version + 1, data = EXCLUDED.data, updated_at = now()
RETURNING version`

	updateSecret = `UPDATE twofactor_secrets SET version = $2, data = $3, updated_at = now() WHERE identity = $1`

	deleteSecret = `DELETE FROM twofactor_secrets WHERE identity = $1`
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SecretStore keeps records in the twofactor_secrets table. Update locks the
// row with SELECT ... FOR UPDATE for the length of its transaction.
type SecretStore struct {
	db    DB
	codec *twofactor.Codec
}

var _ twofactor.Store = (*SecretStore)(nil)

// NewSecretStore wraps db. A nil codec stores plain JSON.
func NewSecretStore(db DB, codec *twofactor.Codec) *SecretStore {
	if codec == nil {
		codec = twofactor.NewCodec(nil)
	}
	return &SecretStore{db: db, codec: codec}
}

func (s *SecretStore) Get(ctx context.Context, identity string) (*twofactor.SecretRecord, error) {
	return s.read(ctx, s.db, selectSecret, identity)
}

func (s *SecretStore) Put(ctx context.Context, identity string, rec *twofactor.SecretRecord) error {
	blob, err := s.codec.Marshal(identity, rec)
	if err != nil {
		return err
	}
	var version int64
	return s.db.QueryRow(ctx, upsertSecret, identity, blob).Scan(&version)
}

func (s *SecretStore) Delete(ctx context.Context, identity string) error {
	_, err := s.db.Exec(ctx, deleteSecret, identity)
	return err
}

func (s *SecretStore) Update(ctx context.Context, identity string, fn twofactor.UpdateFunc) (*twofactor.SecretRecord, error) {
	var written *twofactor.SecretRecord

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := s.read(ctx, tx, selectSecretForUpdate, identity)
		if err != nil {
			return err
		}

		next := current.Clone()
		err = fn(next)
		if errors.Is(err, twofactor.ErrDeleteRecord) {
			_, err = tx.Exec(ctx, deleteSecret, identity)
			return err
		}
		if err != nil {
			return err
		}

		next.Version = current.Version + 1
		blob, err := s.codec.Marshal(identity, next)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateSecret, identity, next.Version, blob); err != nil {
			return err
		}
		written = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written.Clone(), nil
}

func (s *SecretStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

func (s *SecretStore) read(ctx context.Context, q queryRower, query, identity string) (*twofactor.SecretRecord, error) {
	var (
		version int64
		data    []byte
	)
	if err := q.QueryRow(ctx, query, identity).Scan(&version, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, twofactor.ErrRecordNotFound
		}
		return nil, err
	}

	rec, err := s.codec.Unmarshal(identity, data)
	if err != nil {
		return nil, err
	}
	rec.Version = version
	return rec, nil
}
