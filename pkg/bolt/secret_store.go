package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	bbolt "go.etcd.io/bbolt"

	"github.com/campusmind/twofactor/pkg/twofactor"
)

var bucketSecrets = []byte("twofactor_secrets")

// versionSize prefixes every value with the big-endian record version.
const versionSize = 8

var ErrEmptyPath = errors.New("bolt database path is empty")

// SecretStore keeps records in a single bbolt bucket. Writes run in one
// read-write transaction, which bbolt serializes per database.
type SecretStore struct {
	db    *bbolt.DB
	codec *twofactor.Codec
}

var _ twofactor.Store = (*SecretStore)(nil)

// Open opens or creates the database at cfg.Path. A nil codec stores plain JSON.
func Open(cfg Config, codec *twofactor.Codec) (*SecretStore, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}
	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSecrets)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	if codec == nil {
		codec = twofactor.NewCodec(nil)
	}
	return &SecretStore{db: db, codec: codec}, nil
}

// Close releases the database file.
func (s *SecretStore) Close() error {
	return s.db.Close()
}

// Healthcheck reports whether the database can still serve a read transaction.
func (s *SecretStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSecrets) == nil {
			return bbolt.ErrBucketNotFound
		}
		return nil
	})
}

func (s *SecretStore) Get(ctx context.Context, identity string) (*twofactor.SecretRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *twofactor.SecretRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = s.read(tx, identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SecretStore) Put(ctx context.Context, identity string, rec *twofactor.SecretRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		current, err := s.read(tx, identity)
		if err != nil && !errors.Is(err, twofactor.ErrRecordNotFound) {
			return err
		}
		next := rec.Clone()
		next.Version = versionOf(current) + 1
		return s.write(tx, identity, next)
	})
}

func (s *SecretStore) Delete(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSecrets).Delete([]byte(identity))
	})
}

func (s *SecretStore) Update(ctx context.Context, identity string, fn twofactor.UpdateFunc) (*twofactor.SecretRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var written *twofactor.SecretRecord
	err := s.db.Update(func(tx *bbolt.Tx) error {
		current, err := s.read(tx, identity)
		if err != nil {
			return err
		}

		next := current.Clone()
		err = fn(next)
		if errors.Is(err, twofactor.ErrDeleteRecord) {
			return tx.Bucket(bucketSecrets).Delete([]byte(identity))
		}
		if err != nil {
			return err
		}

		next.Version = current.Version + 1
		if err := s.write(tx, identity, next); err != nil {
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

func (s *SecretStore) read(tx *bbolt.Tx, identity string) (*twofactor.SecretRecord, error) {
	// values are only valid for the life of the transaction
	raw := tx.Bucket(bucketSecrets).Get([]byte(identity))
	if raw == nil {
		return nil, twofactor.ErrRecordNotFound
	}
	if len(raw) <= versionSize {
		return nil, twofactor.ErrCorruptRecord
	}

	rec, err := s.codec.Unmarshal(identity, slices.Clone(raw[versionSize:]))
	if err != nil {
		return nil, err
	}
	rec.Version = int64(binary.BigEndian.Uint64(raw[:versionSize]))
	return rec, nil
}

func (s *SecretStore) write(tx *bbolt.Tx, identity string, rec *twofactor.SecretRecord) error {
	blob, err := s.codec.Marshal(identity, rec)
	if err != nil {
		return err
	}
	value := make([]byte, versionSize, versionSize+len(blob))
	binary.BigEndian.PutUint64(value, uint64(rec.Version))
	value = append(value, blob...)
	return tx.Bucket(bucketSecrets).Put([]byte(identity), value)
}

func versionOf(rec *twofactor.SecretRecord) int64 {
	if rec == nil {
		return 0
	}
	return rec.Version
}
