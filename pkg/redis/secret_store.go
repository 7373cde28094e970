package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/campusmind/twofactor/pkg/twofactor"
)

const (
	fieldVersion = "v"
	fieldData    = "d"

	defaultTxRetries = 16
)

// SecretStore keeps each record in a hash holding the version and the codec
// blob. Writes run in WATCH/MULTI transactions retried on conflict.
type SecretStore struct {
	client  redis.UniversalClient
	codec   *twofactor.Codec
	prefix  string
	retries int
}

var _ twofactor.Store = (*SecretStore)(nil)

// NewSecretStore wraps client. A nil codec stores plain JSON.
func NewSecretStore(client redis.UniversalClient, codec *twofactor.Codec, cfg Config) *SecretStore {
	if codec == nil {
		codec = twofactor.NewCodec(nil)
	}
	retries := cfg.TxRetries
	if retries <= 0 {
		retries = defaultTxRetries
	}
	return &SecretStore{client: client, codec: codec, prefix: cfg.KeyPrefix, retries: retries}
}

func (s *SecretStore) key(identity string) string {
	return s.prefix + "secret:" + identity
}

func (s *SecretStore) Get(ctx context.Context, identity string) (*twofactor.SecretRecord, error) {
	return s.read(ctx, s.client, identity)
}

func (s *SecretStore) Put(ctx context.Context, identity string, rec *twofactor.SecretRecord) error {
	_, err := s.txn(ctx, identity, func(*twofactor.SecretRecord) (*twofactor.SecretRecord, error) {
		return rec.Clone(), nil
	})
	return err
}

func (s *SecretStore) Delete(ctx context.Context, identity string) error {
	return s.client.Del(ctx, s.key(identity)).Err()
}

func (s *SecretStore) Update(ctx context.Context, identity string, fn twofactor.UpdateFunc) (*twofactor.SecretRecord, error) {
	return s.txn(ctx, identity, func(current *twofactor.SecretRecord) (*twofactor.SecretRecord, error) {
		if current == nil {
			return nil, twofactor.ErrRecordNotFound
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// txn reads the record under WATCH, lets mutate produce the next one and
// writes it with the version following the watched one. mutate returning
// ErrDeleteRecord deletes the key instead.
func (s *SecretStore) txn(ctx context.Context, identity string, mutate func(*twofactor.SecretRecord) (*twofactor.SecretRecord, error)) (*twofactor.SecretRecord, error) {
	key := s.key(identity)

	for range s.retries {
		var written *twofactor.SecretRecord
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := s.read(ctx, tx, identity)
			if err != nil && !errors.Is(err, twofactor.ErrRecordNotFound) {
				return err
			}

			next, err := mutate(current)
			if errors.Is(err, twofactor.ErrDeleteRecord) {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}
			if err != nil {
				return err
			}

			next.Version = versionOf(current) + 1
			blob, err := s.codec.Marshal(identity, next)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, fieldVersion, next.Version, fieldData, blob)
				return nil
			})
			if err == nil {
				written = next
			}
			return err
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err != nil:
			return nil, err
		}
		return written.Clone(), nil
	}

	return nil, twofactor.ErrConcurrentUpdate
}

func (s *SecretStore) read(ctx context.Context, c redis.Cmdable, identity string) (*twofactor.SecretRecord, error) {
	vals, err := c.HMGet(ctx, s.key(identity), fieldVersion, fieldData).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, twofactor.ErrRecordNotFound
	}

	rawVersion, okVersion := vals[0].(string)
	rawData, okData := vals[1].(string)
	if !okVersion || !okData {
		return nil, ErrUnexpectedReply
	}

	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, errors.Join(twofactor.ErrCorruptRecord, err)
	}
	rec, err := s.codec.Unmarshal(identity, []byte(rawData))
	if err != nil {
		return nil, err
	}
	rec.Version = version
	return rec, nil
}

func versionOf(rec *twofactor.SecretRecord) int64 {
	if rec == nil {
		return 0
	}
	return rec.Version
}
