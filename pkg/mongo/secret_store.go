package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/campusmind/twofactor/pkg/twofactor"
)

const defaultCASRetries = 16

type secretDocument struct {
	Identity  string    `bson:"_id"`
	Version   int64     `bson:"version"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SecretCollection is the part of *mongo.Collection the store uses.
type SecretCollection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
}

// SecretStore keeps one document per identity, keyed by _id. Update is a
// compare-and-swap on the version field, retried a bounded number of times.
type SecretStore struct {
	coll    SecretCollection
	codec   *twofactor.Codec
	retries int
	now     func() time.Time
}

var _ twofactor.Store = (*SecretStore)(nil)

// NewSecretStore wraps coll. A nil codec stores plain JSON.
func NewSecretStore(coll SecretCollection, codec *twofactor.Codec, cfg Config) *SecretStore {
	if codec == nil {
		codec = twofactor.NewCodec(nil)
	}
	retries := cfg.CASRetries
	if retries <= 0 {
		retries = defaultCASRetries
	}
	return &SecretStore{coll: coll, codec: codec, retries: retries, now: time.Now}
}

func (s *SecretStore) Get(ctx context.Context, identity string) (*twofactor.SecretRecord, error) {
	rec, _, err := s.load(ctx, identity)
	return rec, err
}

func (s *SecretStore) Put(ctx context.Context, identity string, rec *twofactor.SecretRecord) error {
	blob, err := s.codec.Marshal(identity, rec)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{"data": blob, "updated_at": s.now().UTC()},
		"$inc": bson.M{"version": int64(1)},
	}
	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": identity}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (s *SecretStore) Delete(ctx context.Context, identity string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": identity})
	return err
}

func (s *SecretStore) Update(ctx context.Context, identity string, fn twofactor.UpdateFunc) (*twofactor.SecretRecord, error) {
	for range s.retries {
		current, version, err := s.load(ctx, identity)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		err = fn(next)
		if errors.Is(err, twofactor.ErrDeleteRecord) {
			res, err := s.coll.DeleteOne(ctx, bson.M{"_id": identity, "version": version})
			if err != nil {
				return nil, err
			}
			if res.DeletedCount == 0 {
				continue
			}
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		next.Version = version + 1
		blob, err := s.codec.Marshal(identity, next)
		if err != nil {
			return nil, err
		}
		res, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": identity, "version": version},
			bson.M{"$set": bson.M{"data": blob, "version": next.Version, "updated_at": s.now().UTC()}},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			continue
		}
		return next, nil
	}

	return nil, twofactor.ErrConcurrentUpdate
}

func (s *SecretStore) load(ctx context.Context, identity string) (*twofactor.SecretRecord, int64, error) {
	var doc secretDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": identity}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, twofactor.ErrRecordNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	rec, err := s.codec.Unmarshal(identity, doc.Data)
	if err != nil {
		return nil, 0, err
	}
	rec.Version = doc.Version
	return rec, doc.Version, nil
}
