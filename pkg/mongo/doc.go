// Package mongo stores two-factor secret records in MongoDB using the
// official v2 driver.
//
// New connects with retries and Healthcheck adapts the client to a readiness
// check. SecretStore keeps one document per identity:
//
//	{_id: identity, version: int64, data: binary, updated_at: date}
//
// where data is the twofactor.Codec blob. Put upserts and increments the
// version in a single UpdateOne. Update reads the document, applies the
// callback and writes back with a filter on the version it read; when another
// writer got there first the filter matches nothing and the cycle repeats,
// up to Config.CASRetries times before twofactor.ErrConcurrentUpdate.
//
//	client, err := mongo.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := mongo.NewSecretStore(mongo.Collection(client, cfg), codec, cfg)
package mongo
