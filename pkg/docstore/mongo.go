package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo is a Store backed by a MongoDB database. Documents live in one
// collection per logical collection name, keyed by _id.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to the configured MongoDB server and returns a Store
// bound to the configured database. Connection attempts are retried.
func NewMongo(ctx context.Context, cfg Config) (*Mongo, error) {
	for range cfg.RetryAttempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize).
				SetMinPoolSize(cfg.MinPoolSize).
				SetMaxConnIdleTime(cfg.MaxConnIdleTime).
				SetRetryWrites(cfg.RetryWrites).
				SetRetryReads(cfg.RetryReads),
		)
		if err == nil {
			if err := client.Ping(ctx, nil); err == nil {
				return &Mongo{client: client, db: client.Database(cfg.Database)}, nil
			}
			_ = client.Disconnect(ctx)
		}

		time.Sleep(cfg.RetryInterval)
	}

	return nil, ErrFailedToConnect
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Healthcheck returns a probe suitable for readiness endpoints.
func (m *Mongo) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		if err := m.client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("%w: %w", ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// GetDocument implements Store.
func (m *Mongo) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	return m.getWith(ctx, collection, id)
}

func (m *Mongo) getWith(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

// SetDocument implements Store.
func (m *Mongo) SetDocument(ctx context.Context, collection, id string, data Document, merge bool) error {
	return m.setWith(ctx, collection, id, data, merge)
}

func (m *Mongo) setWith(ctx context.Context, collection, id string, data Document, merge bool) error {
	coll := m.db.Collection(collection)
	var err error
	if merge {
		_, err = coll.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M(data)},
			options.UpdateOne().SetUpsert(true),
		)
	} else {
		_, err = coll.ReplaceOne(ctx,
			bson.M{"_id": id},
			bson.M(data),
			options.Replace().SetUpsert(true),
		)
	}
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// DeleteDocument implements Store.
func (m *Mongo) DeleteDocument(ctx context.Context, collection, id string) error {
	if _, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

type mongoTx struct {
	store *Mongo
	ctx   context.Context
	err   error
}

func (tx *mongoTx) Get(collection, id string) (Document, error) {
	return tx.store.getWith(tx.ctx, collection, id)
}

func (tx *mongoTx) Set(collection, id string, data Document, merge bool) {
	if tx.err != nil {
		return
	}
	tx.err = tx.store.setWith(tx.ctx, collection, id, data, merge)
}

func (tx *mongoTx) Delete(collection, id string) {
	if tx.err != nil {
		return
	}
	tx.err = tx.store.DeleteDocument(tx.ctx, collection, id)
}

// RunTransaction implements Store using a server-side multi-document
// transaction, so concurrent claims on the same reservation key are
// serialized by the database.
func (m *Mongo) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		tx := &mongoTx{store: m, ctx: sessCtx}
		if err := fn(tx); err != nil {
			return nil, err
		}
		return nil, tx.err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxAborted, err)
	}
	return nil
}

// QueryWhere implements Store. Only equality is supported.
func (m *Mongo) QueryWhere(ctx context.Context, collection, field, op string, value any) ([]Entry, error) {
	if op != "==" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}

	cur, err := m.db.Collection(collection).Find(ctx, bson.M{field: value})
	if err != nil {
		return nil, fmt.Errorf("query %s.%s: %w", collection, field, err)
	}
	defer cur.Close(ctx)

	var out []Entry
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", collection, err)
		}
		id, _ := raw["_id"].(string)
		out = append(out, Entry{ID: id, Doc: fromBSON(raw)})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// fromBSON converts a decoded bson.M into a plain Document: dates become
// time.Time, arrays []any, nested documents map[string]any, and the _id key
// is dropped since the Store API carries identifiers separately.
func fromBSON(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = fromBSONValue(v)
	}
	return doc
}

func fromBSONValue(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time()
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSONValue(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSONValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	default:
		return v
	}
}
