package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Mongo struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

var _ Store = (*Mongo)(nil)

// Connect dials MongoDB, pings the primary and makes sure the indexes the
// service relies on exist. Multi-document transactions need a replica set,
// so they stay opt-in.
func Connect(ctx context.Context, uri, database string, transactions bool) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(database), transactions: transactions}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Printf("[store] connected to mongo database %q (transactions=%t)", database, transactions)
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		Students: {
			{Keys: bson.D{{Key: "student_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "financial_info.pending_amount", Value: -1}}},
		},
		FeeTransactions: {
			{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "payment_date", Value: -1}}},
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "payment_date", Value: -1}}},
		},
		FeeInstallments: {
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "installment_number", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		},
		Admins: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		Sessions: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for name, models := range indexes {
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (m *Mongo) col(name string) *mongo.Collection {
	return m.db.Collection(name)
}

func (m *Mongo) Insert(ctx context.Context, collection string, doc any) error {
	if _, err := m.col(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", collection, ErrDuplicate)
		}
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func (m *Mongo) InsertMany(ctx context.Context, collection string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := m.col(collection).InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", collection, ErrDuplicate)
		}
		return fmt.Errorf("insert many into %s: %w", collection, err)
	}
	return nil
}

func (m *Mongo) FindByID(ctx context.Context, collection string, id any, out any) error {
	err := m.col(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s by id: %w", collection, err)
	}
	return nil
}

func (m *Mongo) Find(ctx context.Context, collection string, filter bson.M, opts FindOptions, out any) error {
	if filter == nil {
		filter = bson.M{}
	}
	findOpts := options.Find()
	if opts.SortBy != "" {
		dir := 1
		if opts.Desc {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: opts.SortBy, Value: dir}, {Key: "_id", Value: dir}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := m.col(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return fmt.Errorf("find in %s: %w", collection, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

func (m *Mongo) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	n, err := m.col(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (m *Mongo) UpdateByID(ctx context.Context, collection string, id any, set bson.M) error {
	res, err := m.col(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) UpdateOneWhere(ctx context.Context, collection string, filter bson.M, set bson.M) (int64, error) {
	res, err := m.col(collection).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("conditional update %s: %w", collection, err)
	}
	return res.MatchedCount, nil
}

func (m *Mongo) Upsert(ctx context.Context, collection string, id any, doc any) error {
	_, err := m.col(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

func (m *Mongo) DeleteByID(ctx context.Context, collection string, id any) error {
	res, err := m.col(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) NextSequence(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.col(Counters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return counter.Seq, nil
}

func (m *Mongo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactions {
		return fn(ctx)
	}
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (m *Mongo) Transactional() bool {
	return m.transactions
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
