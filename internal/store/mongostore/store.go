// Package mongostore implements store.Store on a MongoDB collection.
//
// MongoDB has no cheap snapshot across a count and a find outside of a
// replica-set transaction, so FindAndCount issues the two commands back to
// back. A concurrent write between them can make the total disagree with the
// page by the rows it touched.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/goliatone/go-listings/internal/store"
	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

// DefaultCollection is the collection listings are kept in.
const DefaultCollection = "listings"

var _ store.Store = (*Store)(nil)

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, listing.WrapDependency(err, "mongo connect failed")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, listing.WrapDependency(err, "mongo ping failed")
	}
	return client, nil
}

// New returns a Store on database/collection. An empty collection name
// selects DefaultCollection.
func New(client *mongo.Client, database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, coll: client.Database(database).Collection(collection)}
}

// EnsureIndexes creates the lookup indexes used by common filters.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bsonKeys("city")},
		{Keys: bsonKeys("price")},
		{Keys: bsonKeys("createdBy")},
		{Keys: bsonKeys("createdAt", "_id")},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return listing.WrapDependency(err, "mongo index creation failed")
	}
	return nil
}

func (s *Store) FindAndCount(ctx context.Context, d query.Descriptor, skip, limit int) ([]listing.Listing, int, error) {
	filter := Filter(d)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, listing.WrapDependency(err, "listing count failed")
	}

	opts := options.Find().
		SetSort(sortSpec(d.Sort)).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, listing.WrapDependency(err, "listing query failed")
	}
	defer cur.Close(ctx)

	rows := make([]listing.Listing, 0, limit)
	if err := cur.All(ctx, &rows); err != nil {
		return nil, 0, listing.WrapDependency(err, "listing decode failed")
	}
	return rows, int(total), nil
}

func (s *Store) FindByID(ctx context.Context, id string) (listing.Listing, error) {
	var l listing.Listing
	err := s.coll.FindOne(ctx, byID(id)).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return listing.Listing{}, listing.NewNotFoundError("listing", id)
	}
	if err != nil {
		return listing.Listing{}, listing.WrapDependency(err, "listing lookup failed")
	}
	return l, nil
}

func (s *Store) Create(ctx context.Context, l listing.Listing) error {
	if _, err := s.coll.InsertOne(ctx, l); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return listing.NewConflictError("listing " + l.ID + " already exists")
		}
		return listing.WrapDependency(err, "listing insert failed")
	}
	return nil
}

func (s *Store) Save(ctx context.Context, l listing.Listing) error {
	res, err := s.coll.ReplaceOne(ctx, byID(l.ID), l)
	if err != nil {
		return listing.WrapDependency(err, "listing update failed")
	}
	if res.MatchedCount == 0 {
		return listing.NewNotFoundError("listing", l.ID)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return listing.WrapDependency(err, "listing delete failed")
	}
	if res.DeletedCount == 0 {
		return listing.NewNotFoundError("listing", id)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return listing.WrapDependency(err, "mongo unreachable")
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
