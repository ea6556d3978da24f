package loginlogs

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is where login log documents are written.
const CollectionName = "login_logs"

type document struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	UserName  string        `bson:"user_name"`
	CreatedAt time.Time     `bson:"created_at"`
}

// inserter is the part of *mongo.Collection the repository uses.
type inserter interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
}

type MongoRepository struct {
	coll inserter
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

func (r *MongoRepository) Append(ctx context.Context, entry models.LoginLogEntry) error {
	doc := document{
		ID:        bson.NewObjectID(),
		UserID:    entry.UserID,
		UserName:  entry.UserName,
		CreatedAt: entry.CreatedAt.UTC(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
			return fmt.Errorf("insert login log: %w: %w", common.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("insert login log: %w", common.Classify(err))
	}
	return nil
}

// Connect opens a client for uri and pings it. The caller disconnects it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
