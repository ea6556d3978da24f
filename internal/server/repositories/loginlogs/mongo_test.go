package loginlogs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type fakeCollection struct {
	docs []any
	err  error
}

func (f *fakeCollection) InsertOne(_ context.Context, doc any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, doc)
	return &mongo.InsertOneResult{InsertedID: doc.(document).ID}, nil
}

func TestMongoAppend_WritesDocument(t *testing.T) {
	coll := &fakeCollection{}
	repo := &MongoRepository{coll: coll}

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	err := repo.Append(context.Background(), models.LoginLogEntry{UserID: "7", UserName: "Alice", CreatedAt: at})
	require.NoError(t, err)

	require.Len(t, coll.docs, 1)
	doc := coll.docs[0].(document)
	assert.False(t, doc.ID.IsZero())
	assert.Equal(t, "7", doc.UserID)
	assert.Equal(t, "Alice", doc.UserName)
	assert.True(t, doc.CreatedAt.Equal(at))
	assert.Equal(t, time.UTC, doc.CreatedAt.Location())
}

func TestMongoAppend_Error(t *testing.T) {
	repo := &MongoRepository{coll: &fakeCollection{err: errors.New("write concern")}}

	err := repo.Append(context.Background(), models.LoginLogEntry{UserID: "7"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "insert login log: write concern")
	assert.False(t, common.IsTransient(err))
}

func TestMongoAppend_DeadlineIsTransient(t *testing.T) {
	repo := &MongoRepository{coll: &fakeCollection{err: context.DeadlineExceeded}}

	err := repo.Append(context.Background(), models.LoginLogEntry{UserID: "7"})
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}
