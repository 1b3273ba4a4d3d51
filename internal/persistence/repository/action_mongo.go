package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type actionDocument struct {
	ID         int64     `bson:"_id"`
	UserID     int64     `bson:"user_id"`
	ActionType string    `bson:"action_type"`
	ActionData string    `bson:"action_data"`
	CreatedAt  time.Time `bson:"created_at"`
}

type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// actionMongoRepository stores action_data as JSON text so it reads back
// byte for byte. Integer ids come from a counters document.
type actionMongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
}

func NewActionMongoRepository(client *mongo.Client, database *mongo.Database) domain.ActionRepository {
	return &actionMongoRepository{
		client:   client,
		database: database,
	}
}

func (r *actionMongoRepository) collection() *mongo.Collection {
	return r.database.Collection(db.UserActionsCollection)
}

// EnsureActionIndexes creates the index that serves QueryPage.
func EnsureActionIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(db.UserActionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		},
	})
	if err != nil {
		return domain.StorageError("ensure user_actions indexes", err)
	}
	return nil
}

// reserveIDs atomically advances the counter by n and returns the first id of
// the reserved block.
func (r *actionMongoRepository) reserveIDs(ctx context.Context, n int) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter counterDocument
	err := r.database.Collection(db.CountersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": db.UserActionsCollection},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}

	return counter.Seq - int64(n) + 1, nil
}

func (r *actionMongoRepository) buildDocuments(firstID int64, records []*domain.ActionRecord, encoded [][]byte) []any {
	docs := make([]any, len(records))
	for i, record := range records {
		record.ID = firstID + int64(i)
		docs[i] = actionDocument{
			ID:         record.ID,
			UserID:     record.UserID,
			ActionType: record.ActionType,
			ActionData: string(encoded[i]),
			CreatedAt:  record.CreatedAt,
		}
	}
	return docs
}

func (r *actionMongoRepository) encode(records []*domain.ActionRecord) ([][]byte, error) {
	encoded := make([][]byte, len(records))
	for i, record := range records {
		if err := validRecord(record); err != nil {
			return nil, err
		}
		stampCreatedAt(record, time.Now)
		syncServerTimestamp(record)

		data, err := encodeActionData(record.ActionData)
		if err != nil {
			return nil, err
		}
		encoded[i] = data
	}
	return encoded, nil
}

func (r *actionMongoRepository) Append(ctx context.Context, record *domain.ActionRecord) (*domain.ActionRecord, error) {
	encoded, err := r.encode([]*domain.ActionRecord{record})
	if err != nil {
		return nil, err
	}

	firstID, err := r.reserveIDs(ctx, 1)
	if err != nil {
		return nil, domain.StorageError("reserve action id", err)
	}

	docs := r.buildDocuments(firstID, []*domain.ActionRecord{record}, encoded)
	if _, err := r.collection().InsertOne(ctx, docs[0]); err != nil {
		return nil, domain.StorageError("append action", err)
	}
	return record, nil
}

// AppendBatch reserves ids and inserts inside one transaction, which needs a
// replica set deployment.
func (r *actionMongoRepository) AppendBatch(ctx context.Context, records []*domain.ActionRecord) ([]*domain.ActionRecord, error) {
	if len(records) == 0 {
		return []*domain.ActionRecord{}, nil
	}

	encoded, err := r.encode(records)
	if err != nil {
		return nil, err
	}

	session, err := r.client.StartSession()
	if err != nil {
		return nil, domain.StorageError("start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		firstID, err := r.reserveIDs(sc, len(records))
		if err != nil {
			return nil, err
		}
		docs := r.buildDocuments(firstID, records, encoded)
		return r.collection().InsertMany(sc, docs)
	})
	if err != nil {
		for _, record := range records {
			record.ID = 0
		}
		return nil, domain.StorageError("append actions", err)
	}

	return records, nil
}

func pageFilter(userID int64, before *domain.Position) bson.M {
	filter := bson.M{"user_id": userID}
	if before != nil {
		at := before.CreatedAt.UTC()
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": at}},
			bson.M{"created_at": at, "_id": bson.M{"$lt": before.ID}},
		}
	}
	return filter
}

func (r *actionMongoRepository) QueryPage(ctx context.Context, userID int64, before *domain.Position, limit int) ([]domain.ActionRecord, bool, error) {
	limit = domain.ClampLimit(limit)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit + 1))

	cursor, err := r.collection().Find(ctx, pageFilter(userID, before), opts)
	if err != nil {
		return nil, false, domain.StorageError("query actions", err)
	}
	defer cursor.Close(ctx)

	var docs []actionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, false, domain.StorageError("query actions", err)
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	items := make([]domain.ActionRecord, 0, len(docs))
	for _, doc := range docs {
		data, err := decodeActionData([]byte(doc.ActionData))
		if err != nil {
			return nil, false, domain.StorageError("query actions", fmt.Errorf("record %d: %w", doc.ID, err))
		}
		items = append(items, domain.ActionRecord{
			ID:         doc.ID,
			UserID:     doc.UserID,
			ActionType: doc.ActionType,
			ActionData: data,
			CreatedAt:  doc.CreatedAt.UTC(),
		})
	}

	return items, hasMore, nil
}

func (r *actionMongoRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return domain.StorageError("ping", err)
	}
	return nil
}
